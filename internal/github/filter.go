package github

import (
	"path"
	"strings"
)

// Filter selects which listed repositories become units. Policies for
// archived repositories and forks are "include", "exclude" or "only".
type Filter struct {
	Visibility string
	Archived   string
	Forks      string
	Topics     []string
	Include    []string
	Exclude    []string
	MaxRepos   int
}

// Apply returns the repositories passing every rule, in listing order.
func (f Filter) Apply(repos []Repo) []Repo {
	visibility := strings.ToLower(strings.TrimSpace(f.Visibility))
	if visibility == "" {
		visibility = "all"
	}

	var out []Repo
	for _, r := range repos {
		if visibility != "all" && r.VisibilityName() != visibility {
			continue
		}
		if !matchesPolicy(f.Archived, r.Archived) || !matchesPolicy(f.Forks, r.Fork) {
			continue
		}
		if len(f.Topics) > 0 && !matchesAnyTopic(f.Topics, r.Topics) {
			continue
		}
		if len(f.Include) > 0 && !matchesAnyPattern(f.Include, r.FullName, r.Name) {
			continue
		}
		if len(f.Exclude) > 0 && matchesAnyPattern(f.Exclude, r.FullName, r.Name) {
			continue
		}
		out = append(out, r)
	}

	if f.MaxRepos > 0 && len(out) > f.MaxRepos {
		out = out[:f.MaxRepos]
	}
	return out
}

func matchesPolicy(policy string, flag bool) bool {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "exclude":
		return !flag
	case "only":
		return flag
	default:
		return true
	}
}

func matchesAnyTopic(required, repoTopics []string) bool {
	for _, want := range required {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		for _, have := range repoTopics {
			if want == have {
				return true
			}
		}
	}
	return false
}

func matchesAnyPattern(patterns []string, fullName, repoName string) bool {
	for _, p := range patterns {
		if matchPattern(p, fullName, repoName) {
			return true
		}
	}
	return false
}

// matchPattern matches a pattern with an owner part ("org/*") against the full
// name and any other pattern against the bare repository name.
func matchPattern(pattern, fullName, repoName string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	target := repoName
	if strings.Contains(pattern, "/") {
		target = fullName
	}
	matched, _ := path.Match(pattern, target)
	return matched
}
