package github

import (
	"context"
	"strings"
	"time"

	gh "github.com/google/go-github/v81/github"

	"adoinventory/internal/outcome"
)

const perPage = 100

// Repo is the listing view of one organization repository.
type Repo struct {
	Owner       string
	Name        string
	FullName    string
	SizeKB      int64
	UpdatedAt   *time.Time
	PushedAt    *time.Time
	Visibility  string
	Private     bool
	Archived    bool
	Fork        bool
	Language    string
	ForksCount  int
	HasIssues   bool
	HasProjects bool
	HasWiki     bool
	HasPages    bool
	Topics      []string
}

// VisibilityName falls back to the private flag on servers that do not report visibility.
func (r Repo) VisibilityName() string {
	if v := strings.TrimSpace(r.Visibility); v != "" {
		return strings.ToLower(v)
	}
	if r.Private {
		return "private"
	}
	return "public"
}

// OrgRepos lists every repository of an organization, following NextPage.
// A failure on any page fails the listing.
func (c *Client) OrgRepos(ctx context.Context, org string) ([]Repo, outcome.Outcome) {
	opts := &gh.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	var all []Repo
	for {
		var (
			page []*gh.Repository
			resp *gh.Response
		)
		o := c.do(ctx, "list repositories of "+org, func(ctx context.Context) (*gh.Response, error) {
			var err error
			page, resp, err = c.rest.Repositories.ListByOrg(ctx, org, opts)
			return resp, err
		})
		if !o.OK() {
			return all, o
		}
		for _, r := range page {
			all = append(all, toRepo(org, r))
		}
		if resp == nil || resp.NextPage == 0 {
			return all, o
		}
		opts.Page = resp.NextPage
	}
}

func toRepo(org string, r *gh.Repository) Repo {
	owner := r.GetOwner().GetLogin()
	if owner == "" {
		owner = org
	}
	out := Repo{
		Owner:       owner,
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		SizeKB:      int64(r.GetSize()),
		Visibility:  r.GetVisibility(),
		Private:     r.GetPrivate(),
		Archived:    r.GetArchived(),
		Fork:        r.GetFork(),
		Language:    r.GetLanguage(),
		ForksCount:  r.GetForksCount(),
		HasIssues:   r.GetHasIssues(),
		HasProjects: r.GetHasProjects(),
		HasWiki:     r.GetHasWiki(),
		HasPages:    r.GetHasPages(),
		Topics:      r.Topics,
	}
	if out.FullName == "" {
		out.FullName = owner + "/" + out.Name
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time
		out.UpdatedAt = &t
	}
	if r.PushedAt != nil {
		t := r.PushedAt.Time
		out.PushedAt = &t
	}
	return out
}

// Webhooks counts the repository hooks by listing one per page and reading the
// last page number. Listing hooks needs admin rights on the repository.
func (c *Client) Webhooks(ctx context.Context, owner, repo string) (int, outcome.Outcome) {
	var (
		hooks []*gh.Hook
		resp  *gh.Response
	)
	o := c.do(ctx, "list hooks of "+owner+"/"+repo, func(ctx context.Context) (*gh.Response, error) {
		var err error
		hooks, resp, err = c.rest.Repositories.ListHooks(ctx, owner, repo, &gh.ListOptions{PerPage: 1})
		return resp, err
	})
	if !o.OK() {
		return 0, o
	}
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage, o
	}
	return len(hooks), o
}
