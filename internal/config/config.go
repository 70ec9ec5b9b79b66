package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - CLI flags in internal/cli/collect.go
	// - the file overlay in internal/config/file.go:ApplyFile
	Input   Input   `toml:"input"`
	Output  Output  `toml:"output"`
	Runtime Runtime `toml:"runtime"`
	GitHub  GitHub  `toml:"github"`
}

type Input struct {
	// OrgFile is the path of the organization list (positional argument).
	// One name per line; blank lines and lines starting with '#' are ignored.
	OrgFile string `toml:"org_file"`

	// Orgs are organization names given directly (see --org).
	// Values may be provided as repeated flags and/or comma-separated lists.
	// They are appended after the names read from OrgFile.
	Orgs []string `toml:"orgs"`
}

type Output struct {
	// Dir is the directory the CSV and log files are written to (see --output-dir).
	Dir string `toml:"dir"`

	// Emit streams committed rows to stdout (see --emit).
	// Allowed values: json, ndjson. Empty disables the stream.
	Emit string `toml:"emit"`

	// MetricsFile writes the Prometheus metrics of the run to this path (see --metrics-file).
	MetricsFile string `toml:"metrics_file"`

	// NoConsole suppresses stderr logging and the summary table (see --no-console).
	NoConsole bool `toml:"no_console"`
}

type Runtime struct {
	// MaxOrgWorkers bounds how many organizations are processed at once (see --max-org-workers).
	// Must be >= 1.
	MaxOrgWorkers int `toml:"max_org_workers"`

	// MaxProjectWorkers bounds how many projects of one organization are processed at once
	// (see --max-project-workers). Must be >= 1.
	MaxProjectWorkers int `toml:"max_project_workers"`

	// RequestTimeout is the timeout of a single API call (see --request-timeout).
	RequestTimeout time.Duration `toml:"request_timeout"`

	// MaxAttempts is the total number of attempts per call, first try included (see --max-attempts).
	MaxAttempts int `toml:"max_attempts"`

	// BackoffBase and BackoffMax shape the exponential retry delay (see --backoff-base, --backoff-max).
	BackoffBase time.Duration `toml:"backoff_base"`
	BackoffMax  time.Duration `toml:"backoff_max"`

	// RPS is the proactive request rate for the whole run (see --rps). 0 disables the limiter.
	RPS float64 `toml:"rps"`

	// Timeout is the global run timeout (see --timeout). 0 means none.
	Timeout time.Duration `toml:"timeout"`

	// Verbose logs at debug level, including one line per HTTP request.
	Verbose bool `toml:"verbose"`
}

type GitHub struct {
	// APIURL is the REST base URL, for GitHub Enterprise Server (see --github-api-url).
	// Empty means github.com.
	APIURL string `toml:"api_url"`

	// DeepScan adds the per-repository GraphQL and webhook counts (see --deep-scan).
	DeepScan bool `toml:"deep_scan"`

	// Visibility keeps only repositories of one visibility (see --visibility).
	// Allowed values: all, public, private, internal.
	Visibility string `toml:"visibility"`

	// Archived and Forks select archived repositories and forks (see --archived, --forks).
	// Allowed values: include, exclude, only.
	Archived string `toml:"archived"`
	Forks    string `toml:"forks"`

	// Topic keeps repositories carrying at least one of these topics (see --topic).
	Topic []string `toml:"topic"`

	// Include and Exclude are glob patterns over the repository name, or the
	// full name when the pattern contains '/' (see --include, --exclude).
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`

	// MaxRepos caps the repositories per organization after filtering (see --max-repos).
	// 0 means no limit.
	MaxRepos int `toml:"max_repos"`
}

func New() *Config {
	return &Config{
		Output: Output{
			Dir: ".",
		},
		GitHub: GitHub{
			Visibility: "all",
			Archived:   "include",
			Forks:      "include",
		},
		Runtime: Runtime{
			MaxOrgWorkers:     5,
			MaxProjectWorkers: 3,
			RequestTimeout:    30 * time.Second,
			MaxAttempts:       3,
			BackoffBase:       500 * time.Millisecond,
			BackoffMax:        30 * time.Second,
			RPS:               10,
		},
	}
}

func (c *Config) Validate() error {
	c.Input.OrgFile = strings.TrimSpace(c.Input.OrgFile)
	c.Input.Orgs = splitCommaList(c.Input.Orgs)

	// Output validation
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	c.Output.Emit = normalizeEnumValue(c.Output.Emit)
	if c.Output.Emit != "" && c.Output.Emit != "json" && c.Output.Emit != "ndjson" {
		return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", c.Output.Emit)
	}

	// Runtime validation
	if c.Runtime.MaxOrgWorkers <= 0 {
		return errors.New("--max-org-workers must be >= 1")
	}
	if c.Runtime.MaxProjectWorkers <= 0 {
		return errors.New("--max-project-workers must be >= 1")
	}
	if c.Runtime.RequestTimeout <= 0 {
		return errors.New("--request-timeout must be > 0")
	}
	if c.Runtime.MaxAttempts <= 0 {
		return errors.New("--max-attempts must be >= 1")
	}
	if c.Runtime.BackoffBase <= 0 {
		return errors.New("--backoff-base must be > 0")
	}
	if c.Runtime.BackoffMax < c.Runtime.BackoffBase {
		return errors.New("--backoff-max must be >= --backoff-base")
	}
	if c.Runtime.RPS < 0 {
		return errors.New("--rps must be >= 0")
	}
	if c.Runtime.Timeout < 0 {
		return errors.New("--timeout must be >= 0")
	}

	// GitHub validation
	c.GitHub.APIURL = strings.TrimSpace(c.GitHub.APIURL)
	if c.GitHub.APIURL != "" {
		u, err := url.Parse(c.GitHub.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid --github-api-url value: %q", c.GitHub.APIURL)
		}
	}
	c.GitHub.Visibility = normalizeEnumValue(c.GitHub.Visibility)
	if c.GitHub.Visibility == "" {
		c.GitHub.Visibility = "all"
	}
	switch c.GitHub.Visibility {
	case "all", "public", "private", "internal":
	default:
		return fmt.Errorf("unsupported --visibility value: %s (must be one of: all, public, private, internal)", c.GitHub.Visibility)
	}
	for _, p := range []struct {
		flag  string
		value *string
	}{
		{"--archived", &c.GitHub.Archived},
		{"--forks", &c.GitHub.Forks},
	} {
		*p.value = normalizeEnumValue(*p.value)
		if *p.value == "" {
			*p.value = "include"
		}
		switch *p.value {
		case "include", "exclude", "only":
		default:
			return fmt.Errorf("unsupported %s value: %s (must be one of: include, exclude, only)", p.flag, *p.value)
		}
	}
	c.GitHub.Topic = splitCommaList(c.GitHub.Topic)
	c.GitHub.Include = splitCommaList(c.GitHub.Include)
	c.GitHub.Exclude = splitCommaList(c.GitHub.Exclude)
	if c.GitHub.MaxRepos < 0 {
		return errors.New("--max-repos must be >= 0")
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
