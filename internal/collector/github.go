package collector

import (
	"context"
	"time"

	"adoinventory/internal/config"
	"adoinventory/internal/data"
	"adoinventory/internal/engine"
	"adoinventory/internal/fetcher"
	"adoinventory/internal/github"
	"adoinventory/internal/outcome"
)

// GitHubAPI is the GitHub surface used by the repository inventory.
type GitHubAPI interface {
	OrgRepos(ctx context.Context, org string) ([]github.Repo, outcome.Outcome)
	Webhooks(ctx context.Context, owner, repo string) (int, outcome.Outcome)
	DeepStats(ctx context.Context, owner, repo string) (github.DeepStats, outcome.Outcome)
}

// GitHub emits one row per selected organization repository.
type GitHub struct {
	api    GitHubAPI
	filter github.Filter
	deep   bool
	now    func() time.Time
}

func NewGitHub(api GitHubAPI, filter github.Filter, deep bool, now func() time.Time) engine.Collector {
	if now == nil {
		now = time.Now
	}
	return &GitHub{api: api, filter: filter, deep: deep, now: now}
}

// RepoFilter builds the repository filter from the config.
func RepoFilter(g config.GitHub) github.Filter {
	return github.Filter{
		Visibility: g.Visibility,
		Archived:   g.Archived,
		Forks:      g.Forks,
		Topics:     g.Topic,
		Include:    g.Include,
		Exclude:    g.Exclude,
		MaxRepos:   g.MaxRepos,
	}
}

// BuildGitHub resolves the GitHub tokens and wires the client. now stamps the
// scan date of every row.
func BuildGitHub(now func() time.Time) func(env engine.Env) (engine.Collector, error) {
	return func(env engine.Env) (engine.Collector, error) {
		cfg := env.Config
		tokens, source, err := github.ResolveAuthTokens(context.Background(), github.APIHost(cfg.GitHub.APIURL))
		if err != nil {
			return nil, err
		}
		ts, err := github.NewRotatingSource(tokens)
		if err != nil {
			return nil, err
		}
		env.Log.Info("github token resolved", "source", string(source), "tokens", ts.Len())

		rt := cfg.Runtime
		client, err := github.NewClient(ts,
			github.WithBaseURL(cfg.GitHub.APIURL),
			github.WithLogger(env.Log, rt.Verbose),
			github.WithPolicy(Policy(rt)),
			github.WithBudget(fetcher.NewBudget()),
			github.WithRate(rt.RPS),
			github.WithMetrics(env.Metrics),
			github.WithTimeout(rt.RequestTimeout),
		)
		if err != nil {
			return nil, err
		}
		return NewGitHub(client, RepoFilter(cfg.GitHub), cfg.GitHub.DeepScan, now), nil
	}
}

func (c *GitHub) OpenOrg(ctx context.Context, s *engine.OrgScope, org string) (engine.OrgPlan, outcome.Outcome) {
	repos, o := c.api.OrgRepos(ctx, org)
	if !o.OK() {
		return engine.OrgPlan{}, o
	}
	selected := c.filter.Apply(repos)
	s.Log().Info("repositories listed", "repos", len(repos), "selected", len(selected), "deep_scan", c.deep)

	scanDate := c.now().UTC()
	var plan engine.OrgPlan
	for _, r := range selected {
		plan.Units = append(plan.Units, engine.UnitJob{
			Name:  r.Name,
			Attrs: []any{"repo", r.FullName},
			Run: func(ctx context.Context, u *engine.Unit) error {
				return c.repo(ctx, u, org, r, scanDate)
			},
		})
	}
	return plan, o
}

func (c *GitHub) repo(ctx context.Context, u *engine.Unit, org string, r github.Repo, scanDate time.Time) error {
	row := data.GitHubRow{
		Org:         org,
		Repo:        r.Name,
		FullName:    r.FullName,
		SizeBytes:   data.Ptr(r.SizeKB * 1024),
		UpdatedAt:   r.UpdatedAt,
		PushedAt:    r.PushedAt,
		Visibility:  r.VisibilityName(),
		Archived:    r.Archived,
		Language:    r.Language,
		IsFork:      r.Fork,
		ForkCount:   r.ForksCount,
		HasIssues:   r.HasIssues,
		HasProjects: r.HasProjects,
		HasWiki:     r.HasWiki,
		HasPages:    r.HasPages,
		ScanDate:    scanDate,
	}

	if c.deep {
		row.DeepScan = true
		st, o := c.api.DeepStats(ctx, r.Owner, r.Name)
		if err := u.Observe(o); err != nil {
			return err
		}
		if o.OK() {
			row.Branches = data.Ptr(st.Branches)
			row.Commits = st.Commits
			row.PullRequests = data.Ptr(st.PullRequests)
			row.Issues = data.Ptr(st.Issues)
			row.Environments = data.Ptr(st.Environments)
			row.Packages = data.Ptr(st.Packages)
			row.LastCommit = st.LastCommit
		}

		hooks, o := c.api.Webhooks(ctx, r.Owner, r.Name)
		if err := u.Observe(o); err != nil {
			return err
		}
		if o.OK() {
			row.Webhooks = data.Ptr(hooks)
		}
	}

	u.Emit(row)
	return nil
}
