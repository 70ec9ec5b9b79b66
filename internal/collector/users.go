package collector

import (
	"context"

	"adoinventory/internal/data"
	"adoinventory/internal/detect"
	"adoinventory/internal/engine"
	"adoinventory/internal/identity"
	"adoinventory/internal/output"
	"adoinventory/internal/outcome"
)

// Users emits, per repository, the org entitlement count, the project member
// and admin counts, and who last changed the repository.
type Users struct {
	api ADO
}

func NewUsers(api ADO) engine.Collector {
	return &Users{api: api}
}

// orgUsers is the org-level state shared read-only by the project units.
type orgUsers struct {
	roster   *identity.Roster
	entitled int
}

// OpenOrg merges the entitlement roster with the graph users. One of the two
// may fail; the org is skipped only when both do or the project list does.
func (c *Users) OpenOrg(ctx context.Context, s *engine.OrgScope, org string) (engine.OrgPlan, outcome.Outcome) {
	roster, oRoster := c.api.Entitlements(ctx, org)
	if oRoster.Fatal() {
		return engine.OrgPlan{}, oRoster
	}
	graph, oGraph := c.api.GraphUsers(ctx, org)
	if oGraph.Fatal() {
		return engine.OrgPlan{}, oGraph
	}
	switch {
	case !oRoster.OK() && !oGraph.OK():
		if err := s.Observe(oGraph); err != nil {
			return engine.OrgPlan{}, oGraph
		}
		return engine.OrgPlan{}, oRoster
	case !oRoster.OK():
		if err := s.Observe(oRoster); err != nil {
			return engine.OrgPlan{}, oRoster
		}
	case !oGraph.OK():
		if err := s.Observe(oGraph); err != nil {
			return engine.OrgPlan{}, oGraph
		}
	}

	projects, o := c.api.Projects(ctx, org)
	if !o.OK() {
		return engine.OrgPlan{}, o
	}

	merged := identity.Merge(roster, graph)
	counts := merged.Counts()
	for _, rec := range merged.Records() {
		if rec.Service {
			s.Log().Debug("service account excluded from counts", "key", rec.Key, "name", rec.DisplayName, "sources", rec.Sources.String())
		}
	}
	s.Log().Info("org roster merged",
		"roster", len(roster), "graph", len(graph), "merged", merged.Len(),
		"entitled", counts.Entitled, "service", counts.Service, "projects", len(projects))

	shared := &orgUsers{roster: merged, entitled: counts.Entitled}
	plan := engine.OrgPlan{Processed: output.ProjectsProcessed, Skipped: output.ProjectsSkipped}
	for _, p := range projects {
		plan.Units = append(plan.Units, engine.UnitJob{
			Name: p.Name,
			Run: func(ctx context.Context, u *engine.Unit) error {
				return c.project(ctx, u, org, p, shared)
			},
		})
	}
	return plan, o
}

func (c *Users) project(ctx context.Context, u *engine.Unit, org string, p data.Project, shared *orgUsers) error {
	roster := shared.roster.Clone()
	var membersOK, adminsOK bool

	members, o := c.api.TeamMembers(ctx, org, p.Name)
	if err := u.Observe(o); err != nil {
		return err
	}
	if o.OK() {
		membersOK = true
		roster.AddAll(members)
	}

	admins, o := c.api.ProjectAdmins(ctx, org, p.ID)
	if err := u.Observe(o); err != nil {
		return err
	}
	if o.OK() {
		adminsOK = true
		roster.AddAll(admins)
	}

	counts := roster.Counts()
	base := data.UserRow{Organization: org, Project: p.Name, OrgUsers: data.Ptr(shared.entitled)}
	if membersOK {
		base.ProjectMembers = data.Ptr(counts.Members)
	}
	if adminsOK {
		base.ProjectAdmins = data.Ptr(counts.Admins)
	}
	u.Log().Debug("project roster merged", "members", counts.Members, "admins", counts.Admins)

	det, err := detect.Detect(ctx, c.api, u, org, p.Name)
	if err != nil {
		return err
	}

	for _, kind := range det.Kinds {
		switch kind {
		case data.KindGit:
			for _, repo := range det.Repos {
				row := base
				row.RepoName = repo.Name
				last, err := detect.GitLastChange(ctx, c.api, u, org, p.Name, repo.ID)
				if err != nil {
					return err
				}
				applyChange(&row, last)
				u.Emit(row)
			}
		case data.KindTFVC:
			row := base
			row.RepoName = p.Name
			last, err := detect.TFVCLastChange(ctx, c.api, u, org, p.Name)
			if err != nil {
				return err
			}
			applyChange(&row, last)
			u.Emit(row)
		default:
			row := base
			row.RepoName = p.Name
			last, err := detect.ContentLastChange(ctx, c.api, u, org, p)
			if err != nil {
				return err
			}
			applyChange(&row, last)
			u.Emit(row)
		}
	}
	return nil
}

func applyChange(row *data.UserRow, c *data.Change) {
	if c == nil {
		return
	}
	row.LastAuthor = c.Author
	if !c.When.IsZero() {
		when := c.When
		row.LastModified = &when
	}
}
