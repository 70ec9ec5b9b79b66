package collector

import (
	"context"

	"adoinventory/internal/data"
	"adoinventory/internal/detect"
	"adoinventory/internal/engine"
	"adoinventory/internal/output"
	"adoinventory/internal/outcome"
)

// Inventory emits one row per Git repository, and one row named after the
// project for every other kind it holds.
type Inventory struct {
	api ADO
}

func NewInventory(api ADO) engine.Collector {
	return &Inventory{api: api}
}

func (c *Inventory) OpenOrg(ctx context.Context, s *engine.OrgScope, org string) (engine.OrgPlan, outcome.Outcome) {
	projects, o := c.api.Projects(ctx, org)
	if !o.OK() {
		return engine.OrgPlan{}, o
	}
	s.Log().Info("projects listed", "projects", len(projects))

	plan := engine.OrgPlan{Processed: output.ProjectsProcessed, Skipped: output.ProjectsSkipped}
	for _, p := range projects {
		plan.Units = append(plan.Units, engine.UnitJob{
			Name: p.Name,
			Run: func(ctx context.Context, u *engine.Unit) error {
				return c.measure(ctx, u, org, p)
			},
		})
	}
	return plan, o
}

func (c *Inventory) measure(ctx context.Context, u *engine.Unit, org string, p data.Project) error {
	det, err := detect.Detect(ctx, c.api, u, org, p.Name)
	if err != nil {
		return err
	}
	u.Log().Debug("project classified", "kinds", det.Kinds, "repos", len(det.Repos))

	for _, kind := range det.Kinds {
		switch kind {
		case data.KindGit:
			for _, repo := range det.Repos {
				row := data.InventoryRow{Organization: org, Project: p.Name, Kind: kind, RepoName: repo.Name}
				if repo.Disabled {
					u.Log().Info("repository disabled, not measured", "repo", repo.Name)
					u.Emit(row)
					continue
				}
				st, err := detect.GitStats(ctx, c.api, u, org, p.Name, repo)
				if err != nil {
					return err
				}
				row.Stats = st
				u.Emit(row)
			}
		case data.KindTFVC:
			st, err := detect.TFVCStats(ctx, c.api, u, org, p.Name)
			if err != nil {
				return err
			}
			u.Emit(data.InventoryRow{Organization: org, Project: p.Name, Kind: kind, RepoName: p.Name, Stats: st})
		default:
			st, err := detect.ContentStats(ctx, c.api, u, org, p)
			if err != nil {
				return err
			}
			u.Emit(data.InventoryRow{Organization: org, Project: p.Name, Kind: kind, RepoName: p.Name, Stats: st})
		}
	}
	return nil
}
