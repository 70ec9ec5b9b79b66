package engine

import (
	"context"
	"log/slog"
	"time"

	"adoinventory/internal/output"
)

// dispatcher fans organizations out on the org pool and, per organization,
// units out on a project pool of its own.
type dispatcher struct {
	rc             *RunContext
	col            Collector
	orgWorkers     int
	projectWorkers int
}

func (d *dispatcher) run(ctx context.Context, orgs []string) error {
	pool, err := NewPool(ctx, d.orgWorkers)
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, org := range orgs {
		if err := pool.Submit(func(ctx context.Context) { d.runOrg(ctx, org) }); err != nil {
			break
		}
	}
	pool.Drain()
	return nil
}

func (d *dispatcher) runOrg(ctx context.Context, org string) {
	rc := d.rc
	log := rc.Log.With("org", org)
	start := time.Now()
	log.Info("org started")

	plan, o := d.col.OpenOrg(ctx, &OrgScope{rc: rc, log: log}, org)
	if !o.OK() {
		if rc.Aborted() {
			return
		}
		rc.Agg.Error(o.Kind)
		if o.Fatal() {
			rc.Abort(o.Err())
			return
		}
		if ctx.Err() != nil {
			return
		}
		rc.Agg.Increment(output.OrgsSkipped, 1)
		log.Warn("org skipped", "outcome", o.Kind.String(), "error", o.Err())
		return
	}

	pool, err := NewPool(ctx, d.projectWorkers)
	if err != nil {
		log.Error("org failed", "error", err)
		return
	}
	defer pool.Close()

	for _, job := range plan.Units {
		if err := pool.Submit(func(ctx context.Context) { d.runUnit(ctx, log, plan, job) }); err != nil {
			break
		}
	}
	pool.Drain()

	if rc.Aborted() || ctx.Err() != nil {
		return
	}
	rc.Agg.Increment(output.OrgsProcessed, 1)
	log.Info("org finished", "units", len(plan.Units), "elapsed", time.Since(start).Truncate(time.Millisecond))
}

func (d *dispatcher) runUnit(ctx context.Context, orgLog *slog.Logger, plan OrgPlan, job UnitJob) {
	rc := d.rc
	attrs := job.Attrs
	if len(attrs) == 0 {
		attrs = []any{"project", job.Name}
	}
	log := orgLog.With(attrs...)
	log.Debug("unit started")

	u := newUnit(rc, log)
	err := job.Run(ctx, u)
	if rc.Aborted() || ctx.Err() != nil {
		return
	}
	rows := u.finish()
	if err != nil {
		count(rc.Agg, plan.Skipped)
		log.Warn("unit skipped", "error", err, "rows", rows)
		return
	}
	count(rc.Agg, plan.Processed)
	log.Info("unit finished", "rows", rows)
}

func count(agg *output.Aggregator, c output.Counter) {
	if c != "" {
		agg.Increment(c, 1)
	}
}
