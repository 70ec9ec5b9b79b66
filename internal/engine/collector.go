package engine

import (
	"context"
	"log/slog"

	"adoinventory/internal/config"
	"adoinventory/internal/data"
	"adoinventory/internal/metrics"
	"adoinventory/internal/output"
	"adoinventory/internal/outcome"
)

// Collector turns one organization into a list of unit jobs.
//
// OpenOrg performs the org-level calls. A non-success outcome skips the org;
// an AuthFailure aborts the run. Calls the collector can do without are
// reported to s instead. The returned jobs run on the org's project pool.
type Collector interface {
	OpenOrg(ctx context.Context, s *OrgScope, org string) (OrgPlan, outcome.Outcome)
}

// OrgPlan is the work seeded by one organization.
type OrgPlan struct {
	Units []UnitJob

	// Processed is incremented once per completed unit, Skipped once per unit
	// whose Run returned an error. Empty counters are not recorded.
	Processed output.Counter
	Skipped   output.Counter
}

// UnitJob is one project or repository of an organization.
type UnitJob struct {
	// Name identifies the unit in logs, under the "project" key unless Attrs
	// are given.
	Name  string
	Attrs []any

	// Run measures the unit and emits its rows through u. Rows emitted before a
	// non-fatal error are kept.
	Run func(ctx context.Context, u *Unit) error
}

// Env is what a collector factory gets from the engine.
type Env struct {
	Config  *config.Config
	Log     *slog.Logger
	Metrics metrics.Recorder
	RunID   string
}

// Spec describes one collect command.
type Spec struct {
	// Prefix names the output and log files: <Prefix>-<YYYYMMDD-HHMMSS>.csv.
	Prefix string
	Schema data.Schema

	// Build creates the collector once logging and metrics are ready. A returned
	// error is a fatal configuration problem.
	Build func(env Env) (Collector, error)
}
