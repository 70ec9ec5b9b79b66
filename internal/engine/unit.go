package engine

import (
	"log/slog"
	"sync"

	"adoinventory/internal/data"
	"adoinventory/internal/output"
	"adoinventory/internal/outcome"
)

// Unit is the bookkeeping of one job. It buffers the job's rows and tallies
// every failed call; rows reach the aggregator only once the job returns.
type Unit struct {
	rc  *RunContext
	log *slog.Logger

	mu      sync.Mutex
	records []data.Record
	skipped bool
	failed  bool
}

func newUnit(rc *RunContext, log *slog.Logger) *Unit {
	return &Unit{rc: rc, log: log}
}

// Log returns the job logger, tagged with org and project.
func (u *Unit) Log() *slog.Logger {
	return u.log
}

// Emit buffers one output row.
func (u *Unit) Emit(r data.Record) {
	if r == nil {
		return
	}
	u.mu.Lock()
	u.records = append(u.records, r)
	u.mu.Unlock()
}

// Observe tallies a call outcome. PermissionDenied and NotFound mark the unit as
// skipped; exhausted retries mark it failed. An AuthFailure aborts the run and
// is returned as an error.
func (u *Unit) Observe(o outcome.Outcome) error {
	if o.OK() {
		return nil
	}
	if u.rc.Aborted() {
		return u.rc.Cause()
	}
	u.rc.Agg.Error(o.Kind)
	if o.Fatal() {
		err := o.Err()
		u.rc.Abort(err)
		return err
	}

	skip := o.Kind == outcome.PermissionDenied || o.Kind == outcome.NotFound
	u.mu.Lock()
	if skip {
		u.skipped = true
	} else {
		u.failed = true
	}
	u.mu.Unlock()

	if skip {
		u.log.Info("call skipped", "outcome", o.Kind.String(), "error", o.Err())
	} else {
		u.log.Warn("call failed", "outcome", o.Kind.String(), "attempts", o.Attempts, "error", o.Err())
	}
	return nil
}

// finish hands the buffered rows to the aggregator and counts the unit.
func (u *Unit) finish() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	agg := u.rc.Agg
	for _, r := range u.records {
		agg.Record(r)
	}
	agg.Increment(output.ReposProcessed, len(u.records))
	switch {
	case u.failed:
		agg.Increment(output.UnitsFailed, 1)
	case u.skipped:
		agg.Increment(output.UnitsSkipped, 1)
	}
	return len(u.records)
}

// OrgScope tallies the tolerated failures of org-level calls.
type OrgScope struct {
	rc  *RunContext
	log *slog.Logger
}

func (s *OrgScope) Log() *slog.Logger {
	return s.log
}

// Observe counts a failed call. An AuthFailure aborts the run and is returned.
func (s *OrgScope) Observe(o outcome.Outcome) error {
	if o.OK() {
		return nil
	}
	if s.rc.Aborted() {
		return s.rc.Cause()
	}
	s.rc.Agg.Error(o.Kind)
	if o.Fatal() {
		err := o.Err()
		s.rc.Abort(err)
		return err
	}
	s.log.Warn("org call failed", "outcome", o.Kind.String(), "error", o.Err())
	return nil
}
