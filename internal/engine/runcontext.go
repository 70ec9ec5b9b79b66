package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"adoinventory/internal/output"
	"adoinventory/internal/outcome"
)

// RunContext carries the run-scoped state shared by every worker: the logger,
// the aggregator and the abort switch.
type RunContext struct {
	RunID string
	Log   *slog.Logger
	Agg   *output.Aggregator

	cancel  context.CancelCauseFunc
	aborted atomic.Bool

	mu    sync.Mutex
	cause error
}

// newRunContext derives the run context from parent. Cancelling it through
// Abort stops both pools.
func newRunContext(parent context.Context, runID string, log *slog.Logger, agg *output.Aggregator) (context.Context, *RunContext) {
	ctx, cancel := context.WithCancelCause(parent)
	return ctx, &RunContext{RunID: runID, Log: log, Agg: agg, cancel: cancel}
}

// Abort cancels the run. Only the first cause is kept and logged.
func (rc *RunContext) Abort(err error) {
	if !rc.aborted.CompareAndSwap(false, true) {
		return
	}
	cause := fmt.Errorf("%w: %w", outcome.ErrRunAborted, err)
	rc.mu.Lock()
	rc.cause = cause
	rc.mu.Unlock()
	rc.Log.Error("fatal error, aborting run", "error", err)
	rc.cancel(cause)
}

func (rc *RunContext) Aborted() bool {
	return rc.aborted.Load()
}

// Cause returns the abort cause, or nil.
func (rc *RunContext) Cause() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.cause
}

func (rc *RunContext) release() {
	rc.cancel(nil)
}
