package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"adoinventory/internal/config"
	"adoinventory/internal/logging"
	"adoinventory/internal/metrics"
	"adoinventory/internal/output"
	"adoinventory/internal/outcome"

	"github.com/google/uuid"
)

// Exit code contract:
// 0 = run completed, partial failures included
// 1 = unexpected error (output could not be written)
// 2 = organization list missing, unreadable or empty
// 3 = fatal credential or configuration problem, or the run was aborted
const (
	ExitOK    = 0
	ExitError = 1
	ExitInput = 2
	ExitFatal = 3
)

const timestampLayout = "20060102-150405"

type Engine struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

type Option func(*Engine)

// WithOutput redirects the emit stream and console output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Engine) {
		if stdout != nil {
			e.stdout = stdout
		}
		if stderr != nil {
			e.stderr = stderr
		}
	}
}

// WithClock sets the clock used for file name timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr, now: time.Now}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// Result describes a finished run.
type Result struct {
	ExitCode   int
	Summary    output.Summary
	OutputFile string
	LogFile    string
}

// Run executes one collect command and returns its exit code.
func (e *Engine) Run(ctx context.Context, spec Spec) int {
	return e.Execute(ctx, spec).ExitCode
}

// Execute runs the collector over every configured organization. Rows are
// held until all organizations finish and are written only when the run was
// not aborted.
func (e *Engine) Execute(ctx context.Context, spec Spec) Result {
	cfg := e.cfg
	console := e.stderr
	if cfg.Output.NoConsole {
		console = nil
	}

	orgs, err := cfg.Organizations()
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return Result{ExitCode: ExitInput}
	}

	stamp := e.now().Format(timestampLayout)
	base := filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s-%s", spec.Prefix, stamp))
	res := Result{OutputFile: base + ".csv", LogFile: base + ".log"}

	logFile, err := logging.OpenFile(res.LogFile)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		res.ExitCode = ExitError
		return res
	}
	defer logFile.Close()

	runID := uuid.NewString()
	log := logging.Setup(logging.Options{File: logFile, Console: console, Verbose: cfg.Runtime.Verbose}).
		With("run_id", runID)
	rec := metrics.NewCollector()

	col, err := spec.Build(Env{Config: cfg, Log: log, Metrics: rec, RunID: runID})
	if err != nil {
		log.Error("configuration error", "error", err)
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		res.ExitCode = ExitFatal
		return res
	}

	outMgr, err := e.setupOutputManager(spec, res.OutputFile)
	if err != nil {
		log.Error("output setup failed", "error", err)
		fmt.Fprintf(e.stderr, "Error creating output sinks: %v\n", err)
		res.ExitCode = ExitError
		return res
	}

	if cfg.Runtime.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Runtime.Timeout)
		defer cancel()
	}

	agg := output.NewAggregator(rec)
	runCtx, rc := newRunContext(ctx, runID, log, agg)
	defer rc.release()

	start := time.Now()
	log.Info("run started", "orgs", len(orgs), "output", res.OutputFile,
		"org_workers", cfg.Runtime.MaxOrgWorkers, "project_workers", cfg.Runtime.MaxProjectWorkers)
	_ = outMgr.Write(output.Event{Type: "run.started", RunID: runID, Schema: spec.Schema, Orgs: len(orgs)})

	d := &dispatcher{
		rc:             rc,
		col:            col,
		orgWorkers:     cfg.Runtime.MaxOrgWorkers,
		projectWorkers: cfg.Runtime.MaxProjectWorkers,
	}
	if err := d.run(runCtx, orgs); err != nil {
		rc.Abort(err)
	}
	if !rc.Aborted() && ctx.Err() != nil {
		rc.Abort(fmt.Errorf("run interrupted: %w", context.Cause(ctx)))
	}

	res.ExitCode = ExitOK
	if rc.Aborted() {
		res.ExitCode = ExitFatal
	} else if err := agg.Commit(outMgr); err != nil {
		log.Error("writing rows failed", "error", err)
		res.ExitCode = ExitError
	}

	_ = outMgr.Write(output.Event{Type: "run.finished", RunID: runID, Rows: outMgr.Written(), ExitCode: res.ExitCode})
	if err := outMgr.Close(); err != nil {
		log.Error("closing output failed", "error", err)
		res.ExitCode = max(res.ExitCode, ExitError)
	}

	if cfg.Output.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			log.Warn("writing metrics file failed", "path", cfg.Output.MetricsFile, "error", err)
		}
	}

	res.Summary = agg.Summary()
	res.Summary.RowsWritten = outMgr.Written()
	res.Summary.Aborted = rc.Aborted()
	res.Summary.Elapsed = time.Since(start)
	res.Summary.OutputFile = res.OutputFile
	res.Summary.LogFile = res.LogFile

	logSummary(log, res.Summary, rc.Cause())
	if console != nil {
		output.PrintSummary(console, res.Summary)
		if cause := rc.Cause(); cause != nil {
			fmt.Fprintf(console, "Error: %v\n", cause)
		}
	}
	return res
}

func (e *Engine) setupOutputManager(spec Spec, path string) (*output.Manager, error) {
	outMgr := output.NewManager()

	csvSink, err := output.NewCSVSink(path, spec.Schema)
	if err != nil {
		return nil, err
	}
	if err := outMgr.AddSink(csvSink); err != nil {
		csvSink.Close()
		return nil, err
	}

	// Emit sink (additional structured stream on stdout)
	if emit := e.cfg.Output.Emit; emit != "" {
		es, err := output.NewEmitSink(e.stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

func logSummary(log *slog.Logger, s output.Summary, cause error) {
	attrs := []any{
		"rows", s.RowsWritten,
		"elapsed", s.Elapsed.Truncate(time.Millisecond),
	}
	for _, c := range []output.Counter{
		output.OrgsProcessed, output.OrgsSkipped,
		output.ProjectsProcessed, output.ProjectsSkipped,
		output.ReposProcessed, output.UnitsSkipped, output.UnitsFailed,
	} {
		attrs = append(attrs, string(c), s.Counters[c])
	}
	for _, k := range s.ErrorKinds() {
		attrs = append(attrs, "errors_"+k.String(), s.Errors[k])
	}
	if cause != nil {
		attrs = append(attrs, "cause", cause)
		if errors.Is(cause, outcome.ErrAuth) {
			attrs = append(attrs, "hint", "check that ADO_PAT is valid and not expired")
		}
		log.Error("run aborted", attrs...)
		return
	}
	log.Info("run finished", attrs...)
}
