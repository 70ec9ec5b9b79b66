package output

import (
	"sync"
	"time"

	"adoinventory/internal/data"
	"adoinventory/internal/metrics"
	"adoinventory/internal/outcome"
)

// Counter names a run summary counter.
type Counter string

const (
	OrgsProcessed     Counter = "orgs_processed"
	OrgsSkipped       Counter = "orgs_skipped"
	ProjectsProcessed Counter = "projects_processed"
	ProjectsSkipped   Counter = "projects_skipped"
	ReposProcessed    Counter = "repos_processed"
	UnitsSkipped      Counter = "units_skipped"
	UnitsFailed       Counter = "units_failed"
)

// Aggregator collects the records and counters of a run. Record, Increment
// and Error are safe for concurrent use. Records are held until Commit.
type Aggregator struct {
	mu       sync.Mutex
	records  []data.Record
	counters map[Counter]int
	errors   map[outcome.Kind]int
	metrics  metrics.Recorder
}

func NewAggregator(rec metrics.Recorder) *Aggregator {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Aggregator{
		counters: make(map[Counter]int),
		errors:   make(map[outcome.Kind]int),
		metrics:  rec,
	}
}

// Record takes ownership of r.
func (a *Aggregator) Record(r data.Record) {
	if r == nil {
		return
	}
	a.mu.Lock()
	a.records = append(a.records, r)
	a.mu.Unlock()
}

func (a *Aggregator) Increment(c Counter, delta int) {
	if delta == 0 {
		return
	}
	a.mu.Lock()
	a.counters[c] += delta
	a.mu.Unlock()
	a.metrics.RecordCounter(string(c), delta)
}

// Error counts one non-success outcome by kind.
func (a *Aggregator) Error(k outcome.Kind) {
	if k == outcome.Success {
		return
	}
	a.mu.Lock()
	a.errors[k]++
	a.mu.Unlock()
}

// Records returns a snapshot of the held records.
func (a *Aggregator) Records() []data.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]data.Record, len(a.records))
	copy(out, a.records)
	return out
}

// Commit hands every held record to m.
func (a *Aggregator) Commit(m *Manager) error {
	return m.Commit(a.Records())
}

// Summary is a point-in-time copy of the run counters.
type Summary struct {
	Counters map[Counter]int
	Errors   map[outcome.Kind]int
	Held     int

	// Filled in by the run controller.
	RowsWritten int
	Aborted     bool
	Elapsed     time.Duration
	OutputFile  string
	LogFile     string
}

func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Summary{
		Counters: make(map[Counter]int, len(a.counters)),
		Errors:   make(map[outcome.Kind]int, len(a.errors)),
		Held:     len(a.records),
	}
	for k, v := range a.counters {
		s.Counters[k] = v
	}
	for k, v := range a.errors {
		s.Errors[k] = v
	}
	return s
}

// ErrorKinds returns the kinds with a non-zero count in a stable order.
func (s Summary) ErrorKinds() []outcome.Kind {
	var out []outcome.Kind
	for _, k := range outcome.Kinds() {
		if s.Errors[k] > 0 {
			out = append(out, k)
		}
	}
	return out
}
