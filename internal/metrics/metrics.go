// Package metrics records API and run counters with Prometheus.
//
// The collector uses its own registry: a run is a batch job, so the registry is
// exported once as a textfile at the end instead of being scraped.
package metrics

import (
	"time"

	"adoinventory/internal/outcome"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the narrow interface used by the fetcher, retry hooks and the aggregator.
type Recorder interface {
	RecordCall(host string, o outcome.Outcome, latency time.Duration)
	RecordRetry(host string, kind outcome.Kind)
	RecordCounter(name string, delta int)
}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	counters *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adoinventory_api_calls_total",
			Help: "API calls by host and outcome.",
		}, []string{"host", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adoinventory_api_call_duration_seconds",
			Help:    "API call latency by host.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adoinventory_api_retries_total",
			Help: "Retried API calls by host and triggering outcome.",
		}, []string{"host", "outcome"}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adoinventory_run_units_total",
			Help: "Run summary counters.",
		}, []string{"counter"}),
	}
	c.registry.MustRegister(c.calls, c.latency, c.retries, c.counters)
	return c
}

func (c *Collector) RecordCall(host string, o outcome.Outcome, latency time.Duration) {
	c.calls.WithLabelValues(host, o.Kind.String()).Inc()
	c.latency.WithLabelValues(host).Observe(latency.Seconds())
}

func (c *Collector) RecordRetry(host string, kind outcome.Kind) {
	c.retries.WithLabelValues(host, kind.String()).Inc()
}

func (c *Collector) RecordCounter(name string, delta int) {
	if delta <= 0 {
		return
	}
	c.counters.WithLabelValues(name).Add(float64(delta))
}

// Registry exposes the registry for export and tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes the current metrics in the node exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCall(string, outcome.Outcome, time.Duration) {}
func (Nop) RecordRetry(string, outcome.Kind)                  {}
func (Nop) RecordCounter(string, int)                         {}
