// Package metrics exposes pipeline counters and timings for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "churn"

// Registry owns the pipeline collectors. Each Registry registers into its
// own prometheus.Registry so tests and multiple servers do not collide.
type Registry struct {
	reg *prometheus.Registry

	rowsRead      *prometheus.CounterVec
	rowsSkipped   *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	profiles      *prometheus.CounterVec
	segments      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
}

// NewRegistry creates a registry with Go runtime and process collectors
// plus the pipeline collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		rowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rows_total",
			Help:      "Source rows read, by source.",
		}, []string{"source"}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rows_skipped_total",
			Help:      "Source rows dropped for a missing or invalid email, by source.",
		}, []string{"source"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_emails_total",
			Help:      "Repeated emails within a source, by source.",
		}, []string{"source"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_total",
			Help:      "Unified profiles produced, by churn status.",
		}, []string{"churn_status"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scored_profiles_total",
			Help:      "Scored active profiles, by risk segment.",
		}, []string{"segment"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage invocations, by stage and outcome.",
		}, []string{"stage", "outcome"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.rowsRead, r.rowsSkipped, r.duplicates, r.profiles, r.segments,
		r.stageDuration, r.runs,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// SourceRows records rows read and skipped for one source.
func (r *Registry) SourceRows(source string, read, skipped, duplicates int) {
	r.rowsRead.WithLabelValues(source).Add(float64(read))
	r.rowsSkipped.WithLabelValues(source).Add(float64(skipped))
	r.duplicates.WithLabelValues(source).Add(float64(duplicates))
}

// Profiles records unified profiles for one churn status.
func (r *Registry) Profiles(status string, n int) {
	r.profiles.WithLabelValues(status).Add(float64(n))
}

// Segment records scored active profiles for one risk segment.
func (r *Registry) Segment(segment string, n int) {
	r.segments.WithLabelValues(segment).Add(float64(n))
}

// ObserveStage records the latency and outcome of one stage run.
func (r *Registry) ObserveStage(stage string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	r.runs.WithLabelValues(stage, outcome).Inc()
}
