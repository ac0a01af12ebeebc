// Package metrics exposes Prometheus metrics for sync workflows.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all postsync metrics.
	Namespace = "postsync"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	SinkObjectStore = "object_store"
	SinkLocalFile   = "local_file"
	SinkSpreadsheet = "spreadsheet"
)

// Metrics holds the workflow collectors. A nil *Metrics records nothing.
type Metrics struct {
	WorkflowsTotal          *prometheus.CounterVec
	WorkflowDurationSeconds prometheus.Histogram
	StatusChecksTotal       *prometheus.CounterVec
	RowsInsertedTotal       prometheus.Counter
	RowsSkippedTotal        prometheus.Counter
	SinkWritesTotal         *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		WorkflowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "workflows_total",
				Help:      "Workflow invocations by final state",
			},
			[]string{"state"},
		),
		WorkflowDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "workflow_duration_seconds",
				Help:      "Wall time of workflow invocations",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		StatusChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "status_checks_total",
				Help:      "Provider status checks by observed run status",
			},
			[]string{"status"},
		),
		RowsInsertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rows_inserted_total",
				Help:      "Rows appended to the persisted dataset",
			},
		),
		RowsSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rows_skipped_total",
				Help:      "Candidate rows dropped as duplicates or for a missing URL",
			},
		),
		SinkWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "sink_writes_total",
				Help:      "Sink write attempts by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
	}
}

// WorkflowFinished records one workflow invocation.
func (m *Metrics) WorkflowFinished(state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WorkflowsTotal.WithLabelValues(state).Inc()
	m.WorkflowDurationSeconds.Observe(elapsed.Seconds())
}

// StatusChecked records one status check.
func (m *Metrics) StatusChecked(status string) {
	if m == nil {
		return
	}
	m.StatusChecksTotal.WithLabelValues(status).Inc()
}

// RowsMerged records the merge counts of one persistence pass.
func (m *Metrics) RowsMerged(inserted, skipped int) {
	if m == nil {
		return
	}
	m.RowsInsertedTotal.Add(float64(inserted))
	m.RowsSkippedTotal.Add(float64(skipped))
}

// SinkWrite records one sink write attempt.
func (m *Metrics) SinkWrite(sink string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.SinkWritesTotal.WithLabelValues(sink, outcome).Inc()
}
