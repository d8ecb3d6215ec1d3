// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for edits
const (
	OutcomeApplied      = "applied"
	OutcomeNoop         = "noop"
	OutcomeLockConflict = "lock_conflict"
	OutcomeWriteFailure = "write_failure"
	OutcomeError        = "error"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and records
// nothing, so components can take it unconditionally.
type Metrics struct {
	edits        *prometheus.CounterVec
	editDuration prometheus.Histogram
	versions     prometheus.Counter
	reverts      *prometheus.CounterVec
	commits      *prometheus.CounterVec
	pending      prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		edits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filevc",
			Name:      "edits_total",
			Help:      "File edits by outcome.",
		}, []string{"outcome"}),
		editDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "filevc",
			Name:      "edit_duration_seconds",
			Help:      "Time from lock acquisition to release for applied edits.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		versions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "filevc",
			Name:      "versions_total",
			Help:      "Versions appended to the log.",
		}),
		reverts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filevc",
			Name:      "reverts_total",
			Help:      "Revert operations by result.",
		}, []string{"result"}),
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filevc",
			Name:      "commits_total",
			Help:      "Commit operations by result.",
		}, []string{"result"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "filevc",
			Name:      "pending_changes",
			Help:      "Uncommitted changes in the staging area.",
		}),
	}
}

func (m *Metrics) Edit(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.edits.WithLabelValues(outcome).Inc()
	if outcome == OutcomeApplied {
		m.editDuration.Observe(seconds)
	}
}

func (m *Metrics) VersionAdded() {
	if m == nil {
		return
	}
	m.versions.Inc()
}

func (m *Metrics) Revert(err error) {
	if m == nil {
		return
	}
	m.reverts.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Commit(err error) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Pending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
