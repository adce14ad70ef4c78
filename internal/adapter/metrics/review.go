package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReviewMetrics holds Prometheus metrics for admin decisions and exports.
type ReviewMetrics struct {
	Decisions      *prometheus.CounterVec
	DecisionTime   prometheus.Histogram
	ExportsCreated *prometheus.CounterVec
	ExportedRows   prometheus.Counter
}

// NewReviewMetrics creates and registers review metrics on the given registry.
func NewReviewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	m := &ReviewMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_decisions_total",
			Help:      "Total number of review decisions, by kind (earning, collection) and decision.",
		}, []string{"kind", "decision"}),
		DecisionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_decision_duration_seconds",
			Help:      "Duration of review decision round-trips to the database in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		ExportsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_created_total",
			Help:      "Total number of collection exports generated, by format.",
		}, []string{"format"}),
		ExportedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exported_collections_total",
			Help:      "Total number of collections marked as exported.",
		}),
	}

	reg.MustRegister(m.Decisions, m.DecisionTime, m.ExportsCreated, m.ExportedRows)
	return m
}
