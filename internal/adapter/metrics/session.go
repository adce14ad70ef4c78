package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics holds Prometheus metrics for the server-side token session store.
type SessionMetrics struct {
	Lookups     *prometheus.CounterVec
	Refreshes   *prometheus.CounterVec
	Revocations prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "lookups_total",
			Help:      "Total number of token session lookups, by result (hit, miss, error).",
		}, []string{"result"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "upstream_refreshes_total",
			Help:      "Total number of refresh-token grants sent to the auth provider, by result.",
		}, []string{"result"}),
		Revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "revocations_total",
			Help:      "Total number of session revocations published to other instances.",
		}),
	}

	reg.MustRegister(m.Lookups, m.Refreshes, m.Revocations)
	return m
}
