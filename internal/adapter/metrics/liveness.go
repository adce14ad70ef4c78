package metrics

import "github.com/prometheus/client_golang/prometheus"

// LivenessMetrics holds Prometheus metrics for console liveness managers.
// A nil *LivenessMetrics is valid and records nothing.
type LivenessMetrics struct {
	ActiveManagers prometheus.Gauge
	Refreshes      *prometheus.CounterVec
	Probes         *prometheus.CounterVec
	Reconnects     prometheus.Counter
	Escalations    prometheus.Counter
	SkippedTicks   *prometheus.CounterVec
	Broadcasts     *prometheus.CounterVec
}

// NewLivenessMetrics creates and registers liveness metrics on the given registry.
func NewLivenessMetrics(reg prometheus.Registerer) *LivenessMetrics {
	m := &LivenessMetrics{
		ActiveManagers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "active_managers",
			Help:      "Number of running liveness managers.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "session_refreshes_total",
			Help:      "Total number of session refresh attempts, by trigger and result.",
		}, []string{"trigger", "result"}),
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "probes_total",
			Help:      "Total number of connection probes, by result (ok, error, timeout).",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "reconnects_total",
			Help:      "Total number of realtime reconnect requests.",
		}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "escalations_total",
			Help:      "Total number of forced logouts after a failed session refresh.",
		}),
		SkippedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "skipped_ticks_total",
			Help:      "Total number of ticks skipped because the previous run was still in flight, by task.",
		}, []string{"task"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "refresh_broadcasts_total",
			Help:      "Total number of refresh-requested broadcasts, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveManagers, m.Refreshes, m.Probes, m.Reconnects, m.Escalations, m.SkippedTicks, m.Broadcasts)
	return m
}

// ManagerStarted increments the running manager gauge.
func (m *LivenessMetrics) ManagerStarted() {
	if m != nil {
		m.ActiveManagers.Inc()
	}
}

// ManagerStopped decrements the running manager gauge.
func (m *LivenessMetrics) ManagerStopped() {
	if m != nil {
		m.ActiveManagers.Dec()
	}
}

func (m *LivenessMetrics) Refresh(trigger, result string) {
	if m != nil {
		m.Refreshes.WithLabelValues(trigger, result).Inc()
	}
}

func (m *LivenessMetrics) Probe(result string) {
	if m != nil {
		m.Probes.WithLabelValues(result).Inc()
	}
}

func (m *LivenessMetrics) Reconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *LivenessMetrics) Escalation() {
	if m != nil {
		m.Escalations.Inc()
	}
}

func (m *LivenessMetrics) SkippedTick(task string) {
	if m != nil {
		m.SkippedTicks.WithLabelValues(task).Inc()
	}
}

func (m *LivenessMetrics) Broadcast(reason string) {
	if m != nil {
		m.Broadcasts.WithLabelValues(reason).Inc()
	}
}
