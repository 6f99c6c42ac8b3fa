package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type promMetrics struct {
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	approvals    *prometheus.CounterVec
}

func mustNewPromMetrics(reg prometheus.Registerer, namespace string) *promMetrics {
	m := &promMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_calls_total",
			Help:      "Agent dispatch attempts by agent and status.",
		}, []string{"agent", "status"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_call_duration_seconds",
			Help:      "Latency of agent dispatch attempts.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"agent"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed orchestrator turns by mode.",
		}, []string{"mode"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end latency of orchestrator turns.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_total",
			Help:      "Approval state transitions by outcome.",
		}, []string{"outcome"}),
	}

	m.calls = register(reg, m.calls)
	m.callDuration = register(reg, m.callDuration)
	m.turns = register(reg, m.turns)
	m.turnDuration = register(reg, m.turnDuration)
	m.approvals = register(reg, m.approvals)

	return m
}

// register adds c to reg, reusing an already registered collector of the
// same type so several Collectors can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *promMetrics) observeCall(rec CallRecord) {
	status := "success"
	if !rec.Success {
		status = "failure"
	}
	m.calls.WithLabelValues(rec.Agent, status).Inc()
	m.callDuration.WithLabelValues(rec.Agent).Observe(rec.Latency.Seconds())
}
