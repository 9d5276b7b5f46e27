package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// SessionMetrics records client session telemetry.
type SessionMetrics struct {
	state              *prometheus.GaugeVec
	transitions        *prometheus.CounterVec
	discovery          *prometheus.CounterVec
	heartbeatMissed    prometheus.Counter
	clusterUnavailable prometheus.Counter
	bufferOverflow     prometheus.Counter
	deliveries         *prometheus.CounterVec
	contactPoints      prometheus.Gauge
}

// NewSessionMetrics creates the session metrics and registers them with r.
func NewSessionMetrics(r *Registry) *SessionMetrics {
	m := &SessionMetrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "state_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		discovery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "discovery_responses_total",
			Help:      "GetContacts responses by outcome.",
		}, []string{"outcome"}),
		heartbeatMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "heartbeat_missed_total",
			Help:      "Heartbeats to the active contact that were not acknowledged.",
		}),
		clusterUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "cluster_unavailable_total",
			Help:      "Times every contact point exceeded the failure ceiling.",
		}),
		bufferOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "buffer_overflow_total",
			Help:      "Pending messages dropped because the buffer was full.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "deliveries_total",
			Help:      "Envelope deliveries by mode and result.",
		}, []string{"mode", "result"}),
		contactPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "contact_points",
			Help:      "Number of known contact points.",
		}),
	}

	r.MustRegister(
		m.state,
		m.transitions,
		m.discovery,
		m.heartbeatMissed,
		m.clusterUnavailable,
		m.bufferOverflow,
		m.deliveries,
		m.contactPoints,
	)
	return m
}

var sessionStates = []domain.SessionState{
	domain.StateEstablishing,
	domain.StateEstablished,
	domain.StateReestablishing,
	domain.StateStopped,
}

// StateChanged implements session.Metrics.
func (m *SessionMetrics) StateChanged(state domain.SessionState) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
	m.transitions.WithLabelValues(state.String()).Inc()
}

// DiscoveryOutcome implements session.Metrics.
func (m *SessionMetrics) DiscoveryOutcome(outcome string) {
	m.discovery.WithLabelValues(outcome).Inc()
}

// HeartbeatMissed implements session.Metrics.
func (m *SessionMetrics) HeartbeatMissed() {
	m.heartbeatMissed.Inc()
}

// ClusterUnavailable implements session.Metrics.
func (m *SessionMetrics) ClusterUnavailable() {
	m.clusterUnavailable.Inc()
}

// BufferOverflow implements session.Metrics.
func (m *SessionMetrics) BufferOverflow() {
	m.bufferOverflow.Inc()
}

// Delivered implements session.Metrics.
func (m *SessionMetrics) Delivered(mode domain.DeliveryMode, delivered, failed int) {
	if delivered > 0 {
		m.deliveries.WithLabelValues(mode.String(), "delivered").Add(float64(delivered))
	}
	if failed > 0 {
		m.deliveries.WithLabelValues(mode.String(), "failed").Add(float64(failed))
	}
}

// ContactPoints implements session.Metrics.
func (m *SessionMetrics) ContactPoints(n int) {
	m.contactPoints.Set(float64(n))
}
