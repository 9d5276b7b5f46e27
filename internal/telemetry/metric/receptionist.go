package metric

import "github.com/prometheus/client_golang/prometheus"

// ReceptionistMetrics records receptionist registry telemetry.
type ReceptionistMetrics struct {
	clientUp          prometheus.Counter
	clientUnreachable prometheus.Counter
	knownClients      prometheus.Gauge
	deliveries        *prometheus.CounterVec
	rateLimited       prometheus.Counter
	peers             prometheus.Gauge
}

// NewReceptionistMetrics creates the receptionist metrics and registers
// them with r.
func NewReceptionistMetrics(r *Registry) *ReceptionistMetrics {
	m := &ReceptionistMetrics{
		clientUp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "receptionist",
			Name:      "client_up_total",
			Help:      "Cluster clients that became known.",
		}),
		clientUnreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "receptionist",
			Name:      "client_unreachable_total",
			Help:      "Cluster clients evicted after the acceptable heartbeat pause.",
		}),
		knownClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "receptionist",
			Name:      "known_clients",
			Help:      "Cluster clients currently considered reachable.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "receptionist",
			Name:      "deliveries_total",
			Help:      "Envelopes handled by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "receptionist",
			Name:      "rate_limited_total",
			Help:      "Client requests rejected by the per-client rate limit.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "receptionist",
			Name:      "peers",
			Help:      "Live peer receptionists in the gossip cluster.",
		}),
	}

	r.MustRegister(m.clientUp, m.clientUnreachable, m.knownClients, m.deliveries, m.rateLimited, m.peers)
	return m
}

// ClientUp implements receptionist.Metrics.
func (m *ReceptionistMetrics) ClientUp() { m.clientUp.Inc() }

// ClientUnreachable implements receptionist.Metrics.
func (m *ReceptionistMetrics) ClientUnreachable() { m.clientUnreachable.Inc() }

// KnownClients implements receptionist.Metrics.
func (m *ReceptionistMetrics) KnownClients(n int) { m.knownClients.Set(float64(n)) }

// Delivery implements receptionist.Metrics.
func (m *ReceptionistMetrics) Delivery(outcome string) { m.deliveries.WithLabelValues(outcome).Inc() }

// RateLimited implements receptionist.Metrics.
func (m *ReceptionistMetrics) RateLimited() { m.rateLimited.Inc() }

// PeerCount records the number of live peer receptionists.
func (m *ReceptionistMetrics) PeerCount(n int) { m.peers.Set(float64(n)) }
