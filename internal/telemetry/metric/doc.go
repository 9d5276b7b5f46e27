// Package metric provides Prometheus metrics for gatemesh.
//
// A Registry wraps a private prometheus.Registry and exposes it over HTTP.
// SessionMetrics and ReceptionistMetrics adapt it to the telemetry
// interfaces of the client session and the receptionist registry.
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
