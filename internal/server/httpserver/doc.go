// Package httpserver provides the receptionist's HTTP surface.
//
// It serves the Connect RPC handlers next to the operational endpoints:
//
//   - Health endpoints: /health, /ready
//   - Metrics endpoint: /metrics
//   - RPC mounts: one path prefix per Connect service
//
// Every route except /metrics runs behind RequestID, Recover and AccessLog.
// RequestID puts a logger tagged with the request ID into the context;
// handlers reach it through logger.From.
package httpserver
