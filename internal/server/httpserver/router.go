package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/gatemesh-go/internal/telemetry/metric"
)

// Mount is a handler served under a path prefix.
type Mount struct {
	// Name labels the mount in request metrics.
	Name    string
	Path    string
	Handler http.Handler
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Node is reported by the health endpoints.
	Node string

	Mounts []Mount

	// Metrics serves /metrics and instruments the mounts. Nil disables both.
	Metrics *metric.Registry

	// Ready reports whether the node can serve clients. Nil means always.
	Ready func() error

	Logger *slog.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	base := []Middleware{RequestID(cfg.Logger), Recover(cfg.Logger), AccessLog(cfg.Logger)}

	mux := http.NewServeMux()
	mux.Handle("GET /health", Chain(http.HandlerFunc(cfg.handleHealth), base...))
	mux.Handle("GET /ready", Chain(http.HandlerFunc(cfg.handleReady), base...))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(cfg.Logger)))
	}

	for _, m := range cfg.Mounts {
		h := m.Handler
		if cfg.Metrics != nil {
			h = cfg.Metrics.Instrument(m.Name, h)
		}
		mux.Handle(m.Path, Chain(h, base...))
	}

	return mux
}

// handleHealth handles GET /health.
func (cfg RouterConfig) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"node":   cfg.Node,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready.
func (cfg RouterConfig) handleReady(w http.ResponseWriter, r *http.Request) {
	if cfg.Ready != nil {
		if err := cfg.Ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"node":   cfg.Node,
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"node":   cfg.Node,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
