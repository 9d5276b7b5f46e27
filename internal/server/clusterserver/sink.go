package clusterserver

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// LogService is a service that logs every envelope it receives. It backs
// the paths configured on a receptionist without an embedding program.
type LogService struct {
	path     domain.ServicePath
	logger   *slog.Logger
	received atomic.Uint64
}

var _ domain.Service = (*LogService)(nil)

// NewLogService creates a LogService for path.
func NewLogService(path domain.ServicePath, logger *slog.Logger) *LogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogService{path: path, logger: logger.With("path", string(path))}
}

// Deliver implements domain.Service.
func (s *LogService) Deliver(ctx context.Context, env domain.Envelope) error {
	s.received.Add(1)
	s.logger.InfoContext(ctx, "envelope received",
		"id", env.ID,
		"client_id", string(env.ClientID),
		"payload", env.Payload,
		"forwarded", env.Forwarded)
	return nil
}

// Received returns the number of envelopes delivered so far.
func (s *LogService) Received() uint64 { return s.received.Load() }
