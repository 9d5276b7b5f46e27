package config

import (
	"log/slog"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/session"
	"github.com/yndnr/gatemesh-go/internal/infra/tlsroots"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
	"github.com/yndnr/gatemesh-go/internal/transport"
)

// Collaborators are the runtime dependencies of a session that do not come
// from configuration.
type Collaborators struct {
	Transport session.Transport
	Cache     session.ContactCache
	Metrics   session.Metrics
	Logger    *slog.Logger
}

// SessionConfig converts the client section to a session configuration and
// validates it.
func (c *ClientConfig) SessionConfig(deps Collaborators) (session.Config, error) {
	sc := c.Client.sessionConfig()
	sc.Transport = deps.Transport
	sc.Cache = deps.Cache
	sc.Metrics = deps.Metrics
	sc.Logger = deps.Logger
	if err := sc.Validate(); err != nil {
		return session.Config{}, err
	}
	return sc, nil
}

// TransportConfig returns the receptionist transport settings, loading the
// CA file when set.
func (c *ClientConfig) TransportConfig(log *slog.Logger) (transport.Config, error) {
	pool, err := tlsroots.LoadPool(c.Client.TLSCAFile)
	if err != nil {
		return transport.Config{}, domain.ErrInvalidConfiguration.WithCause(err)
	}
	return transport.Config{
		Timeout:   c.Client.RequestTimeout,
		TLSConfig: pool.ClientTLSConfig(),
		Logger:    log,
	}, nil
}

// LoggerConfig returns the logger configuration of the log section.
func (c *ClientConfig) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

func (s *ClientSection) sessionConfig() session.Config {
	contacts := make([]domain.EndpointID, 0, len(s.InitialContacts))
	for _, addr := range s.InitialContacts {
		contacts = append(contacts, domain.NormalizeEndpoint(addr))
	}
	return session.Config{
		ClientID:                        domain.ClientID(s.ClientID),
		InitialContacts:                 contacts,
		HeartbeatInterval:               s.HeartbeatInterval,
		AcceptableHeartbeatPause:        s.AcceptableHeartbeatPause,
		HeartbeatProbeTimeout:           s.HeartbeatProbeTimeout,
		EstablishingGetContactsInterval: s.EstablishingGetContactsInterval,
		RefreshContactsInterval:         s.RefreshContactsInterval,
		ReconnectBackoffMin:             s.ReconnectBackoffMin,
		ReconnectBackoffMax:             s.ReconnectBackoffMax,
		ReconnectTimeout:                s.ReconnectTimeout,
		BufferSize:                      s.BufferSize,
		ContactFailureCeiling:           s.ContactFailureCeiling,
		LocalAffinityFallback:           s.LocalAffinityFallback,
		FlushOnStop:                     s.FlushOnStop,
	}
}
