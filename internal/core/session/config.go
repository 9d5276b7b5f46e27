package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/contact"
	"github.com/yndnr/gatemesh-go/internal/core/delivery"
	"github.com/yndnr/gatemesh-go/internal/core/discovery"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/heartbeat"
)

// MaxBufferSize is the largest accepted pending buffer capacity.
const MaxBufferSize = 10000

// Transport is the receptionist RPC surface a session uses.
type Transport interface {
	discovery.Requester
	heartbeat.Prober
	delivery.Transport
}

// ContactCache persists the contact set across restarts.
type ContactCache interface {
	Load(ctx context.Context) ([]domain.EndpointID, error)
	Store(ctx context.Context, contacts []domain.EndpointID) error
}

// Metrics receives session telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	StateChanged(state domain.SessionState)
	DiscoveryOutcome(outcome string)
	HeartbeatMissed()
	ClusterUnavailable()
	BufferOverflow()
	Delivered(mode domain.DeliveryMode, delivered, failed int)
	ContactPoints(n int)
}

// Config configures a Session.
type Config struct {
	ClientID        domain.ClientID
	InitialContacts []domain.EndpointID

	HeartbeatInterval        time.Duration
	AcceptableHeartbeatPause time.Duration
	// HeartbeatProbeTimeout bounds one probe. Defaults to HeartbeatInterval.
	HeartbeatProbeTimeout time.Duration

	EstablishingGetContactsInterval time.Duration
	RefreshContactsInterval         time.Duration

	ReconnectBackoffMin time.Duration
	ReconnectBackoffMax time.Duration
	// ReconnectTimeout stops the session once it has been out of Established
	// this long. Zero retries forever.
	ReconnectTimeout time.Duration

	// BufferSize is the pending buffer capacity. Zero disables buffering.
	BufferSize            int
	ContactFailureCeiling uint
	LocalAffinityFallback bool
	// FlushOnStop lets messages already handed to the delivery worker finish
	// on Stop instead of being dropped.
	FlushOnStop bool

	Transport Transport
	Cache     ContactCache
	Metrics   Metrics
	Logger    *slog.Logger

	// OnBufferOverflow is called with the message dropped to make room.
	OnBufferOverflow func(dropped domain.PendingMessage)
	// OnDeadLetter is called for every message discarded on stop.
	OnDeadLetter func(msg domain.PendingMessage, reason error)
}

// DefaultConfig returns a configuration with the documented defaults and no
// contacts or transport.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:               2 * time.Second,
		AcceptableHeartbeatPause:        13 * time.Second,
		EstablishingGetContactsInterval: 3 * time.Second,
		RefreshContactsInterval:         60 * time.Second,
		ReconnectBackoffMin:             time.Second,
		ReconnectBackoffMax:             30 * time.Second,
		BufferSize:                      1000,
		ContactFailureCeiling:           contact.DefaultFailureCeiling,
		LocalAffinityFallback:           true,
		FlushOnStop:                     true,
	}
}

// Validate checks the configuration. It returns ErrInvalidConfiguration
// describing the first problem found.
func (c *Config) Validate() error {
	if err := c.ValidateOptions(); err != nil {
		return err
	}
	if c.Transport == nil {
		return invalid("transport is required")
	}
	return nil
}

// ValidateOptions checks the tunable options only, leaving out the
// collaborators such as Transport.
func (c *Config) ValidateOptions() error {
	if len(c.InitialContacts) == 0 {
		return invalid("initial-contacts must not be empty")
	}
	for _, addr := range c.InitialContacts {
		if addr == "" {
			return invalid("initial-contacts contains an empty address")
		}
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"heartbeat-interval", c.HeartbeatInterval},
		{"acceptable-heartbeat-pause", c.AcceptableHeartbeatPause},
		{"establishing-get-contacts-interval", c.EstablishingGetContactsInterval},
		{"refresh-contacts-interval", c.RefreshContactsInterval},
		{"reconnect-backoff-min", c.ReconnectBackoffMin},
		{"reconnect-backoff-max", c.ReconnectBackoffMax},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return invalid(fmt.Sprintf("%s must be positive, got %s", p.name, p.value))
		}
	}

	if c.AcceptableHeartbeatPause < c.HeartbeatInterval {
		return invalid("acceptable-heartbeat-pause must not be shorter than heartbeat-interval")
	}
	if c.ReconnectBackoffMin > c.ReconnectBackoffMax {
		return invalid("reconnect-backoff-min must not exceed reconnect-backoff-max")
	}
	if c.HeartbeatProbeTimeout < 0 || c.ReconnectTimeout < 0 {
		return invalid("timeouts must not be negative")
	}
	if c.BufferSize < 0 || c.BufferSize > MaxBufferSize {
		return invalid(fmt.Sprintf("buffer-size must be between 0 and %d, got %d", MaxBufferSize, c.BufferSize))
	}
	return nil
}

func invalid(details string) error {
	return domain.ErrInvalidConfiguration.WithDetails(details)
}

type nopMetrics struct{}

func (nopMetrics) StateChanged(domain.SessionState)        {}
func (nopMetrics) DiscoveryOutcome(string)                 {}
func (nopMetrics) HeartbeatMissed()                        {}
func (nopMetrics) ClusterUnavailable()                     {}
func (nopMetrics) BufferOverflow()                         {}
func (nopMetrics) Delivered(domain.DeliveryMode, int, int) {}
func (nopMetrics) ContactPoints(int)                       {}
