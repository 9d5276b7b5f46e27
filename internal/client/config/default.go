package config

import (
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/session"
)

// DefaultRequestTimeout bounds unary receptionist RPCs.
const DefaultRequestTimeout = 5 * time.Second

// Default returns the default client configuration. InitialContacts is
// empty and must be supplied.
func Default() *ClientConfig {
	s := session.DefaultConfig()
	return &ClientConfig{
		Client: ClientSection{
			HeartbeatInterval:               s.HeartbeatInterval,
			AcceptableHeartbeatPause:        s.AcceptableHeartbeatPause,
			EstablishingGetContactsInterval: s.EstablishingGetContactsInterval,
			RefreshContactsInterval:         s.RefreshContactsInterval,
			ReconnectBackoffMin:             s.ReconnectBackoffMin,
			ReconnectBackoffMax:             s.ReconnectBackoffMax,
			BufferSize:                      s.BufferSize,
			ContactFailureCeiling:           s.ContactFailureCeiling,
			LocalAffinityFallback:           s.LocalAffinityFallback,
			FlushOnStop:                     s.FlushOnStop,
			RequestTimeout:                  DefaultRequestTimeout,
		},
		Log: LogSection{
			Level:  "warn",
			Format: "text",
		},
	}
}
