package config

import "time"

// ClientConfig is the root configuration of a client process.
type ClientConfig struct {
	Client ClientSection `koanf:"client"`
	Log    LogSection    `koanf:"log"`
}

// ClientSection holds the session options.
type ClientSection struct {
	// ClientID is the identity presented to receptionists. Generated when
	// empty.
	ClientID string `koanf:"client-id"`

	// InitialContacts are the seed receptionist addresses.
	InitialContacts []string `koanf:"initial-contacts"`

	HeartbeatInterval        time.Duration `koanf:"heartbeat-interval"`
	AcceptableHeartbeatPause time.Duration `koanf:"acceptable-heartbeat-pause"`
	HeartbeatProbeTimeout    time.Duration `koanf:"heartbeat-probe-timeout"`

	EstablishingGetContactsInterval time.Duration `koanf:"establishing-get-contacts-interval"`
	RefreshContactsInterval         time.Duration `koanf:"refresh-contacts-interval"`

	ReconnectBackoffMin time.Duration `koanf:"reconnect-backoff-min"`
	ReconnectBackoffMax time.Duration `koanf:"reconnect-backoff-max"`
	// ReconnectTimeout of zero retries forever.
	ReconnectTimeout time.Duration `koanf:"reconnect-timeout"`

	BufferSize            int  `koanf:"buffer-size"`
	ContactFailureCeiling uint `koanf:"contact-failure-ceiling"`
	LocalAffinityFallback bool `koanf:"local-affinity-fallback"`
	FlushOnStop           bool `koanf:"flush-on-stop"`

	// RequestTimeout bounds one unary RPC to a receptionist.
	RequestTimeout time.Duration `koanf:"request-timeout"`

	// ContactCacheDir enables the persistent contact cache.
	ContactCacheDir string `koanf:"contact-cache-dir"`

	// TLSCAFile is trusted, besides the system roots, for https contacts.
	TLSCAFile string `koanf:"tls-ca-file"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
