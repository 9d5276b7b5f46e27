package config

import "time"

// ServerConfig is the root configuration of gatemesh-receptionist.
type ServerConfig struct {
	Receptionist ReceptionistSection `koanf:"receptionist"`
	Log          LogSection          `koanf:"log"`
}

// ReceptionistSection configures one receptionist node.
type ReceptionistSection struct {
	// NodeName identifies the node in the gossip cluster. Generated when
	// empty.
	NodeName string `koanf:"node-name"`

	// RPCAddr is the listen address of the RPC endpoint.
	RPCAddr string `koanf:"rpc-addr"`
	// AdvertiseAddr is the address handed to clients, e.g.
	// "https://rcp-1.example:7400". Defaults to the listen address.
	AdvertiseAddr string `koanf:"advertise-addr"`

	// GossipAddr and GossipPort are the memberlist bind address.
	GossipAddr          string `koanf:"gossip-addr"`
	GossipPort          int    `koanf:"gossip-port"`
	GossipAdvertiseAddr string `koanf:"gossip-advertise-addr"`
	GossipAdvertisePort int    `koanf:"gossip-advertise-port"`

	// Seeds are gossip addresses of nodes to join. Empty bootstraps a new
	// cluster.
	Seeds            []string      `koanf:"seeds"`
	PushPullInterval time.Duration `koanf:"push-pull-interval"`

	// HeartbeatInterval is the interval clients are expected to probe at.
	HeartbeatInterval        time.Duration `koanf:"heartbeat-interval"`
	AcceptableHeartbeatPause time.Duration `koanf:"acceptable-heartbeat-pause"`
	FailureDetectionInterval time.Duration `koanf:"failure-detection-interval"`

	// NumberOfContacts caps the contacts returned to a client. Zero returns
	// all receptionists.
	NumberOfContacts int `koanf:"number-of-contacts"`

	// ClientRateLimit caps heartbeat and discovery requests per client per
	// second. Zero disables limiting.
	ClientRateLimit float64 `koanf:"client-rate-limit"`
	ClientRateBurst int     `koanf:"client-rate-burst"`

	ForwardTimeout time.Duration `koanf:"forward-timeout"`

	// Services are paths served by the built-in logging service.
	Services []string `koanf:"services"`

	// Metrics enables /metrics.
	Metrics bool `koanf:"metrics"`

	TLS TLSSection `koanf:"tls"`
}

// TLSSection configures HTTPS on the RPC endpoint.
type TLSSection struct {
	CertFile string `koanf:"cert-file"`
	KeyFile  string `koanf:"key-file"`
	// CAFile is trusted when forwarding to peers over HTTPS.
	CAFile string `koanf:"ca-file"`
}

// LogSection configures logging.
type LogSection struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	AddSource bool   `koanf:"add-source"`
}
