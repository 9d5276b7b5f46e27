package config

import (
	"log/slog"

	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
)

// LogValue implements slog.LogValuer. File paths of TLS material are
// reported only as set or unset.
func (c *ServerConfig) LogValue() slog.Value {
	r := c.Receptionist
	return slog.GroupValue(
		slog.String("node_name", r.NodeName),
		slog.String("rpc_addr", r.RPCAddr),
		slog.String("advertise_addr", r.AdvertiseAddr),
		slog.String("gossip_addr", r.GossipAddr),
		slog.Int("gossip_port", r.GossipPort),
		slog.Any("seeds", r.Seeds),
		slog.Duration("acceptable_heartbeat_pause", r.AcceptableHeartbeatPause),
		slog.Int("number_of_contacts", r.NumberOfContacts),
		slog.Float64("client_rate_limit", r.ClientRateLimit),
		slog.Any("services", r.Services),
		slog.Bool("metrics", r.Metrics),
		slog.String("tls", maskPath(r.TLS.CertFile)),
		slog.String("log_level", c.Log.Level),
	)
}

// LoggerConfig returns the logger configuration of the log section.
func (l LogSection) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.AddSource = l.AddSource
	return cfg
}

func maskPath(p string) string {
	if p == "" {
		return "off"
	}
	return "on"
}
