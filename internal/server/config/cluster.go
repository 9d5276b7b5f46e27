package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/server/clusterserver"
	"github.com/yndnr/gatemesh-go/internal/telemetry/metric"
)

// ToClusterConfig converts a verified ServerConfig to clusterserver.Config.
// An empty node name is replaced by a generated one.
func ToClusterConfig(cfg *ServerConfig, metrics *metric.Registry, logger *slog.Logger) (clusterserver.Config, error) {
	if cfg == nil {
		return clusterserver.Config{}, fmt.Errorf("server config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := cfg.Receptionist
	nodeName := r.NodeName
	if nodeName == "" {
		generated, err := generateNodeName()
		if err != nil {
			return clusterserver.Config{}, fmt.Errorf("generate node name: %w", err)
		}
		nodeName = generated
		logger.Info("generated receptionist node name", "node", nodeName)
	}

	services := make([]domain.ServicePath, 0, len(r.Services))
	for _, p := range r.Services {
		services = append(services, domain.ServicePath(p))
	}

	if !r.Metrics {
		metrics = nil
	}

	return clusterserver.Config{
		NodeName:                 nodeName,
		ListenAddr:               r.RPCAddr,
		AdvertiseAddr:            r.AdvertiseAddr,
		GossipBindAddr:           r.GossipAddr,
		GossipBindPort:           r.GossipPort,
		GossipAdvertiseAddr:      r.GossipAdvertiseAddr,
		GossipAdvertisePort:      r.GossipAdvertisePort,
		Seeds:                    r.Seeds,
		PushPullInterval:         r.PushPullInterval,
		AcceptableHeartbeatPause: r.AcceptableHeartbeatPause,
		FailureDetectionInterval: failureDetectionInterval(r),
		NumberOfContacts:         r.NumberOfContacts,
		ClientRateLimit:          r.ClientRateLimit,
		ClientRateBurst:          r.ClientRateBurst,
		ForwardTimeout:           r.ForwardTimeout,
		TLSCertFile:              r.TLS.CertFile,
		TLSKeyFile:               r.TLS.KeyFile,
		TLSCAFile:                r.TLS.CAFile,
		Services:                 services,
		Metrics:                  metrics,
		Logger:                   logger,
	}, nil
}

// failureDetectionInterval defaults the sweep period to the expected
// client heartbeat interval.
func failureDetectionInterval(r ReceptionistSection) time.Duration {
	if r.FailureDetectionInterval > 0 {
		return r.FailureDetectionInterval
	}
	return r.HeartbeatInterval
}

// generateNodeName generates a unique node name.
//
// Format: gm-<12 hex chars> (e.g., "gm-a1b2c3d4e5f6")
func generateNodeName() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "gm-" + hex.EncodeToString(buf), nil
}
