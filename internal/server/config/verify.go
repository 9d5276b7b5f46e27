package config

import (
	"fmt"
	"net"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
)

// Verify validates the configuration. It returns ErrInvalidConfiguration
// describing the first problem found.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return invalid("configuration is nil")
	}
	if err := verifyReceptionist(&cfg.Receptionist); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyReceptionist(r *ReceptionistSection) error {
	if _, _, err := net.SplitHostPort(r.RPCAddr); err != nil {
		return invalid(fmt.Sprintf("rpc-addr %q: %v", r.RPCAddr, err))
	}
	if r.GossipPort < 0 || r.GossipPort > 65535 {
		return invalid(fmt.Sprintf("gossip-port %d out of range", r.GossipPort))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"heartbeat-interval", r.HeartbeatInterval},
		{"acceptable-heartbeat-pause", r.AcceptableHeartbeatPause},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return invalid(fmt.Sprintf("%s must be positive, got %s", p.name, p.value))
		}
	}
	if r.AcceptableHeartbeatPause < r.HeartbeatInterval {
		return invalid("acceptable-heartbeat-pause must not be shorter than heartbeat-interval")
	}

	nonNegative := []struct {
		name  string
		value time.Duration
	}{
		{"push-pull-interval", r.PushPullInterval},
		{"failure-detection-interval", r.FailureDetectionInterval},
		{"forward-timeout", r.ForwardTimeout},
	}
	for _, p := range nonNegative {
		if p.value < 0 {
			return invalid(fmt.Sprintf("%s must not be negative, got %s", p.name, p.value))
		}
	}

	switch {
	case r.NumberOfContacts < 0:
		return invalid("number-of-contacts must not be negative")
	case r.ClientRateLimit < 0:
		return invalid("client-rate-limit must not be negative")
	case r.ClientRateBurst < 0:
		return invalid("client-rate-burst must not be negative")
	case (r.TLS.CertFile == "") != (r.TLS.KeyFile == ""):
		return invalid("tls.cert-file and tls.key-file must be set together")
	}

	for _, p := range r.Services {
		if err := domain.ServicePath(p).Validate(); err != nil {
			return invalid(fmt.Sprintf("services: %v", err))
		}
	}
	return nil
}

func verifyLog(l *LogSection) error {
	if !logger.ValidLevel(l.Level) {
		return invalid(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", l.Level))
	}
	if !logger.ValidFormat(l.Format) {
		return invalid(fmt.Sprintf("log.format %q is not one of json, text", l.Format))
	}
	return nil
}

func invalid(details string) error {
	return domain.ErrInvalidConfiguration.WithDetails(details)
}
