package config

import (
	"strings"
	"testing"
	"time"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
	"github.com/yndnr/gatemesh-go/internal/telemetry/metric"
)

func TestToClusterConfig(t *testing.T) {
	cfg := Default()
	cfg.Receptionist.NodeName = "rcp-1"
	cfg.Receptionist.Seeds = []string{"10.0.0.1:7946"}
	cfg.Receptionist.NumberOfContacts = 3
	cfg.Receptionist.Services = []string{"/user/orders"}
	cfg.Receptionist.TLS = TLSSection{CertFile: "c.pem", KeyFile: "k.pem", CAFile: "ca.pem"}

	reg := metric.NewRegistry()
	got, err := ToClusterConfig(cfg, reg, logger.Discard())
	if err != nil {
		t.Fatalf("ToClusterConfig() error = %v", err)
	}

	if got.NodeName != "rcp-1" {
		t.Errorf("NodeName = %q, want %q", got.NodeName, "rcp-1")
	}
	if got.ListenAddr != DefaultRPCAddr {
		t.Errorf("ListenAddr = %q, want %q", got.ListenAddr, DefaultRPCAddr)
	}
	if got.GossipBindPort != DefaultGossipPort {
		t.Errorf("GossipBindPort = %d, want %d", got.GossipBindPort, DefaultGossipPort)
	}
	if len(got.Seeds) != 1 || got.Seeds[0] != "10.0.0.1:7946" {
		t.Errorf("Seeds = %v", got.Seeds)
	}
	if got.NumberOfContacts != 3 {
		t.Errorf("NumberOfContacts = %d, want 3", got.NumberOfContacts)
	}
	if len(got.Services) != 1 || got.Services[0] != domain.ServicePath("/user/orders") {
		t.Errorf("Services = %v", got.Services)
	}
	if got.TLSCertFile != "c.pem" || got.TLSKeyFile != "k.pem" || got.TLSCAFile != "ca.pem" {
		t.Errorf("TLS files = %q %q %q", got.TLSCertFile, got.TLSKeyFile, got.TLSCAFile)
	}
	if got.Metrics != reg {
		t.Error("Metrics registry not passed through")
	}
	if got.FailureDetectionInterval != DefaultHeartbeatInterval {
		t.Errorf("FailureDetectionInterval = %v, want %v", got.FailureDetectionInterval, DefaultHeartbeatInterval)
	}
}

func TestToClusterConfig_GeneratesNodeName(t *testing.T) {
	a, err := ToClusterConfig(Default(), nil, logger.Discard())
	if err != nil {
		t.Fatalf("ToClusterConfig() error = %v", err)
	}
	b, _ := ToClusterConfig(Default(), nil, logger.Discard())

	if !strings.HasPrefix(a.NodeName, "gm-") || len(a.NodeName) != len("gm-")+12 {
		t.Errorf("NodeName = %q, want gm-<12 hex>", a.NodeName)
	}
	if a.NodeName == b.NodeName {
		t.Errorf("generated node names collide: %q", a.NodeName)
	}
}

func TestToClusterConfig_MetricsDisabled(t *testing.T) {
	cfg := Default()
	cfg.Receptionist.Metrics = false
	cfg.Receptionist.FailureDetectionInterval = time.Second

	got, err := ToClusterConfig(cfg, metric.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("ToClusterConfig() error = %v", err)
	}
	if got.Metrics != nil {
		t.Error("Metrics = non-nil, want nil when disabled")
	}
	if got.FailureDetectionInterval != time.Second {
		t.Errorf("FailureDetectionInterval = %v, want 1s", got.FailureDetectionInterval)
	}
	if got.Logger == nil {
		t.Error("Logger = nil, want default")
	}
}

func TestToClusterConfig_Nil(t *testing.T) {
	if _, err := ToClusterConfig(nil, nil, nil); err == nil {
		t.Error("ToClusterConfig(nil) error = nil, want error")
	}
}
