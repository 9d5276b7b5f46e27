package config

import "time"

// Default configuration values.
const (
	DefaultRPCAddr    = "0.0.0.0:7400"
	DefaultGossipAddr = "0.0.0.0"
	DefaultGossipPort = 7946

	DefaultPushPullInterval         = 30 * time.Second
	DefaultHeartbeatInterval        = 2 * time.Second
	DefaultAcceptableHeartbeatPause = 13 * time.Second
	DefaultForwardTimeout           = 5 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default receptionist configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Receptionist: ReceptionistSection{
			RPCAddr:                  DefaultRPCAddr,
			GossipAddr:               DefaultGossipAddr,
			GossipPort:               DefaultGossipPort,
			PushPullInterval:         DefaultPushPullInterval,
			HeartbeatInterval:        DefaultHeartbeatInterval,
			AcceptableHeartbeatPause: DefaultAcceptableHeartbeatPause,
			ForwardTimeout:           DefaultForwardTimeout,
			Metrics:                  true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
