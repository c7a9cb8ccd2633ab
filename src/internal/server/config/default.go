package config

import "time"

// Default configuration values.
const (
	DefaultGossipBindAddr = "0.0.0.0"
	DefaultGossipBindPort = 7946

	DefaultMetastoreTimeout = 3 * time.Second

	DefaultRebalanceInterval = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default controller configuration. Scaling fields are
// left zero here; ToTunables fills them from controlplane.DefaultTunables()
// field by field, so a partially-specified ScalingSection in a config file
// only overrides what it sets.
func Default() *ControllerConfig {
	return &ControllerConfig{
		Gossip: GossipSection{
			BindAddr: DefaultGossipBindAddr,
			BindPort: DefaultGossipBindPort,
		},
		Metastore: MetastoreSection{
			Timeout: DefaultMetastoreTimeout,
		},
		Scaling: ScalingSection{
			RebalanceInterval: DefaultRebalanceInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
