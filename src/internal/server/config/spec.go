// Package config defines the controller's configuration structure.
package config

import "time"

// ControllerConfig is the root configuration for shardctl-controller.
type ControllerConfig struct {
	Node      NodeSection      `koanf:"node"`
	Gossip    GossipSection    `koanf:"gossip"`
	Metastore MetastoreSection `koanf:"metastore"`
	Scaling   ScalingSection   `koanf:"scaling"`
	TLS       TLSSection       `koanf:"tls"`
	Log       LogSection       `koanf:"log"`
}

// NodeSection identifies this controller process.
type NodeSection struct {
	// ID is this controller's node identifier within the gossip pool it
	// uses to track ingester membership. It does not host shards itself.
	ID string `koanf:"id"`
}

// GossipSection configures the memberlist transport the controller uses to
// track live ingesters.
type GossipSection struct {
	BindAddr  string   `koanf:"bind_addr"`
	BindPort  int      `koanf:"bind_port"`
	ClusterID string   `koanf:"cluster_id"`
	Seeds     []string `koanf:"seeds"`
}

// MetastoreSection configures the RPC endpoint of the durable shard
// metastore the controller commits newly opened shards to.
type MetastoreSection struct {
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ScalingSection exposes the Tunables the controller's components key off
// of. Zero values fall back to controlplane.DefaultTunables()'s field.
type ScalingSection struct {
	MaxShardIngestionThroughputMiBPerSec float64       `koanf:"max_shard_throughput_mib_per_sec"`
	ScaleUpThreshold                     float64       `koanf:"scale_up_threshold"`
	ScaleDownThreshold                   float64       `koanf:"scale_down_threshold"`
	InitShardsTimeout                    time.Duration `koanf:"init_shards_timeout"`
	CloseShardsTimeout                   time.Duration `koanf:"close_shards_timeout"`
	CloseShardsUponRebalanceDelay        time.Duration `koanf:"close_shards_upon_rebalance_delay"`
	FireAndForgetTimeout                 time.Duration `koanf:"fire_and_forget_timeout"`
	RebalanceHysteresis                  float64       `koanf:"rebalance_hysteresis"`
	RebalanceInterval                    time.Duration `koanf:"rebalance_interval"`
	MinScalingPermitInterval             time.Duration `koanf:"min_scaling_permit_interval"`
	ReplicationFactor                    int           `koanf:"replication_factor"`
}

// TLSSection configures mutual TLS for the metastore and ingester RPC
// clients. Empty CAFile disables TLS entirely (plaintext HTTP, the default
// for local development).
type TLSSection struct {
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
