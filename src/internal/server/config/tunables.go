package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/shardctl/shardctl/internal/controlplane"
	"github.com/shardctl/shardctl/internal/pool"
)

// ToTunables converts the config's ScalingSection into a controlplane.Tunables,
// starting from the production defaults and overriding only the fields the
// config file actually set.
func ToTunables(cfg *ScalingSection) controlplane.Tunables {
	t := controlplane.DefaultTunables()

	if cfg.MaxShardIngestionThroughputMiBPerSec > 0 {
		t.MaxShardIngestionThroughputMiBPerSec = cfg.MaxShardIngestionThroughputMiBPerSec
	}
	if cfg.ScaleUpThreshold > 0 {
		t.ScaleUpThreshold = cfg.ScaleUpThreshold
	}
	if cfg.ScaleDownThreshold > 0 {
		t.ScaleDownThreshold = cfg.ScaleDownThreshold
	}
	if cfg.InitShardsTimeout > 0 {
		t.InitShardsTimeout = cfg.InitShardsTimeout
	}
	if cfg.CloseShardsTimeout > 0 {
		t.CloseShardsTimeout = cfg.CloseShardsTimeout
	}
	if cfg.CloseShardsUponRebalanceDelay > 0 {
		t.CloseShardsUponRebalanceDelay = cfg.CloseShardsUponRebalanceDelay
	}
	if cfg.FireAndForgetTimeout > 0 {
		t.FireAndForgetTimeout = cfg.FireAndForgetTimeout
	}
	if cfg.RebalanceHysteresis > 0 {
		t.RebalanceHysteresis = cfg.RebalanceHysteresis
	}
	if cfg.MinScalingPermitInterval > 0 {
		t.MinScalingPermitInterval = cfg.MinScalingPermitInterval
	}
	if cfg.ReplicationFactor > 0 {
		t.ReplicationFactor = cfg.ReplicationFactor
	}

	return t
}

// ToPoolConfig converts the config's Node and Gossip sections into a
// pool.Config, generating a NodeID if one wasn't set.
func ToPoolConfig(cfg *ControllerConfig, logger *slog.Logger) (pool.Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nodeID := cfg.Node.ID
	if nodeID == "" {
		generated, err := generateNodeID()
		if err != nil {
			return pool.Config{}, fmt.Errorf("generate node ID: %w", err)
		}
		nodeID = generated
		logger.Info("generated controller node ID", "node_id", nodeID)
	}

	return pool.Config{
		NodeID:    nodeID,
		ClusterID: cfg.Gossip.ClusterID,
		BindAddr:  cfg.Gossip.BindAddr,
		BindPort:  cfg.Gossip.BindPort,
		SeedNodes: cfg.Gossip.Seeds,
		Logger:    logger,
	}, nil
}

// generateNodeID generates a unique node identifier.
//
// Format: shardctl-<16 hex chars> (e.g., "shardctl-a1b2c3d4e5f67890")
func generateNodeID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "shardctl-" + hex.EncodeToString(buf), nil
}
