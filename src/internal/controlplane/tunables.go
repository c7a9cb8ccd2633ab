package controlplane

import "time"

// Tunables holds the controller's operating constants. Production code
// starts from DefaultTunables and tests from TestTunables; the
// shardctl-controller binary also overrides every field that its config
// file or environment sets to a non-zero value (config.ToTunables).
type Tunables struct {
	// MaxShardIngestionThroughputMiBPerSec is the per-shard throughput
	// ceiling the scale-up/scale-down thresholds are fractions of.
	MaxShardIngestionThroughputMiBPerSec float64

	// ScaleUpThreshold and ScaleDownThreshold bound the hysteresis band:
	// at or above the former, the Autoscaler attempts a scale-up; at or below
	// the latter (with more than one open shard), it attempts a
	// scale-down. Between them, it is a no-op.
	ScaleUpThreshold   float64
	ScaleDownThreshold float64

	// InitShardsTimeout and CloseShardsTimeout bound each per-leader RPC
	// in the Initializer and in close_shards calls respectively. A
	// timeout is terminal for that attempt; the controller never
	// retries internally.
	InitShardsTimeout  time.Duration
	CloseShardsTimeout time.Duration

	// CloseShardsUponRebalanceDelay is how long the Rebalancer waits
	// after opening replacement shards before closing the originals, to
	// give gossip time to propagate the new placement to routers.
	CloseShardsUponRebalanceDelay time.Duration

	// FireAndForgetTimeout bounds the Reconciler's retain_shards calls
	// and the Rebalancer's deferred closer: both must outlive the call
	// that scheduled them but never run indefinitely.
	FireAndForgetTimeout time.Duration

	// RebalanceHysteresis is the overload factor a leader's open-shard
	// count must exceed, relative to the even-split target, before the
	// Rebalancer moves any of its shards.
	RebalanceHysteresis float64

	// MinScalingPermitInterval is the minimum spacing the Model's
	// scaling-permit buckets enforce between scale events per (source,
	// direction).
	MinScalingPermitInterval time.Duration

	// ReplicationFactor is the number of copies (leader + followers)
	// newly opened shards are given. 1 means no follower.
	ReplicationFactor int
}

// DefaultTunables returns the production tunable set.
func DefaultTunables() Tunables {
	const maxThroughput = 5.0
	return Tunables{
		MaxShardIngestionThroughputMiBPerSec: maxThroughput,
		ScaleUpThreshold:                     0.8 * maxThroughput,
		ScaleDownThreshold:                   0.2 * maxThroughput,
		InitShardsTimeout:                    3 * time.Second,
		CloseShardsTimeout:                   3 * time.Second,
		CloseShardsUponRebalanceDelay:        10 * time.Second,
		FireAndForgetTimeout:                 3 * time.Second,
		RebalanceHysteresis:                  1.2,
		MinScalingPermitInterval:             3 * time.Second,
		ReplicationFactor:                    1,
	}
}

// TestTunables returns the compressed-timeout tunable set the component
// design calls out for use "under test": the same policy thresholds, but
// timeouts and delays short enough for a test suite to exercise them
// directly.
func TestTunables() Tunables {
	t := DefaultTunables()
	t.InitShardsTimeout = 50 * time.Millisecond
	t.CloseShardsTimeout = 50 * time.Millisecond
	t.CloseShardsUponRebalanceDelay = 0
	t.MinScalingPermitInterval = 0
	return t
}
