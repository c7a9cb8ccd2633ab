// Package main provides the entry point for shardctl-controller.
//
// The controller is the shard placement and scaling control plane for a
// shardctl cluster:
//
//   - Placement of new shards across the live ingester pool
//   - Autoscaling sources up and down with reported ingestion throughput
//   - Rebalancing shards as pool membership changes
//
// Usage:
//
//	shardctl-controller [flags]
//	shardctl-controller --config /path/to/config.yaml
//
// The controller loads configuration, joins the gossip pool, and runs a
// rebalance pass on a fixed interval until it receives a shutdown signal.
// It opens no listener of its own for router or ingester RPCs, and it does
// not run reconciliation on a schedule.
package main
