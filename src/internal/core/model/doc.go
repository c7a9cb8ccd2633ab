// Package model holds the control plane's authoritative in-memory view of
// shard placement: which shards exist, who leads and follows them, and the
// per-source throughput and scaling-permit state derived from that.
//
// The Model is mutated only by the controller's single dispatch goroutine;
// other callers (introspection, tests) take read snapshots through its
// exported accessors, which is why its reverse index is built on the
// sharded concurrent map in pkg/cmap rather than a single mutex.
package model
