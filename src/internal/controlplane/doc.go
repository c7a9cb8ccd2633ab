// Package controlplane implements the ingest shard controller: placement
// allocation, shard initialization, the open-shards resolver, throughput-
// driven autoscaling, rebalancing, steady-state reconciliation, and reset
// advice for a fleet of stateful ingester nodes.
//
// Every exported operation is expected to run behind Controller's single
// mutex, which stands in for the single-threaded dispatch loop the
// underlying design assumes: Model mutations never run concurrently with
// each other. A call holds the mutex while it awaits its own RPCs; only the
// Rebalancer's deferred closer and the Reconciler's fire-and-forget tasks
// run outside it.
package controlplane
