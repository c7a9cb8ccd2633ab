// Package pool maintains the live membership view of ingester nodes that
// the control plane consults on every placement decision: the "ingester
// pool" the spec's glossary describes as "updated out-of-band by gossip."
//
// The control plane never drives membership itself — no leader election,
// no join/leave decisions beyond observing them — it only reads
// Pool.Snapshot() and Pool.Contains(), which feed the Resolver's
// unavailable-leader confirmation and the Rebalancer's placement target
// set. Pool.OnJoin and Pool.OnLeave accept callbacks, but the control
// plane registers none.
package pool
