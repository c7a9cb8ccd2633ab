package controlplane

import (
	"sort"

	"github.com/shardctl/shardctl/internal/core/controlerr"
	"github.com/shardctl/shardctl/internal/core/model"
)

// Placement is one allocated (leader, optional follower) pair.
type Placement struct {
	Leader model.NodeID
	// Follower is empty iff the replication factor is 1.
	Follower model.NodeID
}

// Allocator chooses placements for newly opened shards with a
// deterministic, two-pass greedy algorithm: it balances leaders to a soft
// per-node cap where possible, then round-robins whatever is left so N
// always produces exactly N placements (never fewer, when enough nodes
// exist).
type Allocator struct{}

// NewAllocator creates an Allocator. It carries no state of its own; every
// call is a pure function of its arguments.
func NewAllocator() *Allocator { return &Allocator{} }

// Allocate picks exactly n (leader, optional follower) pairs.
//
// pool is every currently live ingester; any node present in unavailable
// is excluded from consideration. openCounts is the current open-shard
// count per leader, already filtered to exclude unavailable leaders (see
// model.Model.OpenShardCountsByLeader). replication is the desired
// replication factor: a follower is included in every returned Placement
// iff replication > 1.
func (a *Allocator) Allocate(
	pool map[model.NodeID]struct{},
	unavailable map[model.NodeID]struct{},
	openCounts map[model.NodeID]int,
	n int,
	replication int,
) ([]Placement, error) {
	if n == 0 {
		return nil, nil
	}

	available := make([]model.NodeID, 0, len(pool))
	for node := range pool {
		if _, excluded := unavailable[node]; excluded {
			continue
		}
		available = append(available, node)
	}
	sort.Slice(available, func(i, j int) bool { return available[i] < available[j] })

	if len(available) == 0 {
		return nil, controlerr.ErrNoIngestersAvailable
	}
	if replication > len(available) {
		return nil, controlerr.ErrNoIngestersAvailable
	}

	total := n
	for _, node := range available {
		total += openCounts[node]
	}
	capPerNode := total / len(available)

	toAllocate := n
	firstPassShare := make([]int, len(available))
	for i, node := range available {
		if toAllocate == 0 {
			break
		}
		room := capPerNode - openCounts[node]
		if room <= 0 {
			continue
		}
		if room > toAllocate {
			room = toAllocate
		}
		firstPassShare[i] = room
		toAllocate -= room
	}

	placements := make([]Placement, 0, n)
	place := func(i int) {
		leader := available[i]
		var follower model.NodeID
		if replication > 1 {
			follower = available[(i+1)%len(available)]
		}
		placements = append(placements, Placement{Leader: leader, Follower: follower})
	}

	for i := range available {
		for firstPassShare[i] > 0 {
			place(i)
			firstPassShare[i]--
		}
	}

	// Second pass: round-robin any leftover, one per node per visit,
	// guaranteeing progress even when capPerNode is 0 (e.g. n < |A|).
	for i := 0; len(placements) < n; i++ {
		place(i % len(available))
	}

	return placements, nil
}
