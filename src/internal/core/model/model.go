package model

import (
	"sync"
	"time"

	"github.com/shardctl/shardctl/pkg/cmap"
)

// nodeShards is the reverse-index entry for one NodeID: every (SourceUID,
// ShardID) pair for which that node is currently leader or follower.
type nodeShards struct {
	mu     sync.Mutex
	shards map[SourceUID]map[ShardID]struct{}
}

func newNodeShards() *nodeShards {
	return &nodeShards{shards: make(map[SourceUID]map[ShardID]struct{})}
}

func (n *nodeShards) add(source SourceUID, id ShardID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.shards[source]
	if !ok {
		set = make(map[ShardID]struct{})
		n.shards[source] = set
	}
	set[id] = struct{}{}
}

func (n *nodeShards) remove(source SourceUID, id ShardID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set, ok := n.shards[source]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(n.shards, source)
		}
	}
}

func (n *nodeShards) snapshot() map[SourceUID][]ShardID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[SourceUID][]ShardID, len(n.shards))
	for source, set := range n.shards {
		ids := make([]ShardID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		out[source] = ids
	}
	return out
}

// Model is the authoritative in-memory index of shard placement. It is
// mutated only by the control plane's single dispatch goroutine; the
// reverse-index lookups used by the Rebalancer and Reconciler run through
// pkg/cmap so that concurrent introspection reads do not contend on one
// mutex the way they would with a single map guarded by a single RWMutex.
type Model struct {
	mu sync.RWMutex

	// indexes tracks known (index, source) pairs independently of
	// whether the source currently has any shards, so the Resolver can
	// distinguish IndexNotFound from SourceNotFound from "no open
	// shards yet".
	indexes map[string]map[string]struct{}
	sources map[SourceUID]map[ShardID]*Shard

	reverse *cmap.Map[NodeID, *nodeShards]

	permits *permitTable
}

// New creates an empty Model. minPermitInterval is the minimum spacing the
// scaling-permit buckets enforce between scale events per (source,
// direction).
func New(minPermitInterval time.Duration) *Model {
	return &Model{
		indexes: make(map[string]map[string]struct{}),
		sources: make(map[SourceUID]map[ShardID]*Shard),
		reverse: cmap.New[NodeID, *nodeShards](),
		permits: newPermitTable(minPermitInterval),
	}
}

// RegisterSource records that (indexID, sourceID) exists, even before it
// has any shards. In production this is driven by the metastore's index
// and source catalog; tests call it directly to seed fixtures.
func (m *Model) RegisterSource(indexID, sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sourceSet, ok := m.indexes[indexID]
	if !ok {
		sourceSet = make(map[string]struct{})
		m.indexes[indexID] = sourceSet
	}
	sourceSet[sourceID] = struct{}{}

	source := SourceUID{IndexID: indexID, SourceID: sourceID}
	if _, ok := m.sources[source]; !ok {
		m.sources[source] = make(map[ShardID]*Shard)
	}
}

// IndexExists reports whether indexID has been registered.
func (m *Model) IndexExists(indexID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[indexID]
	return ok
}

// SourceExists reports whether (indexID, sourceID) has been registered.
func (m *Model) SourceExists(indexID, sourceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sourceSet, ok := m.indexes[indexID]
	if !ok {
		return false
	}
	_, ok = sourceSet[sourceID]
	return ok
}

// InsertShards adds newly initialized shards to the Model and its reverse
// index. Per invariant 1, callers must only insert shards the metastore
// has already durably committed.
func (m *Model) InsertShards(shards []*Shard) {
	if len(shards) == 0 {
		return
	}

	m.mu.Lock()
	for _, shard := range shards {
		byID, ok := m.sources[shard.Source]
		if !ok {
			byID = make(map[ShardID]*Shard)
			m.sources[shard.Source] = byID
			sourceSet, ok := m.indexes[shard.Source.IndexID]
			if !ok {
				sourceSet = make(map[string]struct{})
				m.indexes[shard.Source.IndexID] = sourceSet
			}
			sourceSet[shard.Source.SourceID] = struct{}{}
		}
		byID[shard.ID] = shard
	}
	m.mu.Unlock()

	for _, shard := range shards {
		m.nodeEntry(shard.Leader).add(shard.Source, shard.ID)
		if shard.HasFollower() {
			m.nodeEntry(shard.Follower).add(shard.Source, shard.ID)
		}
	}
}

func (m *Model) nodeEntry(node NodeID) *nodeShards {
	if entry, ok := m.reverse.Get(node); ok {
		return entry
	}
	entry := newNodeShards()
	m.reverse.Set(node, entry)
	return entry
}

// CloseShards transitions the given shard IDs of source to Closed. Unknown
// shard IDs and already-closed shards are silently ignored, matching the
// original ingest controller's treatment of a router reporting a shard the
// control plane already forgot. It returns the IDs that were actually
// transitioned by this call (empty on a pure no-op, including repeat
// calls with the same arguments).
func (m *Model) CloseShards(source SourceUID, ids []ShardID) []ShardID {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.sources[source]
	if !ok {
		return nil
	}

	var closed []ShardID
	for _, id := range ids {
		shard, ok := byID[id]
		if !ok || shard.State == ShardClosed {
			continue
		}
		shard.State = ShardClosed
		closed = append(closed, id)
	}
	return closed
}

// SetShardsAsUnavailable marks every Open shard led by one of the given
// nodes as Unavailable. Unlike CloseShards, this is reversible: a later
// LocalShardsUpdate that reports one of these shards Open sets it back to
// Open.
func (m *Model) SetShardsAsUnavailable(leaders map[NodeID]struct{}) {
	if len(leaders) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, byID := range m.sources {
		for _, shard := range byID {
			if shard.State == ShardOpen {
				if _, unavailable := leaders[shard.Leader]; unavailable {
					shard.State = ShardUnavailable
				}
			}
		}
	}
}

// FindOpenShards returns the Open shards of source whose leader is not in
// unavailableLeaders. The second return value reports whether source is a
// known (index, source) pair at all; callers use this to distinguish
// SourceNotFound from "known source, nothing open yet".
func (m *Model) FindOpenShards(source SourceUID, unavailableLeaders map[NodeID]struct{}) ([]*Shard, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID, ok := m.sources[source]
	if !ok {
		return nil, false
	}

	var open []*Shard
	for _, shard := range byID {
		if shard.State != ShardOpen {
			continue
		}
		if _, unavailable := unavailableLeaders[shard.Leader]; unavailable {
			continue
		}
		open = append(open, shard)
	}
	return open, true
}

// ShardsForSource returns every shard (any state) of source, and whether
// the source is known at all.
func (m *Model) ShardsForSource(source SourceUID) (map[ShardID]*Shard, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID, ok := m.sources[source]
	if !ok {
		return nil, false
	}
	out := make(map[ShardID]*Shard, len(byID))
	for id, shard := range byID {
		out[id] = shard
	}
	return out, true
}

// UpdateShards applies an ingester's latest throughput sample for source,
// replacing prior rates rather than accumulating them (a Closed shard keeps
// its Closed state whatever the sample reports), and returns the
// freshly computed ShardStats. Replaying the same infos twice yields the
// same ShardStats both times.
func (m *Model) UpdateShards(source SourceUID, infos []ShardInfo) ShardStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.sources[source]
	if !ok {
		byID = make(map[ShardID]*Shard)
		m.sources[source] = byID
	}

	for _, info := range infos {
		if shard, ok := byID[info.ShardID]; ok {
			if shard.State != ShardClosed {
				shard.State = info.State
			}
			shard.IngestionRateMiBPerSec = info.IngestionRateMiBPerSec
		}
	}

	var stats ShardStats
	var sumRate float64
	for _, info := range infos {
		shard, ok := byID[info.ShardID]
		if !ok || shard.State != ShardOpen {
			continue
		}
		stats.NumOpenShards++
		sumRate += info.IngestionRateMiBPerSec
	}
	if stats.NumOpenShards > 0 {
		stats.AvgIngestionRateMiBPerSec = sumRate / float64(stats.NumOpenShards)
	}
	return stats
}

// OpenShardCountsByLeader returns, for every leader currently hosting at
// least one Open shard not in unavailableLeaders, the number of such
// shards. Used by the Allocator to compute current per-node load.
func (m *Model) OpenShardCountsByLeader(unavailableLeaders map[NodeID]struct{}) map[NodeID]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[NodeID]int)
	for _, byID := range m.sources {
		for _, shard := range byID {
			if shard.State != ShardOpen {
				continue
			}
			if _, unavailable := unavailableLeaders[shard.Leader]; unavailable {
				continue
			}
			counts[shard.Leader]++
		}
	}
	return counts
}

// OpenShardsByLeaderForSource groups the Open shards of source by leader,
// used by the Autoscaler's scale-down candidate selection and the
// Rebalancer's excess computation.
func (m *Model) OpenShardsByLeaderForSource(source SourceUID) map[NodeID][]*Shard {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID, ok := m.sources[source]
	if !ok {
		return nil
	}
	out := make(map[NodeID][]*Shard)
	for _, shard := range byID {
		if shard.State == ShardOpen {
			out[shard.Leader] = append(out[shard.Leader], shard)
		}
	}
	return out
}

// AllSources returns every registered (index, source) pair, used by the
// Rebalancer to scan for overloaded leaders across the whole Model.
func (m *Model) AllSources() []SourceUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SourceUID, 0, len(m.sources))
	for source := range m.sources {
		out = append(out, source)
	}
	return out
}

// ListShardsForNode returns every (SourceUID, ShardID) pair for which node
// is currently a leader or follower, used by the Reconciler to build a
// RetainShardsRequest.
func (m *Model) ListShardsForNode(node NodeID) map[SourceUID][]ShardID {
	entry, ok := m.reverse.Get(node)
	if !ok {
		return nil
	}
	return entry.snapshot()
}
