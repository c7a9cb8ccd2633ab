package controlplane

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shardctl/shardctl/internal/core/model"
)

// RebalanceCallback is delivered back to the controller once a rebalance
// operation's deferred closer has finished (or given up). It carries the
// rebalance lock's guard embedded as Release: the lock is held across the
// whole open-wait-close cycle and is released only once the controller has
// applied ClosedShards to the Model and called Release. This is the "lock
// carried in a message" pattern (spec §9): the actor never awaits the lock
// release on its own hot path, but mutual exclusion across the full cycle
// is preserved because nothing else can acquire the lock until Release
// runs.
type RebalanceCallback struct {
	ClosedShards []ShardPKey
	Release      func()
}

// Rebalancer relocates shards from overloaded leaders to underloaded ones.
// It is guarded by a non-blocking try-lock: a concurrent Trigger call while
// one is already in flight is abandoned immediately, never queued.
type Rebalancer struct {
	model       *model.Model
	pool        PoolView
	allocator   *Allocator
	initializer *Initializer
	metastore   MetastoreClient
	ingesters   IngesterClients
	tunables    Tunables
	logger      *slog.Logger

	lockMu sync.Mutex

	callbacks chan RebalanceCallback

	wg      sync.WaitGroup
	stopped chan struct{}
}

// NewRebalancer creates a Rebalancer. The channel the controller drains
// RebalanceCallback from has a buffer of 1, which is sufficient since only
// one rebalance can be in flight at a time.
func NewRebalancer(
	m *model.Model,
	pool PoolView,
	allocator *Allocator,
	initializer *Initializer,
	metastore MetastoreClient,
	ingesters IngesterClients,
	tunables Tunables,
	logger *slog.Logger,
) *Rebalancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebalancer{
		model:       m,
		pool:        pool,
		allocator:   allocator,
		initializer: initializer,
		metastore:   metastore,
		ingesters:   ingesters,
		tunables:    tunables,
		logger:      logger,
		callbacks:   make(chan RebalanceCallback, 1),
		stopped:     make(chan struct{}),
	}
}

// Callbacks returns the channel the controller should drain to apply
// completed rebalance operations' closed shards to the Model.
func (rb *Rebalancer) Callbacks() <-chan RebalanceCallback {
	return rb.callbacks
}

type moveCandidate struct {
	source   model.SourceUID
	old      *model.Shard
	leader   model.NodeID
	follower model.NodeID
}

// Trigger attempts one rebalance pass across every source in the Model. If
// the rebalance lock is already held, it returns immediately with no
// side effects.
func (rb *Rebalancer) Trigger(ctx context.Context) {
	if !rb.lockMu.TryLock() {
		rb.logger.Debug("rebalance already in progress, skipping")
		return
	}

	released := false
	release := func() {
		if !released {
			released = true
			rb.lockMu.Unlock()
		}
	}

	moveSet := rb.computeMoveSet(rb.pool.Snapshot())
	if len(moveSet) == 0 {
		release()
		return
	}

	placements, err := rb.allocator.Allocate(rb.pool.Snapshot(), nil, rb.openCountsExcluding(moveSet), len(moveSet), rb.tunables.ReplicationFactor)
	if err != nil {
		rb.logger.Warn("rebalance allocation refused", "error", err)
		release()
		return
	}

	metaReq := OpenShardsRequest{Subrequests: make([]OpenShardsSubrequest, len(moveSet))}
	newIDs := make([]model.ShardID, len(moveSet))
	for i, cand := range moveSet {
		newID := model.NewShardID()
		newIDs[i] = newID
		metaReq.Subrequests[i] = OpenShardsSubrequest{
			SubrequestID: int64(i),
			Source:       cand.source,
			ShardID:      newID,
			LeaderID:     placements[i].Leader,
			FollowerID:   placements[i].Follower,
		}
	}

	metaResp, err := rb.metastore.OpenShards(ctx, metaReq)
	if err != nil {
		rb.logger.Error("rebalance metastore commit failed", "error", err)
		release()
		return
	}

	committed := make([]*model.Shard, 0, len(metaResp.Subresponses))
	for _, sr := range metaResp.Subresponses {
		if sr.Shard != nil {
			committed = append(committed, sr.Shard)
		}
	}

	outcomes := rb.initializer.Init(ctx, rb.pool.Snapshot(), committed)
	succeeded := make(map[model.ShardID]struct{}, len(outcomes))
	initialized := make([]*model.Shard, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded[outcome.Shard.ID] = struct{}{}
			initialized = append(initialized, outcome.Shard)
		}
	}
	rb.model.InsertShards(initialized)

	pendingClose := make([]ShardPKey, 0, len(moveSet))
	for i, cand := range moveSet {
		if _, ok := succeeded[newIDs[i]]; ok {
			rb.model.DrainScalingPermits(cand.source, model.ScaleDown)
			pendingClose = append(pendingClose, ShardPKey{Source: cand.source, ID: cand.old.ID})
		}
		// Init failure: erase the corresponding pending close, the
		// original shard stays where it is.
	}

	if len(pendingClose) == 0 {
		release()
		return
	}

	rb.wg.Add(1)
	go rb.deferredClose(pendingClose, release)
}

// deferredClose sleeps CloseShardsUponRebalanceDelay to give gossip time
// to propagate the new placements to routers, then closes the original
// shards on their old leaders and delivers the result to the controller.
// The close and the callback delivery that follow the delay are bounded by
// FireAndForgetTimeout: on elapse, it logs and gives up without ever
// queuing a retry.
func (rb *Rebalancer) deferredClose(pending []ShardPKey, release func()) {
	defer rb.wg.Done()

	select {
	case <-time.After(rb.tunables.CloseShardsUponRebalanceDelay):
	case <-rb.stopped:
		release()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rb.tunables.FireAndForgetTimeout)
	defer cancel()

	byLeader := make(map[model.NodeID][]ShardPKey)
	leaderOf := make(map[model.SourceUID]map[model.ShardID]model.NodeID)
	for _, pkey := range pending {
		if shards, ok := rb.model.ShardsForSource(pkey.Source); ok {
			if shard, ok := shards[pkey.ID]; ok {
				if leaderOf[pkey.Source] == nil {
					leaderOf[pkey.Source] = make(map[model.ShardID]model.NodeID)
				}
				leaderOf[pkey.Source][pkey.ID] = shard.Leader
				byLeader[shard.Leader] = append(byLeader[shard.Leader], pkey)
			}
		}
	}

	var mu sync.Mutex
	var closed []ShardPKey
	var wg sync.WaitGroup

	for leader, pkeys := range byLeader {
		wg.Add(1)
		go func(leader model.NodeID, pkeys []ShardPKey) {
			defer wg.Done()

			client, err := rb.ingesters.Client(leader)
			if err != nil {
				rb.logger.Error("rebalance close: client lookup failed", "leader", leader, "error", err)
				return
			}

			closeCtx, cancel := context.WithTimeout(ctx, rb.tunables.CloseShardsTimeout)
			defer cancel()

			if err := client.CloseShards(closeCtx, CloseShardsRequest{ShardPKeys: pkeys}); err != nil {
				rb.logger.Error("rebalance close_shards failed", "leader", leader, "error", err)
				return
			}

			mu.Lock()
			closed = append(closed, pkeys...)
			mu.Unlock()
		}(leader, pkeys)
	}
	wg.Wait()

	select {
	case rb.callbacks <- RebalanceCallback{ClosedShards: closed, Release: release}:
	case <-ctx.Done():
		rb.logger.Warn("rebalance callback delivery timed out")
		release()
	case <-rb.stopped:
		release()
	}
}

// Shutdown stops accepting new deferred closers' delay waits and waits for
// any in-flight ones to finish (or abandon).
func (rb *Rebalancer) Shutdown() {
	close(rb.stopped)
	rb.wg.Wait()
}

func (rb *Rebalancer) computeMoveSet(pool map[model.NodeID]struct{}) []moveCandidate {
	if len(pool) == 0 {
		return nil
	}

	counts := rb.model.OpenShardCountsByLeader(nil)
	total := 0
	for _, c := range counts {
		total += c
	}

	target := total / len(pool)
	threshold := int(float64(target) * rb.tunables.RebalanceHysteresis)
	if alt := target + 1; alt > threshold {
		threshold = alt
	}

	var moveSet []moveCandidate
	sources := rb.model.AllSources()
	for _, source := range sources {
		byLeader := rb.model.OpenShardsByLeaderForSource(source)
		for leader, shards := range byLeader {
			if len(shards) <= threshold {
				continue
			}
			sort.Slice(shards, func(i, j int) bool { return shards[i].ID.Less(shards[j].ID) })
			excess := shards[threshold:]
			for _, shard := range excess {
				moveSet = append(moveSet, moveCandidate{source: source, old: shard, leader: leader})
			}
		}
	}
	return moveSet
}

func (rb *Rebalancer) openCountsExcluding(moveSet []moveCandidate) map[model.NodeID]int {
	counts := rb.model.OpenShardCountsByLeader(nil)
	for _, cand := range moveSet {
		counts[cand.leader]--
	}
	return counts
}
