package controlplane

import (
	"context"
	"fmt"

	"github.com/shardctl/shardctl/internal/core/controlerr"
	"github.com/shardctl/shardctl/internal/core/model"
)

// Resolver serves router queries for open shards: it returns existing open
// shards, or, when none exist, mints new ones via the Allocator, a
// metastore commit, and the Initializer.
type Resolver struct {
	model       *model.Model
	pool        PoolView
	allocator   *Allocator
	initializer *Initializer
	metastore   MetastoreClient
	tunables    Tunables
}

// NewResolver creates a Resolver.
func NewResolver(m *model.Model, pool PoolView, allocator *Allocator, initializer *Initializer, metastore MetastoreClient, tunables Tunables) *Resolver {
	return &Resolver{model: m, pool: pool, allocator: allocator, initializer: initializer, metastore: metastore, tunables: tunables}
}

type pendingAllocation struct {
	subID   int64
	source  model.SourceUID
	shardID model.ShardID
}

// GetOrCreateOpenShards applies the request's observations, then resolves
// each subrequest independently, minting and committing new shards in one
// batch for whatever could not be satisfied from the existing Model.
//
// Observations are applied before resolution so that a router reporting
// "shard X is closed" in the same call that asks for new shards does not
// get X back (spec §4.C ordering note).
func (r *Resolver) GetOrCreateOpenShards(ctx context.Context, req GetOrCreateOpenShardsRequest) (GetOrCreateOpenShardsResponse, error) {
	r.applyObservations(req)

	poolSnapshot := r.pool.Snapshot()
	unavailable := unavailableLeaders(req.UnavailableLeaders, poolSnapshot)

	var resp GetOrCreateOpenShardsResponse
	var toAllocate []pendingAllocation

	for _, sub := range req.Subrequests {
		source := model.SourceUID{IndexID: sub.IndexID, SourceID: sub.SourceID}

		if !r.model.IndexExists(sub.IndexID) {
			resp.Failures = append(resp.Failures, OpenShardsFailure{
				SubrequestID: sub.SubrequestID, IndexID: sub.IndexID, SourceID: sub.SourceID,
				Reason: ReasonIndexNotFound,
			})
			continue
		}
		if !r.model.SourceExists(sub.IndexID, sub.SourceID) {
			resp.Failures = append(resp.Failures, OpenShardsFailure{
				SubrequestID: sub.SubrequestID, IndexID: sub.IndexID, SourceID: sub.SourceID,
				Reason: ReasonSourceNotFound,
			})
			continue
		}

		if open, _ := r.model.FindOpenShards(source, unavailable); len(open) > 0 {
			resp.Successes = append(resp.Successes, OpenShardsSuccess{SubrequestID: sub.SubrequestID, Source: source, Shards: open})
			continue
		}

		toAllocate = append(toAllocate, pendingAllocation{subID: sub.SubrequestID, source: source, shardID: model.NewShardID()})
	}

	if len(toAllocate) == 0 {
		return resp, nil
	}

	counts := r.model.OpenShardCountsByLeader(unavailable)
	placements, err := r.allocator.Allocate(poolSnapshot, unavailable, counts, len(toAllocate), r.tunables.ReplicationFactor)
	if err != nil {
		for _, p := range toAllocate {
			resp.Failures = append(resp.Failures, OpenShardsFailure{
				SubrequestID: p.subID, IndexID: p.source.IndexID, SourceID: p.source.SourceID,
				Reason: ReasonNoIngestersAvailable,
			})
		}
		return resp, nil
	}

	metaReq := OpenShardsRequest{Subrequests: make([]OpenShardsSubrequest, len(toAllocate))}
	for i, p := range toAllocate {
		metaReq.Subrequests[i] = OpenShardsSubrequest{
			SubrequestID: p.subID,
			Source:       p.source,
			ShardID:      p.shardID,
			LeaderID:     placements[i].Leader,
			FollowerID:   placements[i].Follower,
		}
	}

	metaResp, err := r.metastore.OpenShards(ctx, metaReq)
	if err != nil {
		// Metastore errors in the Resolver propagate as the call's
		// overall result (spec §7 kind 3): the whole call fails.
		return GetOrCreateOpenShardsResponse{}, err
	}

	bySub := make(map[int64]pendingAllocation, len(toAllocate))
	for _, p := range toAllocate {
		bySub[p.subID] = p
	}

	committed := make([]*model.Shard, 0, len(metaResp.Subresponses))
	for _, sr := range metaResp.Subresponses {
		if sr.Shard != nil {
			committed = append(committed, sr.Shard)
		}
	}

	outcomes := r.initializer.Init(ctx, poolSnapshot, committed)
	succeeded := make(map[model.ShardID]struct{}, len(outcomes))
	initialized := make([]*model.Shard, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded[outcome.Shard.ID] = struct{}{}
			initialized = append(initialized, outcome.Shard)
		}
	}
	r.model.InsertShards(initialized)

	for _, sr := range metaResp.Subresponses {
		p, ok := bySub[sr.SubrequestID]
		if !ok {
			// The metastore committed a subresponse for a subrequest ID
			// this Resolver call never sent (spec §7 kind 4: init/commit
			// succeeding for an unknown index). This should never happen
			// and leaves the Model in an indeterminate state if ignored.
			panic(controlerr.ErrInvariantViolation.WithDetails(
				fmt.Sprintf("metastore returned subresponse for unknown subrequest %d", sr.SubrequestID)))
		}
		if sr.Shard == nil {
			continue
		}
		if _, ok := succeeded[sr.Shard.ID]; !ok {
			// Init failed: silently dropped from successes, matching
			// the router's expectation to retry on its next call.
			continue
		}
		open, _ := r.model.FindOpenShards(p.source, unavailable)
		resp.Successes = append(resp.Successes, OpenShardsSuccess{SubrequestID: sr.SubrequestID, Source: p.source, Shards: open})
	}

	return resp, nil
}

func (r *Resolver) applyObservations(req GetOrCreateOpenShardsRequest) {
	for source, ids := range req.ClosedShards {
		r.model.CloseShards(source, ids)
	}

	if len(req.UnavailableLeaders) == 0 {
		return
	}

	poolSnapshot := r.pool.Snapshot()
	confirmed := unavailableLeaders(req.UnavailableLeaders, poolSnapshot)
	r.model.SetShardsAsUnavailable(confirmed)
}

// unavailableLeaders confirms a router's unavailable-leader report against
// pool membership: a leader reported unavailable but still in the pool is
// ignored, since the router itself may be partitioned rather than the
// leader actually down.
func unavailableLeaders(reported []model.NodeID, poolSnapshot map[model.NodeID]struct{}) map[model.NodeID]struct{} {
	out := make(map[model.NodeID]struct{}, len(reported))
	for _, leader := range reported {
		if _, inPool := poolSnapshot[leader]; !inPool {
			out[leader] = struct{}{}
		}
	}
	return out
}
