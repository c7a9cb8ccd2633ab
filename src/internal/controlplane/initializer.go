package controlplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shardctl/shardctl/internal/core/controlerr"
	"github.com/shardctl/shardctl/internal/core/model"
)

// InitOutcome is one shard's result from the Shard Initializer.
type InitOutcome struct {
	Shard   *model.Shard
	Success bool
}

// Initializer fans out init_shards to the leaders of a batch of freshly
// committed shards, grouping by leader so each leader sees exactly one RPC
// carrying all of its subrequests. The Initializer never retries: a
// timeout or an error fails every subrequest for that leader, and it is up
// to the caller (Resolver, Autoscaler, Rebalancer) to decide what a
// partial failure means for its own operation.
type Initializer struct {
	clients IngesterClients
	guard   *ProgressGuard
	timeout time.Duration
}

// NewInitializer creates an Initializer. timeout bounds each per-leader
// init_shards call.
func NewInitializer(clients IngesterClients, guard *ProgressGuard, timeout time.Duration) *Initializer {
	return &Initializer{clients: clients, guard: guard, timeout: timeout}
}

// Init initializes shards concurrently across their distinct leaders and
// returns one InitOutcome per input shard, in no particular order.
func (ini *Initializer) Init(ctx context.Context, pool map[model.NodeID]struct{}, shards []*model.Shard) []InitOutcome {
	if len(shards) == 0 {
		return nil
	}

	byLeader := make(map[model.NodeID][]*model.Shard)
	for _, shard := range shards {
		byLeader[shard.Leader] = append(byLeader[shard.Leader], shard)
	}

	results := make([]InitOutcome, 0, len(shards))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for leader, leaderShards := range byLeader {
		wg.Add(1)
		go func(leader model.NodeID, leaderShards []*model.Shard) {
			defer wg.Done()
			outcomes := ini.initLeader(ctx, pool, leader, leaderShards)
			mu.Lock()
			results = append(results, outcomes...)
			mu.Unlock()
		}(leader, leaderShards)
	}
	wg.Wait()

	return results
}

func (ini *Initializer) initLeader(ctx context.Context, pool map[model.NodeID]struct{}, leader model.NodeID, shards []*model.Shard) []InitOutcome {
	if _, ok := pool[leader]; !ok {
		return failAll(shards)
	}

	client, err := ini.clients.Client(leader)
	if err != nil {
		return failAll(shards)
	}

	reqCtx, cancel := context.WithTimeout(ctx, ini.timeout)
	defer cancel()

	var resp InitShardsResponse
	err = ini.guard.Protect(reqCtx, func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = client.InitShards(ctx, InitShardsRequest{Shards: shards})
		return rpcErr
	})
	if err != nil {
		return failAll(shards)
	}

	requested := make(map[model.ShardID]struct{}, len(shards))
	for _, shard := range shards {
		requested[shard.ID] = struct{}{}
	}

	succeeded := make(map[model.ShardID]struct{}, len(resp.Succeeded))
	for _, id := range resp.Succeeded {
		if _, ok := requested[id]; !ok {
			// init_shards succeeded for a shard this leader was never
			// asked about (spec §7 kind 4): the Model has no record to
			// reconcile this against.
			panic(controlerr.ErrInvariantViolation.WithDetails(
				fmt.Sprintf("ingester %s reported success for shard %s outside its init_shards batch", leader, id)))
		}
		succeeded[id] = struct{}{}
	}

	outcomes := make([]InitOutcome, 0, len(shards))
	for _, shard := range shards {
		_, ok := succeeded[shard.ID]
		outcomes = append(outcomes, InitOutcome{Shard: shard, Success: ok})
	}
	return outcomes
}

func failAll(shards []*model.Shard) []InitOutcome {
	outcomes := make([]InitOutcome, 0, len(shards))
	for _, shard := range shards {
		outcomes = append(outcomes, InitOutcome{Shard: shard, Success: false})
	}
	return outcomes
}
