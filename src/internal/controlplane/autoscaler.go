package controlplane

import (
	"context"
	"sort"

	"github.com/shardctl/shardctl/internal/core/model"
)

// Autoscaler reacts to per-source throughput updates with rate-limited
// decisions to open one more shard or close one candidate shard.
type Autoscaler struct {
	model       *model.Model
	pool        PoolView
	allocator   *Allocator
	initializer *Initializer
	metastore   MetastoreClient
	ingesters   IngesterClients
	tunables    Tunables
}

// NewAutoscaler creates an Autoscaler.
func NewAutoscaler(
	m *model.Model,
	pool PoolView,
	allocator *Allocator,
	initializer *Initializer,
	metastore MetastoreClient,
	ingesters IngesterClients,
	tunables Tunables,
) *Autoscaler {
	return &Autoscaler{model: m, pool: pool, allocator: allocator, initializer: initializer, metastore: metastore, ingesters: ingesters, tunables: tunables}
}

// HandleLocalShardsUpdate feeds infos into the Model and, depending on the
// resulting aggregate throughput, attempts at most one scale-up or
// scale-down for the source. The 20%-80% band between ScaleDownThreshold
// and ScaleUpThreshold is a deliberate hysteresis: it is a no-op.
func (a *Autoscaler) HandleLocalShardsUpdate(ctx context.Context, update LocalShardsUpdate) model.ShardStats {
	stats := a.model.UpdateShards(update.Source, update.ShardInfos)

	switch {
	case stats.AvgIngestionRateMiBPerSec >= a.tunables.ScaleUpThreshold:
		a.scaleUp(ctx, update.Source)
	case stats.AvgIngestionRateMiBPerSec <= a.tunables.ScaleDownThreshold && stats.NumOpenShards > 1:
		a.scaleDown(ctx, update.Source)
	}

	return stats
}

func (a *Autoscaler) scaleUp(ctx context.Context, source model.SourceUID) {
	if !a.model.AcquireScalingPermit(source, model.ScaleUp) {
		return
	}

	poolSnapshot := a.pool.Snapshot()
	counts := a.model.OpenShardCountsByLeader(nil)
	placements, err := a.allocator.Allocate(poolSnapshot, nil, counts, 1, a.tunables.ReplicationFactor)
	if err != nil {
		a.model.ReleaseScalingPermit(source, model.ScaleUp)
		return
	}

	req := OpenShardsRequest{Subrequests: []OpenShardsSubrequest{{
		SubrequestID: 1,
		Source:       source,
		ShardID:      model.NewShardID(),
		LeaderID:     placements[0].Leader,
		FollowerID:   placements[0].Follower,
	}}}

	resp, err := a.metastore.OpenShards(ctx, req)
	if err != nil {
		a.model.ReleaseScalingPermit(source, model.ScaleUp)
		return
	}

	committed := make([]*model.Shard, 0, len(resp.Subresponses))
	for _, sr := range resp.Subresponses {
		if sr.Shard != nil {
			committed = append(committed, sr.Shard)
		}
	}

	outcomes := a.initializer.Init(ctx, poolSnapshot, committed)
	succeeded := make([]*model.Shard, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded = append(succeeded, outcome.Shard)
		}
	}
	if len(succeeded) == 0 {
		a.model.ReleaseScalingPermit(source, model.ScaleUp)
		return
	}

	a.model.InsertShards(succeeded)
	// Permit is consumed (not released) on success: it throttles the
	// rate of scale-ups, not the count.
}

func (a *Autoscaler) scaleDown(ctx context.Context, source model.SourceUID) {
	if !a.model.AcquireScalingPermit(source, model.ScaleDown) {
		return
	}

	candidate := a.selectScaleDownCandidate(source)
	if candidate == nil {
		a.model.ReleaseScalingPermit(source, model.ScaleDown)
		return
	}

	poolSnapshot := a.pool.Snapshot()
	if _, ok := poolSnapshot[candidate.Leader]; !ok {
		a.model.ReleaseScalingPermit(source, model.ScaleDown)
		return
	}

	client, err := a.ingesters.Client(candidate.Leader)
	if err != nil {
		a.model.ReleaseScalingPermit(source, model.ScaleDown)
		return
	}

	closeCtx, cancel := context.WithTimeout(ctx, a.tunables.CloseShardsTimeout)
	defer cancel()

	if err := client.CloseShards(closeCtx, CloseShardsRequest{
		ShardPKeys: []ShardPKey{{Source: source, ID: candidate.ID}},
	}); err != nil {
		a.model.ReleaseScalingPermit(source, model.ScaleDown)
		return
	}

	a.model.CloseShards(source, []model.ShardID{candidate.ID})
}

// selectScaleDownCandidate implements the Scale-Down Candidate Selection
// rule (spec §4.D): group source's open shards by leader, take the
// least-loaded leader, and within it pick the shard with the highest
// ingestion rate, tied-broken by lowest (oldest) ShardID.
func (a *Autoscaler) selectScaleDownCandidate(source model.SourceUID) *model.Shard {
	byLeader := a.model.OpenShardsByLeaderForSource(source)
	if len(byLeader) == 0 {
		return nil
	}

	leaders := make([]model.NodeID, 0, len(byLeader))
	for leader := range byLeader {
		leaders = append(leaders, leader)
	}
	sort.Slice(leaders, func(i, j int) bool { return leaders[i] < leaders[j] })

	var leastLoaded model.NodeID
	bestCount := -1
	for _, leader := range leaders {
		count := len(byLeader[leader])
		if bestCount == -1 || count < bestCount {
			bestCount = count
			leastLoaded = leader
		}
	}

	shards := byLeader[leastLoaded]
	representative := shards[0]
	for _, shard := range shards[1:] {
		switch {
		case shard.IngestionRateMiBPerSec > representative.IngestionRateMiBPerSec:
			representative = shard
		case shard.IngestionRateMiBPerSec == representative.IngestionRateMiBPerSec && shard.ID.Less(representative.ID):
			representative = shard
		}
	}
	return representative
}
