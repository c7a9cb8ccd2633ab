package controlplane

import (
	"testing"

	"github.com/shardctl/shardctl/internal/core/model"
)

// Scenario 6 (spec §8): an ingester asks what to do with a mix of known and
// unknown shard IDs, plus a shard from an entirely unknown source.
func TestResetAdvisor_PartitionsDeleteVsTruncate(t *testing.T) {
	m := model.New(0)
	source := model.SourceUID{IndexID: "idx", SourceID: "src"}
	m.RegisterSource("idx", "src")

	known := &model.Shard{ID: model.NewShardID(), Source: source, Leader: "i1", State: model.ShardClosed, PublishPositionInclusive: "00042"}
	m.InsertShards([]*model.Shard{known})

	unknownID := model.NewShardID()
	unknownSource := model.SourceUID{IndexID: "idx", SourceID: "ghost"}

	ra := NewResetAdvisor(m)
	resp := ra.Advise(AdviseResetShardsRequest{
		ShardIDs: map[model.SourceUID][]model.ShardID{
			source:        {known.ID, unknownID},
			unknownSource: {model.NewShardID()},
		},
	})

	if len(resp.ShardsToTruncate) != 1 {
		t.Fatalf("expected 1 shard to truncate, got %+v", resp.ShardsToTruncate)
	}
	if resp.ShardsToTruncate[0].ShardID != known.ID || resp.ShardsToTruncate[0].PublishPositionInclusive != "00042" {
		t.Errorf("unexpected truncate entry: %+v", resp.ShardsToTruncate[0])
	}

	deletedKnownSource := resp.ShardsToDelete[source]
	if len(deletedKnownSource) != 1 || deletedKnownSource[0] != unknownID {
		t.Errorf("expected unknown shard ID under known source to be deleted, got %+v", deletedKnownSource)
	}

	deletedUnknownSource := resp.ShardsToDelete[unknownSource]
	if len(deletedUnknownSource) != 1 {
		t.Errorf("expected shard from unknown source to be deleted, got %+v", deletedUnknownSource)
	}
}

func TestResetAdvisor_EmptyRequest(t *testing.T) {
	m := model.New(0)
	ra := NewResetAdvisor(m)
	resp := ra.Advise(AdviseResetShardsRequest{})
	if len(resp.ShardsToDelete) != 0 || len(resp.ShardsToTruncate) != 0 {
		t.Errorf("expected empty response for empty request, got %+v", resp)
	}
}

func TestResetAdvisor_IsPureNoMutation(t *testing.T) {
	m := model.New(0)
	source := model.SourceUID{IndexID: "idx", SourceID: "src"}
	m.RegisterSource("idx", "src")
	shard := &model.Shard{ID: model.NewShardID(), Source: source, Leader: "i1", State: model.ShardOpen}
	m.InsertShards([]*model.Shard{shard})

	ra := NewResetAdvisor(m)
	ra.Advise(AdviseResetShardsRequest{ShardIDs: map[model.SourceUID][]model.ShardID{source: {shard.ID}}})

	shards, _ := m.ShardsForSource(source)
	if shards[shard.ID].State != model.ShardOpen {
		t.Error("expected Advise to never mutate the Model")
	}
}
