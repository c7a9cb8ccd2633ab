package controlplane

import "github.com/shardctl/shardctl/internal/core/model"

// ResetAdvisor answers an ingester restart/resync query: for each shard ID
// it still has local state for, is it safe to discard outright, or must it
// be truncated to a known published position? It is a pure function of the
// Model; it issues no RPCs and performs no mutations.
type ResetAdvisor struct {
	model *model.Model
}

// NewResetAdvisor creates a ResetAdvisor.
func NewResetAdvisor(m *model.Model) *ResetAdvisor {
	return &ResetAdvisor{model: m}
}

// Advise partitions req's shard IDs into ShardsToDelete (unknown to the
// Model, or the whole source is unknown) and ShardsToTruncate (known,
// returned with their PublishPositionInclusive).
func (ra *ResetAdvisor) Advise(req AdviseResetShardsRequest) AdviseResetShardsResponse {
	resp := AdviseResetShardsResponse{
		ShardsToDelete: make(map[model.SourceUID][]model.ShardID),
	}

	for source, ids := range req.ShardIDs {
		known, sourceExists := ra.model.ShardsForSource(source)
		for _, id := range ids {
			if !sourceExists {
				resp.ShardsToDelete[source] = append(resp.ShardsToDelete[source], id)
				continue
			}
			shard, ok := known[id]
			if !ok {
				resp.ShardsToDelete[source] = append(resp.ShardsToDelete[source], id)
				continue
			}
			resp.ShardsToTruncate = append(resp.ShardsToTruncate, ShardTruncate{
				Source:                    source,
				ShardID:                   id,
				PublishPositionInclusive: shard.PublishPositionInclusive,
			})
		}
	}

	return resp
}
