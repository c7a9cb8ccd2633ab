package controlplane

import (
	"context"

	"github.com/shardctl/shardctl/internal/core/model"
)

// MetastoreClient is the controller's view of the durable shard metastore,
// the only component in the system allowed to durably commit a new shard.
type MetastoreClient interface {
	OpenShards(ctx context.Context, req OpenShardsRequest) (OpenShardsResponse, error)
}

// IngesterClient is one ingester leader's RPC surface, as the controller
// needs it.
type IngesterClient interface {
	InitShards(ctx context.Context, req InitShardsRequest) (InitShardsResponse, error)
	CloseShards(ctx context.Context, req CloseShardsRequest) error
	RetainShards(ctx context.Context, req RetainShardsRequest) error
}

// IngesterClients resolves a live NodeID to its RPC client. In production
// this is backed by the gossip pool's advertised address; tests supply a
// fake keyed by NodeID.
type IngesterClients interface {
	Client(node model.NodeID) (IngesterClient, error)
}

// PoolView is the subset of pool.Pool the control plane consults. It is an
// interface so tests can substitute a fixed membership set without
// standing up real gossip transport.
type PoolView interface {
	Snapshot() map[model.NodeID]struct{}
	Contains(node model.NodeID) bool
}
