package controlplane

import "github.com/shardctl/shardctl/internal/core/model"

// GetOrCreateOpenShardsRequest is the Router → Controller request: ask for
// open shards, and opportunistically report recent observations alongside.
type GetOrCreateOpenShardsRequest struct {
	Subrequests        []OpenShardsSubrequestQuery
	ClosedShards       map[model.SourceUID][]model.ShardID
	UnavailableLeaders []model.NodeID
}

// OpenShardsSubrequestQuery identifies one (index, source) a router wants
// open shards for.
type OpenShardsSubrequestQuery struct {
	SubrequestID int64
	IndexID      string
	SourceID     string
}

// FailureReason is a client-visible reason a subrequest could not be
// resolved.
type FailureReason string

const (
	ReasonIndexNotFound        FailureReason = "IndexNotFound"
	ReasonSourceNotFound       FailureReason = "SourceNotFound"
	ReasonNoIngestersAvailable FailureReason = "NoIngestersAvailable"
)

// OpenShardsSuccess is one fulfilled subrequest.
type OpenShardsSuccess struct {
	SubrequestID int64
	Source       model.SourceUID
	Shards       []*model.Shard
}

// OpenShardsFailure is one subrequest the controller could not fulfill.
type OpenShardsFailure struct {
	SubrequestID int64
	IndexID      string
	SourceID     string
	Reason       FailureReason
}

// GetOrCreateOpenShardsResponse lists each subrequest at most once, across
// Successes and Failures. A subrequest whose newly committed shard failed
// to initialize appears in neither.
type GetOrCreateOpenShardsResponse struct {
	Successes []OpenShardsSuccess
	Failures  []OpenShardsFailure
}

// LocalShardsUpdate is the periodic Ingester → Controller push that drives
// the Autoscaler.
type LocalShardsUpdate struct {
	LeaderID   model.NodeID
	Source     model.SourceUID
	ShardInfos []model.ShardInfo
}

// OpenShardsSubrequest is one shard the controller wants the metastore to
// durably commit, with its placement already stamped in by the Allocator.
type OpenShardsSubrequest struct {
	SubrequestID int64
	Source       model.SourceUID
	ShardID      model.ShardID
	LeaderID     model.NodeID
	FollowerID   model.NodeID
}

// OpenShardsRequest is the Controller → Metastore commit call.
type OpenShardsRequest struct {
	Subrequests []OpenShardsSubrequest
}

// OpenShardsSubresponse is the metastore's durably committed record for one
// subrequest.
type OpenShardsSubresponse struct {
	SubrequestID int64
	Shard        *model.Shard
}

// OpenShardsResponse carries back one open Shard per subrequest the
// metastore durably committed.
type OpenShardsResponse struct {
	Subresponses []OpenShardsSubresponse
}

// InitShardsRequest is the Controller → Ingester fan-out call asking a
// leader to start serving a batch of freshly committed shards.
type InitShardsRequest struct {
	Shards []*model.Shard
}

// InitShardsResponse lists which of the requested shard IDs the leader
// successfully initialized; anything else is an implicit failure.
type InitShardsResponse struct {
	Succeeded []model.ShardID
}

// ShardPKey identifies one shard by its (source, id) primary key, without
// needing the full Shard record.
type ShardPKey struct {
	Source model.SourceUID
	ID     model.ShardID
}

// CloseShardsRequest asks a leader to stop serving the given shards.
type CloseShardsRequest struct {
	ShardPKeys []ShardPKey
}

// RetainShardsRequest tells an ingester the exhaustive set of shards it
// should keep; anything else it hosts should be dropped.
type RetainShardsRequest struct {
	RetainPerSource map[model.SourceUID][]model.ShardID
}

// AdviseResetShardsRequest is an ingester asking, after a restart or
// resync, what to do with a set of shard IDs it still holds local state
// for.
type AdviseResetShardsRequest struct {
	ShardIDs map[model.SourceUID][]model.ShardID
}

// ShardTruncate tells an ingester to keep a shard but discard anything up
// to and including PublishPositionInclusive.
type ShardTruncate struct {
	Source                   model.SourceUID
	ShardID                  model.ShardID
	PublishPositionInclusive string
}

// AdviseResetShardsResponse partitions the request's shard IDs into ones to
// delete outright and ones to truncate to a known position.
type AdviseResetShardsResponse struct {
	ShardsToDelete   map[model.SourceUID][]model.ShardID
	ShardsToTruncate []ShardTruncate
}
