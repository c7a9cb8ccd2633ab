package model

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropy is shared across NewShardID calls. ulid.Monotonic is not safe for
// concurrent use on its own, so access is serialized by entropyMu; this only
// matters for ShardIDs minted within the same millisecond.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NodeID identifies an ingester. Total-ordered by lexicographic comparison.
type NodeID string

// SourceUID identifies one logical ingestion stream inside one index.
type SourceUID struct {
	IndexID  string
	SourceID string
}

func (s SourceUID) String() string {
	return s.IndexID + "/" + s.SourceID
}

// ShardID is a time-ordered 128-bit token: the lowest ShardID among a set
// is always the oldest shard, which the scale-down candidate selection and
// the Rebalancer's choice of which shards to move both rely on.
type ShardID string

// NewShardID mints a fresh, monotonically increasing ShardID.
func NewShardID() ShardID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return ShardID(id.String())
}

// Less reports whether id is ordered before other (oldest-first).
func (id ShardID) Less(other ShardID) bool {
	return strings.Compare(string(id), string(other)) < 0
}
