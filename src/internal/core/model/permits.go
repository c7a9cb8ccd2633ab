package model

import (
	"sync"
	"time"
)

// ScalingMode distinguishes scale-up from scale-down permits. The Model
// tracks one bucket per (SourceUID, ScalingMode) pair.
type ScalingMode int

const (
	ScaleUp ScalingMode = iota
	ScaleDown
)

func (m ScalingMode) String() string {
	if m == ScaleUp {
		return "up"
	}
	return "down"
}

// permitBucket is a single-token bucket that refills after minInterval has
// elapsed since the token was last consumed. golang.org/x/time/rate.Limiter
// has no equivalent to Release (giving a token back on a failed attempt),
// which every scale-up/scale-down failure path in this controller needs, so
// the bucket is hand-rolled instead of built on that library.
type permitBucket struct {
	mu           sync.Mutex
	minInterval  time.Duration
	hasToken     bool
	lastConsumed time.Time
}

func newPermitBucket(minInterval time.Duration) *permitBucket {
	return &permitBucket{minInterval: minInterval, hasToken: true}
}

// acquire consumes the token if available, refilling it first if enough
// time has passed since it was last consumed.
func (b *permitBucket) acquire(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasToken && now.Sub(b.lastConsumed) >= b.minInterval {
		b.hasToken = true
	}
	if !b.hasToken {
		return false
	}
	b.hasToken = false
	b.lastConsumed = now
	return true
}

// release returns the token, used on every failure path after a successful
// acquire so that a failed scale attempt does not cost a full interval.
func (b *permitBucket) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hasToken = true
}

// drain forces the token to be unavailable for a fresh minInterval window,
// used by the Rebalancer to suppress an immediate Autoscaler scale-down of
// a source whose shards it just rebalanced.
func (b *permitBucket) drain(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hasToken = false
	b.lastConsumed = now
}

type permitKey struct {
	source SourceUID
	mode   ScalingMode
}

// permitTable owns every source's scaling permit buckets.
type permitTable struct {
	mu          sync.Mutex
	minInterval time.Duration
	buckets     map[permitKey]*permitBucket
}

func newPermitTable(minInterval time.Duration) *permitTable {
	return &permitTable{minInterval: minInterval, buckets: make(map[permitKey]*permitBucket)}
}

func (t *permitTable) bucket(source SourceUID, mode ScalingMode) *permitBucket {
	key := permitKey{source, mode}

	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[key]
	if !ok {
		b = newPermitBucket(t.minInterval)
		t.buckets[key] = b
	}
	return b
}

// AcquireScalingPermit attempts to acquire a permit for the given source
// and direction, returning false if one isn't currently available.
func (m *Model) AcquireScalingPermit(source SourceUID, mode ScalingMode) bool {
	return m.permits.bucket(source, mode).acquire(time.Now())
}

// ReleaseScalingPermit returns a previously acquired permit. Callers use
// this on every failure path between acquiring and the point of no return.
func (m *Model) ReleaseScalingPermit(source SourceUID, mode ScalingMode) {
	m.permits.bucket(source, mode).release()
}

// DrainScalingPermits consumes the permit for (source, mode) without a
// prior acquire, used by the Rebalancer so the Autoscaler doesn't
// immediately undo a rebalance.
func (m *Model) DrainScalingPermits(source SourceUID, mode ScalingMode) {
	m.permits.bucket(source, mode).drain(time.Now())
}
