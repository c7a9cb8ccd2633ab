package controlplane

import (
	"context"
	"testing"

	"github.com/shardctl/shardctl/internal/core/model"
)

func newTestResolver(t *testing.T, m *model.Model, pool *fakePool, metastore *fakeMetastore, clients *fakeIngesterClients) *Resolver {
	t.Helper()
	allocator := NewAllocator()
	guard := NewProgressGuard(TestTunables().FireAndForgetTimeout, nil)
	initializer := NewInitializer(clients, guard, TestTunables().InitShardsTimeout)
	return NewResolver(m, pool, allocator, initializer, metastore, TestTunables())
}

// Scenario 1 (spec §8): a cold resolver, two ingesters, replication factor 2.
func TestResolver_ColdTwoIngestersReplication2(t *testing.T) {
	m := model.New(0)
	m.RegisterSource("idx", "src")

	pool := newFakePool("i1", "i2")
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())
	clients.set("i2", newFakeIngesterClient())

	allocator := NewAllocator()
	guard := NewProgressGuard(TestTunables().FireAndForgetTimeout, nil)
	initializer := NewInitializer(clients, guard, TestTunables().InitShardsTimeout)
	tunables := TestTunables()
	tunables.ReplicationFactor = 2
	resolver := NewResolver(m, pool, allocator, initializer, metastore, tunables)

	resp, err := resolver.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests: []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "idx", SourceID: "src"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Failures) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.Failures)
	}
	if len(resp.Successes) != 1 {
		t.Fatalf("expected 1 success, got %d", len(resp.Successes))
	}
	shards := resp.Successes[0].Shards
	if len(shards) != 1 {
		t.Fatalf("expected 1 open shard, got %d", len(shards))
	}
	if shards[0].Leader != "i1" || shards[0].Follower != "i2" {
		t.Errorf("expected leader i1 follower i2, got leader=%s follower=%s", shards[0].Leader, shards[0].Follower)
	}
	if metastore.calls != 1 {
		t.Errorf("expected 1 metastore commit, got %d", metastore.calls)
	}
}

// Scenario 2: a router reports a shard closed in the same call asking for
// open shards; the closed shard must not come back in the response, and a
// fresh shard should be minted instead.
func TestResolver_StaleCloseThenResolve(t *testing.T) {
	m := model.New(0)
	source := model.SourceUID{IndexID: "idx", SourceID: "src"}
	m.RegisterSource("idx", "src")

	existing := &model.Shard{ID: model.NewShardID(), Source: source, Leader: "i1", State: model.ShardOpen}
	m.InsertShards([]*model.Shard{existing})

	pool := newFakePool("i1", "i2")
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())
	clients.set("i2", newFakeIngesterClient())

	resolver := newTestResolver(t, m, pool, metastore, clients)

	resp, err := resolver.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests:  []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "idx", SourceID: "src"}},
		ClosedShards: map[model.SourceUID][]model.ShardID{source: {existing.ID}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Successes) != 1 {
		t.Fatalf("expected 1 success, got %d", len(resp.Successes))
	}
	for _, shard := range resp.Successes[0].Shards {
		if shard.ID == existing.ID {
			t.Error("closed shard must not reappear as open")
		}
	}
	if metastore.calls != 1 {
		t.Errorf("expected a fresh shard to be minted, got %d metastore calls", metastore.calls)
	}
}

// Scenario 3: no ingesters available at all, the subrequest fails with
// NoIngestersAvailable and no metastore commit happens.
func TestResolver_NoIngestersAvailable(t *testing.T) {
	m := model.New(0)
	m.RegisterSource("idx", "src")

	pool := newFakePool()
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()

	resolver := newTestResolver(t, m, pool, metastore, clients)

	resp, err := resolver.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests: []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "idx", SourceID: "src"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Successes) != 0 {
		t.Fatalf("expected no successes, got %+v", resp.Successes)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Reason != ReasonNoIngestersAvailable {
		t.Fatalf("expected NoIngestersAvailable failure, got %+v", resp.Failures)
	}
	if metastore.calls != 0 {
		t.Errorf("expected no metastore commit, got %d", metastore.calls)
	}
}

func TestResolver_IndexNotFound(t *testing.T) {
	pool := newFakePool("i1")
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())
	m := model.New(0)
	resolver := newTestResolver(t, m, pool, metastore, clients)

	resp, err := resolver.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests: []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "missing", SourceID: "src"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Reason != ReasonIndexNotFound {
		t.Fatalf("expected IndexNotFound, got %+v", resp.Failures)
	}
}

func TestResolver_SourceNotFound(t *testing.T) {
	m := model.New(0)
	m.RegisterSource("idx", "other")

	pool := newFakePool("i1")
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())
	resolver := newTestResolver(t, m, pool, metastore, clients)

	resp, err := resolver.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests: []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "idx", SourceID: "src"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Reason != ReasonSourceNotFound {
		t.Fatalf("expected SourceNotFound, got %+v", resp.Failures)
	}
}

func TestResolver_MetastoreErrorFailsWholeCall(t *testing.T) {
	m := model.New(0)
	m.RegisterSource("idx", "src")

	pool := newFakePool("i1")
	metastore := &fakeMetastore{failErr: context.DeadlineExceeded}
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())
	resolver := newTestResolver(t, m, pool, metastore, clients)

	resp, err := resolver.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests: []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "idx", SourceID: "src"}},
	})
	if err == nil {
		t.Fatal("expected error from metastore failure")
	}
	if len(resp.Successes) != 0 || len(resp.Failures) != 0 {
		t.Errorf("expected empty response on whole-call failure, got %+v", resp)
	}
}

func TestResolver_ExistingOpenShardsServedWithoutAllocation(t *testing.T) {
	m := model.New(0)
	source := model.SourceUID{IndexID: "idx", SourceID: "src"}
	m.RegisterSource("idx", "src")
	existing := &model.Shard{ID: model.NewShardID(), Source: source, Leader: "i1", State: model.ShardOpen}
	m.InsertShards([]*model.Shard{existing})

	pool := newFakePool("i1")
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()
	resolver := newTestResolver(t, m, pool, metastore, clients)

	resp, err := resolver.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests: []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "idx", SourceID: "src"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metastore.calls != 0 {
		t.Errorf("expected no metastore calls when shards already open, got %d", metastore.calls)
	}
	if len(resp.Successes) != 1 || len(resp.Successes[0].Shards) != 1 {
		t.Fatalf("expected the existing shard served back, got %+v", resp.Successes)
	}
}
