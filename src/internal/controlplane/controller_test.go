package controlplane

import (
	"context"
	"testing"
	"time"

	"github.com/shardctl/shardctl/internal/core/model"
)

func TestController_GetOrCreateOpenShardsEndToEnd(t *testing.T) {
	m := model.New(0)
	m.RegisterSource("idx", "src")

	pool := newFakePool("i1", "i2")
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())
	clients.set("i2", newFakeIngesterClient())

	c := New(Config{
		Model:     m,
		Pool:      pool,
		Metastore: metastore,
		Ingesters: clients,
		Tunables:  TestTunables(),
	})
	defer c.Shutdown()

	resp, err := c.GetOrCreateOpenShards(context.Background(), GetOrCreateOpenShardsRequest{
		Subrequests: []OpenShardsSubrequestQuery{{SubrequestID: 1, IndexID: "idx", SourceID: "src"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Successes) != 1 || len(resp.Successes[0].Shards) != 1 {
		t.Fatalf("expected 1 success with 1 shard, got %+v", resp)
	}
}

func TestController_RebalanceCallbackAppliesCloseUnderLock(t *testing.T) {
	m := model.New(0)
	source := model.SourceUID{IndexID: "idx", SourceID: "src"}
	m.RegisterSource("idx", "src")
	var shards []*model.Shard
	for i := 0; i < 3; i++ {
		shards = append(shards, &model.Shard{ID: model.NewShardID(), Source: source, Leader: "i1", State: model.ShardOpen})
	}
	m.InsertShards(shards)

	pool := newFakePool("i1", "i2", "i3")
	metastore := &fakeMetastore{}
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())
	clients.set("i2", newFakeIngesterClient())
	clients.set("i3", newFakeIngesterClient())

	tunables := TestTunables()
	tunables.FireAndForgetTimeout = time.Second
	c := New(Config{
		Model:     m,
		Pool:      pool,
		Metastore: metastore,
		Ingesters: clients,
		Tunables:  tunables,
	})
	defer c.Shutdown()

	c.TriggerRebalance(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		all, _ := m.ShardsForSource(source)
		closedCount := 0
		for _, s := range all {
			if s.State == model.ShardClosed {
				closedCount++
			}
		}
		if closedCount == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for rebalance's deferred close to apply")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestController_AdviseResetShards(t *testing.T) {
	m := model.New(0)
	source := model.SourceUID{IndexID: "idx", SourceID: "src"}
	m.RegisterSource("idx", "src")
	shard := &model.Shard{ID: model.NewShardID(), Source: source, Leader: "i1", State: model.ShardClosed, PublishPositionInclusive: "7"}
	m.InsertShards([]*model.Shard{shard})

	c := New(Config{
		Model:     m,
		Pool:      newFakePool("i1"),
		Metastore: &fakeMetastore{},
		Ingesters: newFakeIngesterClients(),
		Tunables:  TestTunables(),
	})
	defer c.Shutdown()

	resp := c.AdviseResetShards(AdviseResetShardsRequest{
		ShardIDs: map[model.SourceUID][]model.ShardID{source: {shard.ID}},
	})
	if len(resp.ShardsToTruncate) != 1 {
		t.Fatalf("expected 1 shard to truncate, got %+v", resp)
	}
}

func TestController_ReconcileIsNonBlocking(t *testing.T) {
	m := model.New(0)
	clients := newFakeIngesterClients()
	clients.set("i1", newFakeIngesterClient())

	c := New(Config{
		Model:     m,
		Pool:      newFakePool("i1"),
		Metastore: &fakeMetastore{},
		Ingesters: clients,
		Tunables:  TestTunables(),
	})
	defer c.Shutdown()

	done := c.Reconcile([]model.NodeID{"i1"})
	waitCh := make(chan struct{})
	go func() {
		done.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(time.Second):
		t.Fatal("expected Reconcile to complete promptly")
	}
}
