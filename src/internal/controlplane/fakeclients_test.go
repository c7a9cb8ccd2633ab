package controlplane

import (
	"context"
	"fmt"
	"sync"

	"github.com/shardctl/shardctl/internal/core/model"
)

// fakePool is a PoolView backed by a fixed, mutable membership set.
type fakePool struct {
	mu      sync.Mutex
	members map[model.NodeID]struct{}
}

func newFakePool(nodes ...model.NodeID) *fakePool {
	members := make(map[model.NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		members[n] = struct{}{}
	}
	return &fakePool{members: members}
}

func (p *fakePool) Snapshot() map[model.NodeID]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[model.NodeID]struct{}, len(p.members))
	for n := range p.members {
		out[n] = struct{}{}
	}
	return out
}

func (p *fakePool) Contains(node model.NodeID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.members[node]
	return ok
}

func (p *fakePool) remove(node model.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members, node)
}

// fakeMetastore commits whatever it is asked to, stamping State=ShardOpen,
// unless configured to fail.
type fakeMetastore struct {
	mu      sync.Mutex
	failErr error
	calls   int
}

func (m *fakeMetastore) OpenShards(_ context.Context, req OpenShardsRequest) (OpenShardsResponse, error) {
	m.mu.Lock()
	m.calls++
	fail := m.failErr
	m.mu.Unlock()

	if fail != nil {
		return OpenShardsResponse{}, fail
	}

	resp := OpenShardsResponse{Subresponses: make([]OpenShardsSubresponse, len(req.Subrequests))}
	for i, sub := range req.Subrequests {
		resp.Subresponses[i] = OpenShardsSubresponse{
			SubrequestID: sub.SubrequestID,
			Shard: &model.Shard{
				ID:       sub.ShardID,
				Source:   sub.Source,
				Leader:   sub.LeaderID,
				Follower: sub.FollowerID,
				State:    model.ShardOpen,
			},
		}
	}
	return resp, nil
}

// fakeIngesterClient lets tests script per-node init/close/retain behavior.
type fakeIngesterClient struct {
	mu sync.Mutex

	initFailIDs map[model.ShardID]struct{}
	initErr     error
	closeErr    error
	retainErr   error
	// retainBlock, when non-nil, makes RetainShards wait until it is
	// closed, ignoring ctx, to simulate an unresponsive ingester.
	retainBlock chan struct{}

	retainCalls []RetainShardsRequest
	closeCalls  []CloseShardsRequest
}

func newFakeIngesterClient() *fakeIngesterClient {
	return &fakeIngesterClient{initFailIDs: make(map[model.ShardID]struct{})}
}

func (c *fakeIngesterClient) InitShards(_ context.Context, req InitShardsRequest) (InitShardsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initErr != nil {
		return InitShardsResponse{}, c.initErr
	}

	var succeeded []model.ShardID
	for _, shard := range req.Shards {
		if _, fail := c.initFailIDs[shard.ID]; !fail {
			succeeded = append(succeeded, shard.ID)
		}
	}
	return InitShardsResponse{Succeeded: succeeded}, nil
}

func (c *fakeIngesterClient) CloseShards(_ context.Context, req CloseShardsRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls = append(c.closeCalls, req)
	return c.closeErr
}

func (c *fakeIngesterClient) RetainShards(_ context.Context, req RetainShardsRequest) error {
	c.mu.Lock()
	c.retainCalls = append(c.retainCalls, req)
	block, err := c.retainBlock, c.retainErr
	c.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

// fakeIngesterClients is an IngesterClients backed by a fixed node->client
// map; nodes not present return a lookup error.
type fakeIngesterClients struct {
	mu      sync.Mutex
	clients map[model.NodeID]*fakeIngesterClient
}

func newFakeIngesterClients() *fakeIngesterClients {
	return &fakeIngesterClients{clients: make(map[model.NodeID]*fakeIngesterClient)}
}

func (c *fakeIngesterClients) set(node model.NodeID, client *fakeIngesterClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[node] = client
}

func (c *fakeIngesterClients) Client(node model.NodeID) (IngesterClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[node]
	if !ok {
		return nil, fmt.Errorf("fakeIngesterClients: no client for %s", node)
	}
	return client, nil
}
