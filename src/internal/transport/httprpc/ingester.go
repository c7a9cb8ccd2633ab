package httprpc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shardctl/shardctl/internal/controlplane"
	"github.com/shardctl/shardctl/internal/core/controlerr"
	"github.com/shardctl/shardctl/internal/core/model"
)

// IngesterClient is a controlplane.IngesterClient backed by JSON POSTs to
// one ingester's HTTP RPC endpoint.
type IngesterClient struct {
	baseURL string
	client  *http.Client
}

func newIngesterClient(baseURL string, timeout time.Duration, opts ...Option) *IngesterClient {
	return &IngesterClient{baseURL: baseURL, client: newHTTPClient(timeout, opts)}
}

// InitShards asks the leader to start serving a freshly committed batch.
func (c *IngesterClient) InitShards(ctx context.Context, req controlplane.InitShardsRequest) (controlplane.InitShardsResponse, error) {
	var resp controlplane.InitShardsResponse
	if err := c.post(ctx, "/v1/shards/init", req, &resp); err != nil {
		return controlplane.InitShardsResponse{}, controlerr.ErrIngesterUnreachable.WithCause(err)
	}
	return resp, nil
}

// CloseShards asks the leader to stop serving the given shards.
func (c *IngesterClient) CloseShards(ctx context.Context, req controlplane.CloseShardsRequest) error {
	if err := c.post(ctx, "/v1/shards/close", req, nil); err != nil {
		return controlerr.ErrIngesterUnreachable.WithCause(err)
	}
	return nil
}

// RetainShards tells the ingester the exhaustive set of shards it should
// keep hosting.
//
// RetainShardsRequest keys its payload by model.SourceUID, a struct, which
// encoding/json cannot use as a map key; retainWireRequest carries the same
// data as a slice for the wire and is reassembled on the far side.
func (c *IngesterClient) RetainShards(ctx context.Context, req controlplane.RetainShardsRequest) error {
	wire := retainWireRequest{RetainPerSource: make([]retainWireEntry, 0, len(req.RetainPerSource))}
	for source, ids := range req.RetainPerSource {
		wire.RetainPerSource = append(wire.RetainPerSource, retainWireEntry{Source: source, ShardIDs: ids})
	}
	if err := c.post(ctx, "/v1/shards/retain", wire, nil); err != nil {
		return controlerr.ErrIngesterUnreachable.WithCause(err)
	}
	return nil
}

type retainWireEntry struct {
	Source   model.SourceUID
	ShardIDs []model.ShardID
}

type retainWireRequest struct {
	RetainPerSource []retainWireEntry
}

func (c *IngesterClient) post(ctx context.Context, path string, body, out any) error {
	return doPost(ctx, c.client, c.baseURL+path, body, out)
}

// IngesterClients resolves a NodeID to an IngesterClient using a static
// NodeID → HTTP base URL map. Gossip membership (internal/pool) tells the
// controller which nodes are alive; it carries no address, so the address
// book here holds only what NewIngesterClients and SetAddress were given.
// Nothing fills it from configuration or from membership events.
type IngesterClients struct {
	timeout time.Duration
	opts    []Option

	mu        sync.RWMutex
	addresses map[model.NodeID]string
	clients   map[model.NodeID]*IngesterClient
}

// NewIngesterClients builds an IngesterClients over the given NodeID →
// base URL address book.
func NewIngesterClients(addresses map[model.NodeID]string, timeout time.Duration, opts ...Option) *IngesterClients {
	book := make(map[model.NodeID]string, len(addresses))
	for node, addr := range addresses {
		book[node] = addr
	}
	return &IngesterClients{
		timeout:   timeout,
		opts:      opts,
		addresses: book,
		clients:   make(map[model.NodeID]*IngesterClient),
	}
}

// SetAddress registers or updates the HTTP base URL for a node, for use
// when address assignment changes after startup.
func (c *IngesterClients) SetAddress(node model.NodeID, baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addresses[node] = baseURL
	delete(c.clients, node)
}

// Client returns the IngesterClient for node, constructing and caching it
// on first use.
func (c *IngesterClients) Client(node model.NodeID) (controlplane.IngesterClient, error) {
	c.mu.RLock()
	if client, ok := c.clients[node]; ok {
		c.mu.RUnlock()
		return client, nil
	}
	addr, ok := c.addresses[node]
	c.mu.RUnlock()
	if !ok {
		return nil, controlerr.ErrIngesterUnreachable.WithCause(fmt.Errorf("no address registered for node %q", node))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[node]; ok {
		return client, nil
	}
	client := newIngesterClient(addr, c.timeout, c.opts...)
	c.clients[node] = client
	return client, nil
}
