package httprpc

import (
	"context"
	"net/http"
	"time"

	"github.com/shardctl/shardctl/internal/controlplane"
	"github.com/shardctl/shardctl/internal/core/controlerr"
)

// MetastoreClient is a controlplane.MetastoreClient backed by a JSON POST
// to a configured metastore endpoint.
type MetastoreClient struct {
	baseURL string
	client  *http.Client
}

// NewMetastoreClient creates a MetastoreClient. timeout bounds every call
// as an http.Client-level deadline in addition to whatever the caller's ctx
// already carries.
func NewMetastoreClient(baseURL string, timeout time.Duration, opts ...Option) *MetastoreClient {
	return &MetastoreClient{baseURL: baseURL, client: newHTTPClient(timeout, opts)}
}

// OpenShards durably commits a batch of newly placed shards.
func (c *MetastoreClient) OpenShards(ctx context.Context, req controlplane.OpenShardsRequest) (controlplane.OpenShardsResponse, error) {
	var resp controlplane.OpenShardsResponse
	if err := c.post(ctx, "/v1/shards/open", req, &resp); err != nil {
		return controlplane.OpenShardsResponse{}, controlerr.ErrMetastoreUnavailable.WithCause(err)
	}
	return resp, nil
}

func (c *MetastoreClient) post(ctx context.Context, path string, body, out any) error {
	return doPost(ctx, c.client, c.baseURL+path, body, out)
}
