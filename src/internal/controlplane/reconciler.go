package controlplane

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shardctl/shardctl/internal/core/model"
)

// Reconciler tells ingesters the exhaustive set of shards they should host,
// so that an ingester treats the request as ground truth and drops
// anything else. It runs fire-and-forget: the controller does not wait for
// a reply, it only logs failures.
type Reconciler struct {
	model     *model.Model
	ingesters IngesterClients
	timeout   time.Duration
	logger    *slog.Logger

	wg      sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

// NewReconciler creates a Reconciler. timeout bounds the outer lifetime of
// each fire-and-forget retain_shards call.
func NewReconciler(m *model.Model, ingesters IngesterClients, timeout time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{model: m, ingesters: ingesters, timeout: timeout, logger: logger, stopped: make(chan struct{})}
}

// Reconcile sends one retain_shards RPC per node in nodes, fire-and-forget.
// It returns a WaitGroup-backed handle tests can use to synchronize on
// completion; production callers are free to ignore it.
func (rc *Reconciler) Reconcile(nodes []model.NodeID) *sync.WaitGroup {
	var done sync.WaitGroup
	for _, node := range nodes {
		node := node
		rc.wg.Add(1)
		done.Add(1)
		go func() {
			defer rc.wg.Done()
			defer done.Done()
			rc.reconcileNode(node)
		}()
	}
	return &done
}

func (rc *Reconciler) reconcileNode(node model.NodeID) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.timeout)
	defer cancel()

	perSource := rc.model.ListShardsForNode(node)
	retain := make(map[model.SourceUID][]model.ShardID, len(perSource))
	for source, ids := range perSource {
		retain[source] = ids
	}

	client, err := rc.ingesters.Client(node)
	if err != nil {
		rc.logger.Error("reconciler: client lookup failed", "node_id", node, "error", err)
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- client.RetainShards(ctx, RetainShardsRequest{RetainPerSource: retain})
	}()

	select {
	case err := <-done:
		if err != nil {
			rc.logger.Error("reconciler: retain_shards failed", "node_id", node, "error", err)
		}
	case <-ctx.Done():
		rc.logger.Warn("reconciler: retain_shards timed out", "node_id", node)
	case <-rc.stopped:
	}
}

// Shutdown waits for in-flight reconciliations to finish or time out.
func (rc *Reconciler) Shutdown() {
	rc.once.Do(func() { close(rc.stopped) })
	rc.wg.Wait()
}
