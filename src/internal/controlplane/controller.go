package controlplane

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shardctl/shardctl/internal/core/model"
)

// Controller composes the five cooperating components into the single
// entry point routers, ingesters, and the rebalance timer talk to.
//
// apiMu stands in for the single-threaded dispatch loop the design assumes
// (spec §5): every public operation except Reconcile runs under it for its
// whole duration, including the metastore and ingester RPCs it awaits, so
// Model mutations never interleave across calls. Only the Rebalancer's
// deferred closer (its delay and close_shards RPCs) and the Reconciler's
// fire-and-forget retain_shards calls run outside it; the closer's result
// is applied to the Model under apiMu again.
type Controller struct {
	model       *model.Model
	pool        PoolView
	resolver    *Resolver
	autoscaler  *Autoscaler
	rebalancer  *Rebalancer
	reconciler  *Reconciler
	resetAdvisor *ResetAdvisor
	logger      *slog.Logger

	apiMu sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Config bundles everything needed to construct a Controller.
type Config struct {
	Model     *model.Model
	Pool      PoolView
	Metastore MetastoreClient
	Ingesters IngesterClients
	Tunables  Tunables
	Logger    *slog.Logger
}

// New constructs a fully wired Controller.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	allocator := NewAllocator()
	guard := NewProgressGuard(cfg.Tunables.FireAndForgetTimeout, cfg.Logger)
	initializer := NewInitializer(cfg.Ingesters, guard, cfg.Tunables.InitShardsTimeout)

	c := &Controller{
		model:        cfg.Model,
		pool:         cfg.Pool,
		resolver:     NewResolver(cfg.Model, cfg.Pool, allocator, initializer, cfg.Metastore, cfg.Tunables),
		autoscaler:   NewAutoscaler(cfg.Model, cfg.Pool, allocator, initializer, cfg.Metastore, cfg.Ingesters, cfg.Tunables),
		rebalancer:   NewRebalancer(cfg.Model, cfg.Pool, allocator, initializer, cfg.Metastore, cfg.Ingesters, cfg.Tunables, cfg.Logger),
		reconciler:   NewReconciler(cfg.Model, cfg.Ingesters, cfg.Tunables.FireAndForgetTimeout, cfg.Logger),
		resetAdvisor: NewResetAdvisor(cfg.Model),
		logger:       cfg.Logger,
		stopCh:       make(chan struct{}),
	}

	c.wg.Add(1)
	go c.drainRebalanceCallbacks()

	return c
}

// GetOrCreateOpenShards serves a router's request for open shards.
func (c *Controller) GetOrCreateOpenShards(ctx context.Context, req GetOrCreateOpenShardsRequest) (GetOrCreateOpenShardsResponse, error) {
	c.apiMu.Lock()
	defer c.apiMu.Unlock()
	return c.resolver.GetOrCreateOpenShards(ctx, req)
}

// HandleLocalShardsUpdate processes an ingester's throughput push and
// returns the freshly computed ShardStats.
func (c *Controller) HandleLocalShardsUpdate(ctx context.Context, update LocalShardsUpdate) model.ShardStats {
	c.apiMu.Lock()
	defer c.apiMu.Unlock()
	return c.autoscaler.HandleLocalShardsUpdate(ctx, update)
}

// TriggerRebalance runs one rebalance pass, typically called from a timer.
// If a rebalance is already in flight, this is a silent no-op.
func (c *Controller) TriggerRebalance(ctx context.Context) {
	c.apiMu.Lock()
	defer c.apiMu.Unlock()
	c.rebalancer.Trigger(ctx)
}

// Reconcile sends retain_shards to every given node, fire-and-forget. The
// returned WaitGroup lets tests synchronize on completion.
func (c *Controller) Reconcile(nodes []model.NodeID) *sync.WaitGroup {
	return c.reconciler.Reconcile(nodes)
}

// AdviseResetShards answers a restart/resync query.
func (c *Controller) AdviseResetShards(req AdviseResetShardsRequest) AdviseResetShardsResponse {
	c.apiMu.Lock()
	defer c.apiMu.Unlock()
	return c.resetAdvisor.Advise(req)
}

// drainRebalanceCallbacks applies each completed rebalance's closed shards
// to the Model and releases the rebalance lock, all under apiMu so it
// never races a concurrent public call.
func (c *Controller) drainRebalanceCallbacks() {
	defer c.wg.Done()
	for {
		select {
		case cb := <-c.rebalancer.Callbacks():
			c.apiMu.Lock()
			for _, pkey := range cb.ClosedShards {
				c.model.CloseShards(pkey.Source, []model.ShardID{pkey.ID})
			}
			c.apiMu.Unlock()
			cb.Release()
		case <-c.stopCh:
			return
		}
	}
}

// Shutdown stops accepting new work and waits for in-flight fire-and-forget
// tasks to finish or abandon.
func (c *Controller) Shutdown() {
	close(c.stopCh)
	c.rebalancer.Shutdown()
	c.reconciler.Shutdown()
	c.wg.Wait()
}
