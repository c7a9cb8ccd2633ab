package pool

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/memberlist"

	"github.com/shardctl/shardctl/internal/core/model"
)

// Pool tracks ingester membership via gossip and exposes a read-mostly
// snapshot of the live node set to the control plane.
type Pool struct {
	config     *memberlist.Config
	memberList *memberlist.Memberlist
	logger     *slog.Logger
	shutdown   atomic.Bool

	clusterID string

	mu      sync.RWMutex
	members map[model.NodeID]struct{}

	onJoin  func(node model.NodeID)
	onLeave func(node model.NodeID)
}

// Config configures the gossip-backed pool.
type Config struct {
	// NodeID is this process's own node identifier.
	NodeID string

	// ClusterID rejects cross-cluster gossip merges: a joining node
	// advertising a different ClusterID is ignored rather than merged.
	ClusterID string

	// BindAddr/BindPort are the gossip transport's listen address.
	BindAddr string
	BindPort int

	// SeedNodes are the initial addresses to contact to join the
	// cluster. Empty means bootstrap a brand new cluster.
	SeedNodes []string

	Logger *slog.Logger
}

// New creates a Pool and joins the gossip cluster.
func New(cfg Config) (*Pool, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.LogOutput = &slogWriter{logger: cfg.Logger}

	p := &Pool{
		config:    mlConfig,
		logger:    cfg.Logger,
		clusterID: cfg.ClusterID,
		members:   make(map[model.NodeID]struct{}),
	}

	mlConfig.Delegate = &metadataDelegate{clusterID: cfg.ClusterID}
	mlConfig.Events = &eventDelegate{pool: p}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("pool: create memberlist: %w", err)
	}
	p.memberList = ml
	p.members[model.NodeID(cfg.NodeID)] = struct{}{}

	if len(cfg.SeedNodes) > 0 {
		n, err := ml.Join(cfg.SeedNodes)
		if err != nil {
			ml.Shutdown()
			return nil, fmt.Errorf("pool: join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined ingester pool", "node_id", cfg.NodeID, "joined_count", n)
	} else {
		cfg.Logger.Info("bootstrapped ingester pool", "node_id", cfg.NodeID)
	}

	return p, nil
}

// Snapshot returns the set of currently live ingester NodeIDs. The control
// plane consults this on every Allocator call and every unavailable-leader
// confirmation; it never blocks on gossip convergence.
func (p *Pool) Snapshot() map[model.NodeID]struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[model.NodeID]struct{}, len(p.members))
	for node := range p.members {
		out[node] = struct{}{}
	}
	return out
}

// Contains reports whether node is currently a live member.
func (p *Pool) Contains(node model.NodeID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.members[node]
	return ok
}

// OnJoin registers a callback invoked when a node joins the pool.
func (p *Pool) OnJoin(fn func(node model.NodeID)) { p.onJoin = fn }

// OnLeave registers a callback invoked when a node leaves the pool.
func (p *Pool) OnLeave(fn func(node model.NodeID)) { p.onLeave = fn }

// Shutdown leaves the gossip cluster and releases transport resources.
func (p *Pool) Shutdown() error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if p.memberList == nil {
		return nil
	}
	if err := p.memberList.Leave(0); err != nil {
		p.logger.Error("pool: leave error", "error", err)
	}
	if err := p.memberList.Shutdown(); err != nil {
		return fmt.Errorf("pool: shutdown memberlist: %w", err)
	}
	p.logger.Info("ingester pool shutdown complete")
	return nil
}

type eventDelegate struct {
	pool *Pool
}

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	var meta nodeMetadata
	if len(node.Meta) > 0 {
		if err := json.Unmarshal(node.Meta, &meta); err != nil {
			e.pool.logger.Error("pool: invalid node metadata, rejecting", "node_id", node.Name, "error", err)
			return
		}
	}
	if e.pool.clusterID != "" && meta.ClusterID != "" && meta.ClusterID != e.pool.clusterID {
		e.pool.logger.Error("pool: cluster id mismatch, rejecting node",
			"node_id", node.Name, "expected", e.pool.clusterID, "actual", meta.ClusterID)
		return
	}

	id := model.NodeID(node.Name)
	e.pool.mu.Lock()
	e.pool.members[id] = struct{}{}
	e.pool.mu.Unlock()

	e.pool.logger.Info("ingester joined pool", "node_id", node.Name)
	if e.pool.onJoin != nil {
		e.pool.onJoin(id)
	}
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	id := model.NodeID(node.Name)
	e.pool.mu.Lock()
	delete(e.pool.members, id)
	e.pool.mu.Unlock()

	e.pool.logger.Info("ingester left pool", "node_id", node.Name)
	if e.pool.onLeave != nil {
		e.pool.onLeave(id)
	}
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.pool.logger.Debug("ingester metadata updated", "node_id", node.Name)
}

// slogWriter adapts slog.Logger to io.Writer for memberlist's internal log.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Debug(string(p))
	return len(p), nil
}

type nodeMetadata struct {
	ClusterID string `json:"cluster_id"`
}

// metadataDelegate advertises this node's ClusterID to peers.
type metadataDelegate struct {
	clusterID string
}

func (m *metadataDelegate) NodeMeta(limit int) []byte {
	data, err := json.Marshal(nodeMetadata{ClusterID: m.clusterID})
	if err != nil {
		return nil
	}
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

func (m *metadataDelegate) NotifyMsg([]byte)                       {}
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (m *metadataDelegate) LocalState(join bool) []byte            { return nil }
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool) {}
