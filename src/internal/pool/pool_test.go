package pool

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/shardctl/shardctl/internal/core/model"
)

func TestNew(t *testing.T) {
	t.Run("Bootstrap", func(t *testing.T) {
		cfg := Config{
			NodeID:   "test-node",
			BindAddr: "127.0.0.1",
			BindPort: 0,
			Logger:   slog.New(slog.NewTextHandler(os.Stdout, nil)),
		}

		p, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer p.Shutdown()

		if !p.Contains(model.NodeID("test-node")) {
			t.Error("expected self to be a member after bootstrap")
		}

		snap := p.Snapshot()
		if len(snap) != 1 {
			t.Errorf("expected 1 member, got %d", len(snap))
		}
	})

	t.Run("WithoutLogger", func(t *testing.T) {
		cfg := Config{
			NodeID:   "test-node-2",
			BindAddr: "127.0.0.1",
			BindPort: 0,
		}

		p, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer p.Shutdown()
	})

	t.Run("JoinSeed", func(t *testing.T) {
		seed, err := New(Config{
			NodeID:   "seed-node",
			BindAddr: "127.0.0.1",
			BindPort: 0,
			Logger:   slog.New(slog.NewTextHandler(os.Stdout, nil)),
		})
		if err != nil {
			t.Fatalf("create seed failed: %v", err)
		}
		defer seed.Shutdown()

		seedAddr := seed.memberList.LocalNode().Addr.String()
		seedPort := seed.memberList.LocalNode().Port

		time.Sleep(100 * time.Millisecond)

		joiner, err := New(Config{
			NodeID:    "joining-node",
			BindAddr:  "127.0.0.1",
			BindPort:  0,
			SeedNodes: []string{seedAddr + ":" + itoa(int(seedPort))},
			Logger:    slog.New(slog.NewTextHandler(os.Stdout, nil)),
		})
		if err != nil {
			t.Fatalf("joiner failed to join seed: %v", err)
		}
		defer joiner.Shutdown()

		time.Sleep(200 * time.Millisecond)

		if !seed.Contains(model.NodeID("joining-node")) {
			t.Error("expected seed to observe joining-node as a member")
		}
		if !joiner.Contains(model.NodeID("seed-node")) {
			t.Error("expected joiner to observe seed-node as a member")
		}
	})
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestPool_Callbacks(t *testing.T) {
	p, err := New(Config{
		NodeID:   "test-callbacks",
		BindAddr: "127.0.0.1",
		BindPort: 0,
		Logger:   slog.New(slog.NewTextHandler(os.Stdout, nil)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Shutdown()

	var joinedNode model.NodeID
	joinCalled := false
	p.OnJoin(func(node model.NodeID) {
		joinCalled = true
		joinedNode = node
	})

	var leftNode model.NodeID
	leaveCalled := false
	p.OnLeave(func(node model.NodeID) {
		leaveCalled = true
		leftNode = node
	})

	delegate, ok := p.config.Events.(*eventDelegate)
	if !ok {
		t.Fatal("expected eventDelegate")
	}

	meta := nodeMetadata{ClusterID: ""}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}

	mockNode := &memberlist.Node{
		Name: "mock-ingester",
		Addr: []byte{127, 0, 0, 1},
		Port: 8000,
		Meta: metaBytes,
	}

	delegate.NotifyJoin(mockNode)
	if !joinCalled {
		t.Error("OnJoin callback was not called")
	}
	if joinedNode != model.NodeID("mock-ingester") {
		t.Errorf("expected joined node 'mock-ingester', got %q", joinedNode)
	}
	if !p.Contains(model.NodeID("mock-ingester")) {
		t.Error("expected mock-ingester to be a member after NotifyJoin")
	}

	delegate.NotifyLeave(mockNode)
	if !leaveCalled {
		t.Error("OnLeave callback was not called")
	}
	if leftNode != model.NodeID("mock-ingester") {
		t.Errorf("expected left node 'mock-ingester', got %q", leftNode)
	}
	if p.Contains(model.NodeID("mock-ingester")) {
		t.Error("expected mock-ingester to be removed after NotifyLeave")
	}
}

func TestPool_ClusterIDMismatchRejected(t *testing.T) {
	p, err := New(Config{
		NodeID:    "test-clusterid",
		ClusterID: "cluster-a",
		BindAddr:  "127.0.0.1",
		BindPort:  0,
		Logger:    slog.New(slog.NewTextHandler(os.Stdout, nil)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Shutdown()

	delegate, ok := p.config.Events.(*eventDelegate)
	if !ok {
		t.Fatal("expected eventDelegate")
	}

	meta := nodeMetadata{ClusterID: "cluster-b"}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}

	mockNode := &memberlist.Node{
		Name: "foreign-node",
		Addr: []byte{127, 0, 0, 1},
		Port: 8001,
		Meta: metaBytes,
	}

	delegate.NotifyJoin(mockNode)

	if p.Contains(model.NodeID("foreign-node")) {
		t.Error("expected node with mismatched ClusterID to be rejected")
	}
}

func TestPool_Shutdown(t *testing.T) {
	p, err := New(Config{
		NodeID:   "test-shutdown",
		BindAddr: "127.0.0.1",
		BindPort: 0,
		Logger:   slog.New(slog.NewTextHandler(os.Stdout, nil)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.Shutdown(); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}

	// Second shutdown should be a no-op, not an error.
	if err := p.Shutdown(); err != nil {
		t.Errorf("second Shutdown failed: %v", err)
	}
}

func TestMetadataDelegate(t *testing.T) {
	delegate := &metadataDelegate{clusterID: "test-cluster-123"}

	meta := delegate.NodeMeta(512)
	if len(meta) == 0 {
		t.Fatal("expected non-empty metadata")
	}

	var decoded nodeMetadata
	if err := json.Unmarshal(meta, &decoded); err != nil {
		t.Fatalf("failed to unmarshal metadata: %v", err)
	}
	if decoded.ClusterID != "test-cluster-123" {
		t.Errorf("expected ClusterID 'test-cluster-123', got %q", decoded.ClusterID)
	}

	// Remaining Delegate methods should not panic.
	delegate.NotifyMsg(nil)
	delegate.GetBroadcasts(0, 0)
	delegate.LocalState(false)
	delegate.MergeRemoteState(nil, false)
}

func TestSlogWriter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	writer := &slogWriter{logger: logger}

	n, err := writer.Write([]byte("test message"))
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len("test message") {
		t.Errorf("expected %d bytes written, got %d", len("test message"), n)
	}
}
