package inmemory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedProbe answers from a per-node table; unknown nodes are up.
type scriptedProbe struct {
	mu   sync.Mutex
	down map[string]bool
}

func (p *scriptedProbe) set(nodeID string, down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down[nodeID] = down
}

func (p *scriptedProbe) Probe(_ context.Context, n node_registry.NodeRecord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.down[n.ID]
}

func newRegistry(t *testing.T, clock *fakeClock, ids ...string) *InMemoryNodeRegistry {
	t.Helper()
	r := NewInMemoryNodeRegistry(Config{
		HeartbeatTimeout: 10 * time.Second,
		FailureThreshold: 3,
		Clock:            clock.Now,
	}, log_service.NoOpLogService{})
	for _, id := range ids {
		require.NoError(t, r.RegisterNode(node_registry.NodeRecord{ID: id}))
	}
	return r
}

func TestInMemoryNodeRegistry_RegisterNode(t *testing.T) {
	tests := []struct {
		name    string
		node    node_registry.NodeRecord
		setupFn func(*InMemoryNodeRegistry)
		errorIs error
	}{
		{name: "new node", node: node_registry.NodeRecord{ID: "node1"}},
		{name: "empty id", node: node_registry.NodeRecord{}, errorIs: node_registry.ErrInvalidNodeID},
		{
			name: "duplicate",
			node: node_registry.NodeRecord{ID: "node1"},
			setupFn: func(r *InMemoryNodeRegistry) {
				_ = r.RegisterNode(node_registry.NodeRecord{ID: "node1"})
			},
			errorIs: node_registry.ErrNodeAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1000, 0)}
			r := newRegistry(t, clock)
			if tt.setupFn != nil {
				tt.setupFn(r)
			}

			err := r.RegisterNode(tt.node)
			if tt.errorIs != nil {
				assert.ErrorIs(t, err, tt.errorIs)
				return
			}
			require.NoError(t, err)

			got, ok := r.Get(tt.node.ID)
			require.True(t, ok)
			assert.Equal(t, node_registry.StateActive, got.State)
			assert.Equal(t, clock.Now(), got.LastHeartbeat)
		})
	}
}

func TestInMemoryNodeRegistry_ProbeStateMachine(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := newRegistry(t, clock, "node1", "node2")
	probe := &scriptedProbe{down: map[string]bool{}}
	r.SetProbe(probe)
	ctx := context.Background()

	probe.set("node2", true)

	changes := r.ProbeAll(ctx)
	require.Len(t, changes, 1)
	assert.Equal(t, node_registry.StateChange{NodeID: "node2", From: node_registry.StateActive, To: node_registry.StateSuspect, At: clock.Now()}, changes[0])
	assert.False(t, r.IsActive("node2"))

	r.ProbeAll(ctx)
	n, _ := r.Get("node2")
	assert.Equal(t, node_registry.StateSuspect, n.State)
	assert.Equal(t, 2, n.MissedProbes)

	r.ProbeAll(ctx)
	n, _ = r.Get("node2")
	assert.Equal(t, node_registry.StateFailed, n.State)

	probe.set("node2", false)
	clock.Advance(time.Minute)
	changes = r.ProbeAll(ctx)
	require.Len(t, changes, 1)
	assert.Equal(t, node_registry.StateActive, changes[0].To)
	n, _ = r.Get("node2")
	assert.Equal(t, 0, n.MissedProbes)
	assert.Equal(t, clock.Now(), n.LastHeartbeat)

	active := r.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, "node1", active[0].ID)
	assert.Equal(t, "node2", active[1].ID)
}

func TestInMemoryNodeRegistry_HeartbeatTimeoutWithoutProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := newRegistry(t, clock, "node1")
	ctx := context.Background()

	clock.Advance(5 * time.Second)
	assert.Empty(t, r.ProbeAll(ctx))
	assert.True(t, r.IsActive("node1"))

	clock.Advance(10 * time.Second)
	r.ProbeAll(ctx)
	n, _ := r.Get("node1")
	assert.Equal(t, node_registry.StateSuspect, n.State)

	require.NoError(t, r.RecordHeartbeat("node1"))
	assert.True(t, r.IsActive("node1"))
	assert.ErrorIs(t, r.RecordHeartbeat("ghost"), node_registry.ErrNodeNotFound)
}

func TestInMemoryNodeRegistry_MarkFailedOverride(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var hooked atomic.Int32
	r := NewInMemoryNodeRegistry(Config{
		FailureThreshold: 3,
		Clock:            clock.Now,
		OnStateChange: func(c node_registry.StateChange) {
			if c.To == node_registry.StateFailed {
				hooked.Add(1)
			}
		},
	}, log_service.NoOpLogService{})
	require.NoError(t, r.RegisterNode(node_registry.NodeRecord{ID: "node1"}))

	require.NoError(t, r.MarkFailed("node1"))
	assert.False(t, r.IsActive("node1"))
	assert.Empty(t, r.ListActive())
	assert.Equal(t, int32(1), hooked.Load())

	r.SetProbe(node_registry.ProbeFunc(func(context.Context, node_registry.NodeRecord) bool { return true }))
	r.ProbeAll(context.Background())
	assert.True(t, r.IsActive("node1"))

	assert.ErrorIs(t, r.MarkFailed("ghost"), node_registry.ErrNodeNotFound)
}

func TestInMemoryNodeRegistry_RecordStored(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := newRegistry(t, clock, "node1")

	r.RecordStored("node1", 2, 2048)
	r.RecordStored("node1", -1, -1024)
	r.RecordStored("ghost", 1, 1)

	n, _ := r.Get("node1")
	assert.Equal(t, int64(1), n.ChunkCount)
	assert.Equal(t, int64(1024), n.BytesStored)
}

func TestInMemoryNodeRegistry_ReadsDuringWrites(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := newRegistry(t, clock, "node1", "node2", "node3")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.RecordStored("node2", 1, 10)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.Len(t, r.ListActive(), 3)
			}
		}()
	}
	wg.Wait()

	n, _ := r.Get("node2")
	assert.Equal(t, int64(800), n.ChunkCount)
}

func TestInMemoryNodeRegistry_DeregisterNode(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := newRegistry(t, clock, "node1")

	require.NoError(t, r.DeregisterNode("node1"))
	_, ok := r.Get("node1")
	assert.False(t, ok)
	assert.ErrorIs(t, r.DeregisterNode("node1"), node_registry.ErrNodeNotFound)
}

func TestMonitor_StartStop(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := newRegistry(t, clock, "node1")

	m := node_registry.NewMonitor(context.Background(), r, 5*time.Millisecond, log_service.NoOpLogService{})
	m.Start()
	assert.Eventually(t, func() bool { return m.Rounds() >= 2 }, time.Second, 5*time.Millisecond)
	m.Stop()
}
