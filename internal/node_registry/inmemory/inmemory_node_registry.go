package inmemory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
)

const (
	DefaultHeartbeatTimeout = 15 * time.Second
	DefaultFailureThreshold = 3
)

type Config struct {
	HeartbeatTimeout time.Duration
	// FailureThreshold is the number of consecutive missed probes after
	// which a node is failed. One miss always makes it suspect.
	FailureThreshold int
	Clock            func() time.Time
	OnStateChange    func(node_registry.StateChange)
}

type snapshot struct {
	nodes map[string]node_registry.NodeRecord
	order []string
}

// InMemoryNodeRegistry publishes an immutable snapshot that readers load
// without locking. Writers serialize on mu and swap in a new snapshot.
type InMemoryNodeRegistry struct {
	mu    sync.Mutex
	state atomic.Pointer[snapshot]
	probe atomic.Pointer[probeHolder]

	cfg Config
	ls  log_service.LogService
}

type probeHolder struct {
	probe node_registry.LivenessProbe
}

func NewInMemoryNodeRegistry(cfg Config, ls log_service.LogService) *InMemoryNodeRegistry {
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	r := &InMemoryNodeRegistry{cfg: cfg, ls: ls}
	r.state.Store(&snapshot{nodes: map[string]node_registry.NodeRecord{}})
	return r
}

func (r *InMemoryNodeRegistry) load() *snapshot {
	return r.state.Load()
}

// mutate runs fn on a private copy of the node map and publishes the result.
// Must be called with r.mu held.
func (r *InMemoryNodeRegistry) mutate(fn func(nodes map[string]node_registry.NodeRecord)) {
	cur := r.load()
	next := make(map[string]node_registry.NodeRecord, len(cur.nodes))
	for id, n := range cur.nodes {
		next[id] = n
	}
	fn(next)

	order := make([]string, 0, len(next))
	for id := range next {
		order = append(order, id)
	}
	sort.Strings(order)
	r.state.Store(&snapshot{nodes: next, order: order})
}

func (r *InMemoryNodeRegistry) RegisterNode(node node_registry.NodeRecord) error {
	if node.ID == "" {
		return node_registry.ErrInvalidNodeID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.load().nodes[node.ID]; ok {
		return node_registry.ErrNodeAlreadyExists
	}

	now := r.cfg.Clock()
	node.State = node_registry.StateActive
	node.MissedProbes = 0
	node.LastHeartbeat = now
	node.RegisteredAt = now
	r.mutate(func(nodes map[string]node_registry.NodeRecord) {
		nodes[node.ID] = node
	})

	r.ls.Info(log_service.LogEvent{
		Message:  "Node registered",
		Metadata: map[string]any{"nodeID": node.ID, "address": node.Address},
	})
	return nil
}

func (r *InMemoryNodeRegistry) DeregisterNode(nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.load().nodes[nodeID]; !ok {
		return node_registry.ErrNodeNotFound
	}
	r.mutate(func(nodes map[string]node_registry.NodeRecord) {
		delete(nodes, nodeID)
	})

	r.ls.Info(log_service.LogEvent{
		Message:  "Node deregistered",
		Metadata: map[string]any{"nodeID": nodeID},
	})
	return nil
}

func (r *InMemoryNodeRegistry) Get(nodeID string) (node_registry.NodeRecord, bool) {
	n, ok := r.load().nodes[nodeID]
	return n, ok
}

func (r *InMemoryNodeRegistry) List() []node_registry.NodeRecord {
	snap := r.load()
	out := make([]node_registry.NodeRecord, 0, len(snap.order))
	for _, id := range snap.order {
		out = append(out, snap.nodes[id])
	}
	return out
}

func (r *InMemoryNodeRegistry) ListActive() []node_registry.NodeRecord {
	snap := r.load()
	out := make([]node_registry.NodeRecord, 0, len(snap.order))
	for _, id := range snap.order {
		if n := snap.nodes[id]; n.Active() {
			out = append(out, n)
		}
	}
	return out
}

func (r *InMemoryNodeRegistry) IsActive(nodeID string) bool {
	n, ok := r.load().nodes[nodeID]
	return ok && n.Active()
}

func (r *InMemoryNodeRegistry) RecordHeartbeat(nodeID string) error {
	r.mu.Lock()
	n, ok := r.load().nodes[nodeID]
	if !ok {
		r.mu.Unlock()
		return node_registry.ErrNodeNotFound
	}

	now := r.cfg.Clock()
	var change *node_registry.StateChange
	if n.State != node_registry.StateActive {
		change = &node_registry.StateChange{NodeID: nodeID, From: n.State, To: node_registry.StateActive, At: now}
	}
	n.State = node_registry.StateActive
	n.MissedProbes = 0
	n.LastHeartbeat = now
	r.mutate(func(nodes map[string]node_registry.NodeRecord) {
		nodes[nodeID] = n
	})
	r.mu.Unlock()

	if change != nil {
		r.emit([]node_registry.StateChange{*change})
	}
	return nil
}

func (r *InMemoryNodeRegistry) MarkFailed(nodeID string) error {
	r.mu.Lock()
	n, ok := r.load().nodes[nodeID]
	if !ok {
		r.mu.Unlock()
		return node_registry.ErrNodeNotFound
	}

	prev := n.State
	n.State = node_registry.StateFailed
	if n.MissedProbes < r.cfg.FailureThreshold {
		n.MissedProbes = r.cfg.FailureThreshold
	}
	r.mutate(func(nodes map[string]node_registry.NodeRecord) {
		nodes[nodeID] = n
	})
	r.mu.Unlock()

	r.ls.Warn(log_service.LogEvent{
		Message:  "Node marked failed by operator",
		Metadata: map[string]any{"nodeID": nodeID, "previous": prev.String()},
	})
	if prev != node_registry.StateFailed {
		r.emit([]node_registry.StateChange{{NodeID: nodeID, From: prev, To: node_registry.StateFailed, At: r.cfg.Clock()}})
	}
	return nil
}

func (r *InMemoryNodeRegistry) SetProbe(probe node_registry.LivenessProbe) {
	r.probe.Store(&probeHolder{probe: probe})
}

func (r *InMemoryNodeRegistry) currentProbe() node_registry.LivenessProbe {
	if h := r.probe.Load(); h != nil {
		return h.probe
	}
	return nil
}

// ProbeAll evaluates every node once and applies the state machine. Nodes
// without a probe are judged by heartbeat age alone.
func (r *InMemoryNodeRegistry) ProbeAll(ctx context.Context) []node_registry.StateChange {
	nodes := r.List()
	probe := r.currentProbe()
	now := r.cfg.Clock()

	results := make(map[string]bool, len(nodes))
	var wg sync.WaitGroup
	var resultsMu sync.Mutex
	for _, n := range nodes {
		wg.Add(1)
		go func(n node_registry.NodeRecord) {
			defer wg.Done()
			var ok bool
			if probe != nil {
				ok = probe.Probe(ctx, n)
			} else {
				ok = now.Sub(n.LastHeartbeat) < r.cfg.HeartbeatTimeout
			}
			resultsMu.Lock()
			results[n.ID] = ok
			resultsMu.Unlock()
		}(n)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	var changes []node_registry.StateChange
	r.mu.Lock()
	r.mutate(func(current map[string]node_registry.NodeRecord) {
		for id, ok := range results {
			n, exists := current[id]
			if !exists {
				continue
			}
			prev := n.State
			if ok {
				n.State = node_registry.StateActive
				n.MissedProbes = 0
				if probe != nil {
					n.LastHeartbeat = now
				}
			} else {
				n.MissedProbes++
				if n.MissedProbes >= r.cfg.FailureThreshold {
					n.State = node_registry.StateFailed
				} else {
					n.State = node_registry.StateSuspect
				}
			}
			current[id] = n
			if prev != n.State {
				changes = append(changes, node_registry.StateChange{NodeID: id, From: prev, To: n.State, At: now})
			}
		}
	})
	r.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].NodeID < changes[j].NodeID })
	r.emit(changes)
	return changes
}

func (r *InMemoryNodeRegistry) RecordStored(nodeID string, chunks int64, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.load().nodes[nodeID]
	if !ok {
		return
	}
	n.ChunkCount += chunks
	n.BytesStored += bytes
	if n.ChunkCount < 0 {
		n.ChunkCount = 0
	}
	if n.BytesStored < 0 {
		n.BytesStored = 0
	}
	r.mutate(func(nodes map[string]node_registry.NodeRecord) {
		nodes[nodeID] = n
	})
}

func (r *InMemoryNodeRegistry) emit(changes []node_registry.StateChange) {
	for _, c := range changes {
		r.ls.Info(log_service.LogEvent{
			Message:  "Node health changed",
			Metadata: map[string]any{"nodeID": c.NodeID, "from": c.From.String(), "to": c.To.String()},
		})
		if r.cfg.OnStateChange != nil {
			r.cfg.OnStateChange(c)
		}
	}
}

var _ node_registry.NodeRegistry = (*InMemoryNodeRegistry)(nil)
