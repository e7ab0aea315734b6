package node_registry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type HealthState int

const (
	StateActive HealthState = iota
	StateSuspect
	StateFailed
)

func (s HealthState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSuspect:
		return "suspect"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s HealthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *HealthState) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "active":
		*s = StateActive
	case "suspect":
		*s = StateSuspect
	case "failed":
		*s = StateFailed
	default:
		return fmt.Errorf("unknown health state %q", text)
	}
	return nil
}

type NodeRecord struct {
	ID            string      `json:"id"`
	Address       string      `json:"address,omitempty"`
	State         HealthState `json:"state"`
	LastHeartbeat time.Time   `json:"lastHeartbeat"`
	MissedProbes  int         `json:"missedProbes"`
	ChunkCount    int64       `json:"chunkCount"`
	BytesStored   int64       `json:"bytesStored"`
	RegisteredAt  time.Time   `json:"registeredAt"`
}

func (n NodeRecord) Active() bool {
	return n.State == StateActive
}

// LivenessProbe reports whether a node answered. Implementations must be
// deterministic for a given environment; tests script them directly.
type LivenessProbe interface {
	Probe(ctx context.Context, node NodeRecord) bool
}

type ProbeFunc func(ctx context.Context, node NodeRecord) bool

func (f ProbeFunc) Probe(ctx context.Context, node NodeRecord) bool {
	return f(ctx, node)
}

// StateChange is emitted whenever a node moves between health states.
type StateChange struct {
	NodeID string
	From   HealthState
	To     HealthState
	At     time.Time
}

type NodeRegistry interface {
	RegisterNode(node NodeRecord) error
	DeregisterNode(nodeID string) error
	Get(nodeID string) (NodeRecord, bool)
	List() []NodeRecord
	ListActive() []NodeRecord
	IsActive(nodeID string) bool
	RecordHeartbeat(nodeID string) error
	MarkFailed(nodeID string) error
	SetProbe(probe LivenessProbe)
	ProbeAll(ctx context.Context) []StateChange
	RecordStored(nodeID string, chunks int64, bytes int64)
}
