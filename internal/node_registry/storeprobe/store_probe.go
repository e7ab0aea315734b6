package storeprobe

import (
	"context"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
)

// StoreProbe treats a node as alive when its object store passes Health.
type StoreProbe struct {
	stores  object_store.Resolver
	timeout time.Duration
	ls      log_service.LogService
}

func NewStoreProbe(stores object_store.Resolver, timeout time.Duration, ls log_service.LogService) *StoreProbe {
	return &StoreProbe{stores: stores, timeout: timeout, ls: ls}
}

func (p *StoreProbe) Probe(ctx context.Context, node node_registry.NodeRecord) bool {
	store, ok := p.stores.StoreFor(node.ID)
	if !ok {
		return false
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := store.Health(ctx); err != nil {
		p.ls.Debug(log_service.LogEvent{
			Message:  "Store probe failed",
			Metadata: map[string]any{"nodeID": node.ID, "error": err.Error()},
		})
		return false
	}
	return true
}

var _ node_registry.LivenessProbe = (*StoreProbe)(nil)
