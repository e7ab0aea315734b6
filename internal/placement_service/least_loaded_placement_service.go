package placement_service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metrics"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"golang.org/x/sync/errgroup"
)

var ErrNoStoreForNode = errors.New("no object store attached to node")

type LeastLoadedPlacementService struct {
	registry node_registry.NodeRegistry
	stores   object_store.Resolver
	ls       log_service.LogService
	metrics  *metrics.StorageMetrics
	clock    func() time.Time
}

func NewLeastLoadedPlacementService(registry node_registry.NodeRegistry, stores object_store.Resolver, ls log_service.LogService, m *metrics.StorageMetrics) *LeastLoadedPlacementService {
	return &LeastLoadedPlacementService{
		registry: registry,
		stores:   stores,
		ls:       ls,
		metrics:  m,
		clock:    time.Now,
	}
}

func (ps *LeastLoadedPlacementService) Place(ctx context.Context, c chunk.Chunk, desired int) (Result, error) {
	if desired <= 0 {
		return Result{}, storage_errors.NewValidationError("replicationFactor", "must be positive")
	}

	active := ps.registry.ListActive()
	if len(active) == 0 {
		ps.ls.Error(log_service.LogEvent{
			Message:  "No active nodes for placement",
			Metadata: map[string]any{"chunkID": c.ChunkID},
		})
		return Result{}, fmt.Errorf("place chunk %s: %w", c.ChunkID, storage_errors.ErrNoActiveNodes)
	}

	effective := desired
	if len(active) < effective {
		effective = len(active)
	}

	targets := ps.SelectTargets(effective, nil)
	entries, causes := ps.Replicate(ctx, c.ChunkID, c.Data, targets)

	if len(entries) == 0 {
		ps.ls.Error(log_service.LogEvent{
			Message:  "Every replica write failed",
			Metadata: map[string]any{"chunkID": c.ChunkID, "targets": len(targets)},
		})
		return Result{}, &storage_errors.PlacementError{ChunkID: c.ChunkID, Causes: causes}
	}

	res := Result{
		ChunkID:  c.ChunkID,
		Entries:  entries,
		Desired:  desired,
		Achieved: len(entries),
	}

	if res.UnderReplicated() {
		ps.metrics.RecordUnderReplicated()
		ps.ls.Warn(log_service.LogEvent{
			Message: "Chunk placed under-replicated",
			Metadata: map[string]any{
				"chunkID":  c.ChunkID,
				"desired":  desired,
				"achieved": res.Achieved,
				"active":   len(active),
			},
		})
	}

	return res, nil
}

func (ps *LeastLoadedPlacementService) SelectTargets(count int, exclude map[string]struct{}) []node_registry.NodeRecord {
	if count <= 0 {
		return nil
	}

	active := ps.registry.ListActive()
	candidates := make([]node_registry.NodeRecord, 0, len(active))
	for _, n := range active {
		if _, skip := exclude[n.ID]; skip {
			continue
		}
		candidates = append(candidates, n)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.BytesStored != b.BytesStored {
			return a.BytesStored < b.BytesStored
		}
		if a.ChunkCount != b.ChunkCount {
			return a.ChunkCount < b.ChunkCount
		}
		return a.ID < b.ID
	})

	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

func (ps *LeastLoadedPlacementService) Replicate(ctx context.Context, chunkID string, data []byte, targets []node_registry.NodeRecord) ([]metadata_service.PlacementEntry, map[string]error) {
	type outcome struct {
		handle object_store.Handle
		err    error
	}
	outcomes := make([]outcome, len(targets))

	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			store, ok := ps.stores.StoreFor(target.ID)
			if !ok {
				outcomes[i] = outcome{err: ErrNoStoreForNode}
				return nil
			}
			handle, err := store.Put(ctx, chunkID, data)
			outcomes[i] = outcome{handle: handle, err: err}
			return nil
		})
	}
	_ = g.Wait()

	now := ps.clock()
	var entries []metadata_service.PlacementEntry
	causes := make(map[string]error)
	for i, target := range targets {
		o := outcomes[i]
		ps.metrics.RecordReplicaWrite(o.err == nil)
		if o.err != nil {
			causes[target.ID] = o.err
			ps.ls.Warn(log_service.LogEvent{
				Message:  "Replica write failed, omitting target",
				Metadata: map[string]any{"chunkID": chunkID, "nodeID": target.ID, "error": o.err.Error()},
			})
			continue
		}

		ps.registry.RecordStored(target.ID, 1, int64(len(data)))
		entries = append(entries, metadata_service.PlacementEntry{
			NodeID:    target.ID,
			Handle:    o.handle,
			CreatedAt: now,
		})
	}

	ps.ls.Debug(log_service.LogEvent{
		Message:  "Chunk replicated",
		Metadata: map[string]any{"chunkID": chunkID, "written": len(entries), "failed": len(causes)},
	})
	return entries, causes
}

var _ PlacementService = (*LeastLoadedPlacementService)(nil)
