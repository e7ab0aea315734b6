package reconstructor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metrics"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"golang.org/x/sync/errgroup"
)

const DefaultReadParallelism = 4

// ChunkHealth counts the replicas of one chunk that sit on an active node
// and still exist in that node's store.
type ChunkHealth struct {
	ChunkID      string   `json:"chunkId"`
	Sequence     int      `json:"sequence"`
	LiveReplicas int      `json:"liveReplicas"`
	Nodes        []string `json:"nodes"`
	StaleNodes   []string `json:"staleNodes,omitempty"`
}

type Health struct {
	FileID            string        `json:"fileId"`
	ReplicationFactor int           `json:"replicationFactor"`
	Chunks            []ChunkHealth `json:"chunks"`
}

// MinReplicas is the lowest live replica count over all chunks.
func (h Health) MinReplicas() int {
	if len(h.Chunks) == 0 {
		return 0
	}
	min := h.Chunks[0].LiveReplicas
	for _, c := range h.Chunks[1:] {
		if c.LiveReplicas < min {
			min = c.LiveReplicas
		}
	}
	return min
}

// HealthyChunks counts chunks that meet the replication factor.
func (h Health) HealthyChunks() int {
	n := 0
	for _, c := range h.Chunks {
		if c.LiveReplicas >= h.ReplicationFactor {
			n++
		}
	}
	return n
}

// Missing lists chunks with no live replica.
func (h Health) Missing() []string {
	var ids []string
	for _, c := range h.Chunks {
		if c.LiveReplicas == 0 {
			ids = append(ids, c.ChunkID)
		}
	}
	return ids
}

// Replica is a placement entry whose bytes were read back and verified.
type Replica struct {
	Entry metadata_service.PlacementEntry
	Data  []byte
}

type Reconstructor struct {
	metadata    metadata_service.MetadataService
	registry    node_registry.NodeRegistry
	stores      object_store.Resolver
	ls          log_service.LogService
	metrics     *metrics.StorageMetrics
	parallelism int
}

func NewReconstructor(
	metadata metadata_service.MetadataService,
	registry node_registry.NodeRegistry,
	stores object_store.Resolver,
	ls log_service.LogService,
	m *metrics.StorageMetrics,
	parallelism int,
) *Reconstructor {
	if parallelism <= 0 {
		parallelism = DefaultReadParallelism
	}
	return &Reconstructor{
		metadata:    metadata,
		registry:    registry,
		stores:      stores,
		ls:          ls,
		metrics:     m,
		parallelism: parallelism,
	}
}

// Reconstruct returns the original bytes of fileID. It never returns partial
// data: any chunk without a verified replica fails the whole call with the
// complete list of such chunks.
func (r *Reconstructor) Reconstruct(ctx context.Context, fileID string) ([]byte, error) {
	r.ls.Info(log_service.LogEvent{
		Message:  "Reconstructing file",
		Metadata: map[string]any{"fileID": fileID},
	})

	record, placement, err := r.load(ctx, fileID)
	if err != nil {
		return nil, err
	}

	resolved := make([][]byte, len(record.Chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, desc := range record.Chunks {
		entries := placement[desc.ChunkID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, ok := r.ReadChunk(gctx, desc, entries)
			if ok {
				resolved[i] = data
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var missing []string
	chunks := make([]chunk.Chunk, len(record.Chunks))
	for i, desc := range record.Chunks {
		if resolved[i] == nil {
			missing = append(missing, desc.ChunkID)
			continue
		}
		chunks[i] = chunk.Chunk{Descriptor: desc, Data: resolved[i]}
	}
	if len(missing) > 0 {
		r.ls.Error(log_service.LogEvent{
			Message:  "File has chunks with no verifiable replica",
			Metadata: map[string]any{"fileID": fileID, "missing": missing},
		})
		return nil, &storage_errors.MissingChunkError{FileID: fileID, ChunkIDs: missing}
	}

	data, err := chunk.Reassemble(chunks)
	if err != nil {
		return nil, fmt.Errorf("reassemble %s: %w", fileID, err)
	}

	if sum := chunk.Hash(data); sum != record.Checksum {
		r.ls.Error(log_service.LogEvent{
			Message:  "File checksum mismatch after reassembly",
			Metadata: map[string]any{"fileID": fileID, "expected": record.Checksum, "actual": sum},
		})
		return nil, &storage_errors.IntegrityError{FileID: fileID, Expected: record.Checksum, Actual: sum}
	}

	r.ls.Info(log_service.LogEvent{
		Message:  "File reconstructed",
		Metadata: map[string]any{"fileID": fileID, "chunks": len(chunks), "size": len(data)},
	})
	return data, nil
}

// ReadChunk returns the bytes of the first replica, in entry order, that
// lives on an active node and matches the chunk hash.
func (r *Reconstructor) ReadChunk(ctx context.Context, desc chunk.Descriptor, entries []metadata_service.PlacementEntry) ([]byte, bool) {
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, false
		}
		if data, ok := r.readReplica(ctx, desc, e); ok {
			return data, true
		}
	}
	return nil, false
}

// VerifiedReplicas reads every entry and returns those that verify, in
// entry order.
func (r *Reconstructor) VerifiedReplicas(ctx context.Context, desc chunk.Descriptor, entries []metadata_service.PlacementEntry) []Replica {
	var out []Replica
	for _, e := range entries {
		if ctx.Err() != nil {
			return out
		}
		if data, ok := r.readReplica(ctx, desc, e); ok {
			out = append(out, Replica{Entry: e, Data: data})
		}
	}
	return out
}

func (r *Reconstructor) readReplica(ctx context.Context, desc chunk.Descriptor, e metadata_service.PlacementEntry) ([]byte, bool) {
	if !r.registry.IsActive(e.NodeID) {
		return nil, false
	}
	store, ok := r.stores.StoreFor(e.NodeID)
	if !ok {
		return nil, false
	}

	data, err := store.Get(ctx, e.Handle)
	if err != nil {
		level := r.ls.Warn
		if errors.Is(err, context.Canceled) {
			level = r.ls.Debug
		}
		level(log_service.LogEvent{
			Message:  "Replica read failed",
			Metadata: map[string]any{"chunkID": desc.ChunkID, "nodeID": e.NodeID, "error": err.Error()},
		})
		return nil, false
	}

	if !chunk.Verify(desc, data) {
		r.metrics.RecordCorruptReplica()
		r.ls.Warn(log_service.LogEvent{
			Message:  "Replica failed hash verification",
			Metadata: map[string]any{"chunkID": desc.ChunkID, "nodeID": e.NodeID},
		})
		return nil, false
	}
	return data, true
}

// Inspect reports replica liveness per chunk without reading chunk bytes.
func (r *Reconstructor) Inspect(ctx context.Context, fileID string) (Health, error) {
	record, placement, err := r.load(ctx, fileID)
	if err != nil {
		return Health{}, err
	}

	h := Health{
		FileID:            fileID,
		ReplicationFactor: record.ReplicationFactor,
		Chunks:            make([]ChunkHealth, len(record.Chunks)),
	}
	for i, desc := range record.Chunks {
		ch := ChunkHealth{ChunkID: desc.ChunkID, Sequence: desc.Sequence}
		for _, e := range placement[desc.ChunkID] {
			if r.live(ctx, e) {
				ch.LiveReplicas++
				ch.Nodes = append(ch.Nodes, e.NodeID)
			} else {
				ch.StaleNodes = append(ch.StaleNodes, e.NodeID)
			}
		}
		h.Chunks[i] = ch
	}
	return h, nil
}

func (r *Reconstructor) live(ctx context.Context, e metadata_service.PlacementEntry) bool {
	if !r.registry.IsActive(e.NodeID) {
		return false
	}
	store, ok := r.stores.StoreFor(e.NodeID)
	return ok && store.Exists(ctx, e.Handle)
}

func (r *Reconstructor) load(ctx context.Context, fileID string) (*metadata_service.FileRecord, metadata_service.Placement, error) {
	if fileID == "" {
		return nil, nil, storage_errors.NewValidationError("fileID", "must not be empty")
	}

	record, err := r.metadata.LoadFileRecord(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	placement, err := r.metadata.LoadPlacement(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	return record, placement, nil
}
