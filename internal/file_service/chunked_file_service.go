package file_service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/filelock"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metrics"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/placement_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/reconstructor"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/repair_service"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"github.com/google/uuid"
)

type Config struct {
	ChunkSize int
}

type Deps struct {
	Metadata  metadata_service.MetadataService
	Registry  node_registry.NodeRegistry
	Stores    object_store.Resolver
	Placement placement_service.PlacementService
	Reader    *reconstructor.Reconstructor
	Repairs   repair_service.RepairService
	Locks     *filelock.Locker
	Log       log_service.LogService
	Metrics   *metrics.StorageMetrics
}

type ChunkedFileService struct {
	ms        metadata_service.MetadataService
	registry  node_registry.NodeRegistry
	stores    object_store.Resolver
	placement placement_service.PlacementService
	reader    *reconstructor.Reconstructor
	repairs   repair_service.RepairService
	locks     *filelock.Locker
	ls        log_service.LogService
	metrics   *metrics.StorageMetrics

	chunkSize int
	newID     func() string
	clock     func() time.Time
}

func NewChunkedFileService(cfg Config, deps Deps) *ChunkedFileService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultMaxChunkSize
	}
	if deps.Locks == nil {
		deps.Locks = filelock.New()
	}
	return &ChunkedFileService{
		ms:        deps.Metadata,
		registry:  deps.Registry,
		stores:    deps.Stores,
		placement: deps.Placement,
		reader:    deps.Reader,
		repairs:   deps.Repairs,
		locks:     deps.Locks,
		ls:        deps.Log,
		metrics:   deps.Metrics,
		chunkSize: cfg.ChunkSize,
		newID:     func() string { return uuid.New().String() },
		clock:     time.Now,
	}
}

func (fs *ChunkedFileService) Upload(ctx context.Context, data []byte, filename string, replicationFactor int) (result UploadResult, err error) {
	started := fs.clock()
	defer func() { fs.metrics.RecordRequest("upload", err, started) }()

	fs.ls.Info(log_service.LogEvent{
		Message:  "Uploading file",
		Metadata: map[string]any{"filename": filename, "size": len(data), "replicationFactor": replicationFactor},
	})

	if replicationFactor <= 0 {
		return UploadResult{}, storage_errors.NewValidationError("replicationFactor", "must be positive")
	}

	fileID := fs.newID()
	unlock := fs.locks.Lock(fileID)
	defer unlock()

	chunks, err := chunk.Split(fileID, data, fs.chunkSize)
	if err != nil {
		fs.ls.Error(log_service.LogEvent{
			Message:  "Rejected upload",
			Metadata: map[string]any{"filename": filename, "error": err.Error()},
		})
		return UploadResult{}, err
	}

	placed := make([]placement_service.Result, 0, len(chunks))
	result = UploadResult{
		FileID:              fileID,
		Filename:            filename,
		Size:                int64(len(data)),
		Checksum:            chunk.Hash(data),
		ChunkCount:          len(chunks),
		ReplicationFactor:   replicationFactor,
		AchievedReplication: replicationFactor,
	}

	for _, c := range chunks {
		res, err := fs.placement.Place(ctx, c, replicationFactor)
		if err != nil {
			fs.ls.Error(log_service.LogEvent{
				Message:  "Failed to place chunk",
				Metadata: map[string]any{"fileID": fileID, "chunkID": c.ChunkID, "error": err.Error()},
			})
			fs.discard(placed, chunks)
			return UploadResult{}, fmt.Errorf("upload %s: %w", fileID, err)
		}
		placed = append(placed, res)

		if res.Achieved < result.AchievedReplication {
			result.AchievedReplication = res.Achieved
		}
		if res.UnderReplicated() {
			result.UnderReplicatedChunks = append(result.UnderReplicatedChunks, c.ChunkID)
		}
	}

	// Metadata is written only after every chunk has at least one replica,
	// so a failed upload leaves no record behind.
	for _, res := range placed {
		if err := fs.ms.SavePlacement(ctx, fileID, res.ChunkID, res.Entries); err != nil {
			fs.ls.Error(log_service.LogEvent{
				Message:  "Failed to save placement",
				Metadata: map[string]any{"fileID": fileID, "chunkID": res.ChunkID, "error": err.Error()},
			})
			fs.discard(placed, chunks)
			return UploadResult{}, fmt.Errorf("upload %s: %w", fileID, err)
		}
	}

	record := metadata_service.FileRecord{
		FileID:            fileID,
		Filename:          filename,
		Size:              result.Size,
		Chunks:            make([]chunk.Descriptor, len(chunks)),
		ReplicationFactor: replicationFactor,
		Checksum:          result.Checksum,
		CreatedAt:         started,
	}
	for i, c := range chunks {
		record.Chunks[i] = c.Descriptor
	}
	if err := fs.ms.SaveFileRecord(ctx, record); err != nil {
		fs.ls.Error(log_service.LogEvent{
			Message:  "Failed to save file record",
			Metadata: map[string]any{"fileID": fileID, "error": err.Error()},
		})
		fs.discard(placed, chunks)
		return UploadResult{}, fmt.Errorf("upload %s: %w", fileID, err)
	}

	fs.metrics.RecordUpload(len(data))
	fs.ls.Info(log_service.LogEvent{
		Message: "File uploaded",
		Metadata: map[string]any{
			"fileID":              fileID,
			"filename":            filename,
			"chunks":              len(chunks),
			"achievedReplication": result.AchievedReplication,
		},
	})
	return result, nil
}

// discard removes replicas written by a failed upload. Failures are logged
// and the objects are left behind.
func (fs *ChunkedFileService) discard(placed []placement_service.Result, chunks []chunk.Chunk) {
	ctx := context.Background()
	for i, res := range placed {
		fs.deleteEntries(ctx, res.ChunkID, chunks[i].Size, res.Entries)
	}
}

func (fs *ChunkedFileService) deleteEntries(ctx context.Context, chunkID string, size int64, entries []metadata_service.PlacementEntry) {
	for _, e := range entries {
		store, ok := fs.stores.StoreFor(e.NodeID)
		if !ok {
			continue
		}
		err := store.Delete(ctx, e.Handle)
		if err != nil && !errors.Is(err, storage_errors.ErrNotFound) {
			fs.ls.Warn(log_service.LogEvent{
				Message:  "Failed to delete replica",
				Metadata: map[string]any{"chunkID": chunkID, "nodeID": e.NodeID, "error": err.Error()},
			})
			continue
		}
		fs.registry.RecordStored(e.NodeID, -1, -size)
	}
}

func (fs *ChunkedFileService) Download(ctx context.Context, fileID string) (data []byte, err error) {
	started := fs.clock()
	defer func() { fs.metrics.RecordRequest("download", err, started) }()

	data, err = fs.reader.Reconstruct(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if err := fs.ms.RecordAccess(ctx, fileID, fs.clock()); err != nil {
		fs.ls.Warn(log_service.LogEvent{
			Message:  "Failed to record file access",
			Metadata: map[string]any{"fileID": fileID, "error": err.Error()},
		})
	}
	fs.metrics.RecordDownload(len(data))
	return data, nil
}

func (fs *ChunkedFileService) Repair(ctx context.Context, fileID string) (report repair_service.Report, err error) {
	started := fs.clock()
	defer func() { fs.metrics.RecordRequest("repair", err, started) }()

	return fs.repairs.Repair(ctx, fileID)
}

func (fs *ChunkedFileService) RepairAll(ctx context.Context) (reports []repair_service.Report, err error) {
	started := fs.clock()
	defer func() { fs.metrics.RecordRequest("repair_all", err, started) }()

	return fs.repairs.RepairAll(ctx)
}

func (fs *ChunkedFileService) Status(ctx context.Context, fileID string) (FileStatus, error) {
	record, err := fs.ms.LoadFileRecord(ctx, fileID)
	if err != nil {
		return FileStatus{}, err
	}
	health, err := fs.reader.Inspect(ctx, fileID)
	if err != nil {
		return FileStatus{}, err
	}

	missing := health.Missing()
	return FileStatus{
		FileID:              record.FileID,
		Filename:            record.Filename,
		Size:                record.Size,
		CreatedAt:           record.CreatedAt,
		ChunkCount:          len(record.Chunks),
		ReplicationFactor:   record.ReplicationFactor,
		AchievedReplication: health.MinReplicas(),
		HealthyChunks:       health.HealthyChunks(),
		MissingChunks:       missing,
		Reconstructable:     len(missing) == 0,
		FailedNodes:         fs.failedNodes(health),
		AccessCount:         record.AccessCount,
		LastAccessedAt:      record.LastAccessedAt,
		Chunks:              health.Chunks,
	}, nil
}

func (fs *ChunkedFileService) List(ctx context.Context) ([]FileSummary, error) {
	records, err := fs.ms.ListFileRecords(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]FileSummary, 0, len(records))
	for _, rec := range records {
		health, err := fs.reader.Inspect(ctx, rec.FileID)
		if errors.Is(err, storage_errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		missing := health.Missing()
		out = append(out, FileSummary{
			FileID:              rec.FileID,
			Filename:            rec.Filename,
			Size:                rec.Size,
			CreatedAt:           rec.CreatedAt,
			ReplicationFactor:   rec.ReplicationFactor,
			TotalChunks:         len(rec.Chunks),
			AvailableChunks:     len(rec.Chunks) - len(missing),
			AchievedReplication: health.MinReplicas(),
			Reconstructable:     len(missing) == 0,
			FailedNodes:         fs.failedNodes(health),
			AccessCount:         rec.AccessCount,
		})
	}
	return out, nil
}

// failedNodes lists nodes referenced by the placement that are not active.
func (fs *ChunkedFileService) failedNodes(h reconstructor.Health) []string {
	seen := map[string]struct{}{}
	for _, c := range h.Chunks {
		for _, id := range c.StaleNodes {
			if !fs.registry.IsActive(id) {
				seen[id] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (fs *ChunkedFileService) Delete(ctx context.Context, fileID string) (err error) {
	started := fs.clock()
	defer func() { fs.metrics.RecordRequest("delete", err, started) }()

	unlock := fs.locks.Lock(fileID)
	defer unlock()

	record, err := fs.ms.LoadFileRecord(ctx, fileID)
	if err != nil {
		return err
	}
	placement, err := fs.ms.LoadPlacement(ctx, fileID)
	if err != nil {
		return err
	}

	if err := fs.ms.DeleteFile(ctx, fileID); err != nil {
		fs.ls.Error(log_service.LogEvent{
			Message:  "Failed to delete file metadata",
			Metadata: map[string]any{"fileID": fileID, "error": err.Error()},
		})
		return err
	}

	for _, desc := range record.Chunks {
		fs.deleteEntries(ctx, desc.ChunkID, desc.Size, placement[desc.ChunkID])
	}

	fs.ls.Info(log_service.LogEvent{
		Message:  "File deleted",
		Metadata: map[string]any{"fileID": fileID, "chunks": len(record.Chunks)},
	})
	return nil
}

func (fs *ChunkedFileService) Nodes() []node_registry.NodeRecord {
	nodes := fs.registry.List()

	counts := map[string]int{}
	for _, n := range nodes {
		counts[n.State.String()]++
		fs.metrics.SetNodeBytes(n.ID, n.BytesStored)
	}
	fs.metrics.SetNodeStates(counts)
	return nodes
}

func (fs *ChunkedFileService) MarkNodeFailed(ctx context.Context, nodeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fs.registry.MarkFailed(nodeID)
}

func (fs *ChunkedFileService) DecommissionNode(ctx context.Context, nodeID string) (DecommissionResult, error) {
	result := DecommissionResult{NodeID: nodeID}

	// No new replica may land on the node while its entries are removed.
	if err := fs.registry.MarkFailed(nodeID); err != nil {
		return result, err
	}

	// Hold every affected file's lock so an in-flight repair cannot save a
	// placement that still lists the node after it is removed.
	holding, err := fs.filesOnNode(ctx, nodeID)
	if err != nil {
		return result, err
	}
	unlocks := make([]func(), 0, len(holding))
	for _, fileID := range holding {
		unlocks = append(unlocks, fs.locks.Lock(fileID))
	}
	affected, err := fs.ms.RemoveNodeFromPlacements(ctx, nodeID)
	for _, unlock := range unlocks {
		unlock()
	}
	if err != nil {
		return result, err
	}
	result.AffectedFiles = affected

	if err := fs.registry.DeregisterNode(nodeID); err != nil {
		return result, err
	}

	fs.ls.Warn(log_service.LogEvent{
		Message:  "Node decommissioned",
		Metadata: map[string]any{"nodeID": nodeID, "affectedFiles": len(affected)},
	})

	var errs []error
	for _, fileID := range affected {
		report, err := fs.repairs.Repair(ctx, fileID)
		result.Reports = append(result.Reports, report)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// filesOnNode returns, sorted, the ids of files with a replica on nodeID.
// Sorted order keeps lock acquisition consistent across decommissions.
func (fs *ChunkedFileService) filesOnNode(ctx context.Context, nodeID string) ([]string, error) {
	records, err := fs.ms.ListFileRecords(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rec := range records {
		placement, err := fs.ms.LoadPlacement(ctx, rec.FileID)
		if errors.Is(err, storage_errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
	scan:
		for _, entries := range placement {
			for _, e := range entries {
				if e.NodeID == nodeID {
					out = append(out, rec.FileID)
					break scan
				}
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ FileService = (*ChunkedFileService)(nil)
