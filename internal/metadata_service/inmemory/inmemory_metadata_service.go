package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
)

type InMemoryMetadataService struct {
	mu         sync.RWMutex
	files      map[string]*metadata_service.FileRecord
	placements map[string]metadata_service.Placement
	ls         log_service.LogService
}

func NewInMemoryMetadataService(ls log_service.LogService) *InMemoryMetadataService {
	return &InMemoryMetadataService{
		files:      make(map[string]*metadata_service.FileRecord),
		placements: make(map[string]metadata_service.Placement),
		ls:         ls,
	}
}

func (ms *InMemoryMetadataService) SaveFileRecord(ctx context.Context, record metadata_service.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		ms.ls.Error(log_service.LogEvent{
			Message:  "Invalid file record",
			Metadata: map[string]any{"fileID": record.FileID, "error": err.Error()},
		})
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.files[record.FileID]; exists {
		ms.ls.Warn(log_service.LogEvent{
			Message:  "File record already exists",
			Metadata: map[string]any{"fileID": record.FileID},
		})
		return metadata_service.ErrFileAlreadyExists
	}

	stored := record.Clone()
	ms.files[record.FileID] = &stored

	ms.ls.Debug(log_service.LogEvent{
		Message:  "File record saved",
		Metadata: map[string]any{"fileID": record.FileID, "chunks": len(record.Chunks)},
	})
	return nil
}

func (ms *InMemoryMetadataService) LoadFileRecord(ctx context.Context, fileID string) (*metadata_service.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	record, ok := ms.files[fileID]
	if !ok {
		return nil, metadata_service.ErrFileNotFound
	}
	out := record.Clone()
	return &out, nil
}

func (ms *InMemoryMetadataService) ListFileRecords(ctx context.Context) ([]metadata_service.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]metadata_service.FileRecord, 0, len(ms.files))
	for _, r := range ms.files {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].FileID < out[j].FileID
	})
	return out, nil
}

func (ms *InMemoryMetadataService) DeleteFile(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.files[fileID]; !ok {
		return metadata_service.ErrFileNotFound
	}
	delete(ms.files, fileID)
	delete(ms.placements, fileID)

	ms.ls.Info(log_service.LogEvent{
		Message:  "File metadata deleted",
		Metadata: map[string]any{"fileID": fileID},
	})
	return nil
}

func (ms *InMemoryMetadataService) RecordAccess(ctx context.Context, fileID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	record, ok := ms.files[fileID]
	if !ok {
		return metadata_service.ErrFileNotFound
	}
	record.AccessCount++
	if at.After(record.LastAccessedAt) {
		record.LastAccessedAt = at
	}
	return nil
}

func (ms *InMemoryMetadataService) SavePlacement(ctx context.Context, fileID, chunkID string, entries []metadata_service.PlacementEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := metadata_service.ValidateEntries(chunkID, entries); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	p, ok := ms.placements[fileID]
	if !ok {
		p = make(metadata_service.Placement)
		ms.placements[fileID] = p
	}
	p[chunkID] = append([]metadata_service.PlacementEntry(nil), entries...)

	ms.ls.Debug(log_service.LogEvent{
		Message:  "Placement saved",
		Metadata: map[string]any{"fileID": fileID, "chunkID": chunkID, "replicas": len(entries)},
	})
	return nil
}

func (ms *InMemoryMetadataService) LoadPlacement(ctx context.Context, fileID string) (metadata_service.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	p, ok := ms.placements[fileID]
	if !ok {
		return metadata_service.Placement{}, nil
	}
	return p.Clone(), nil
}

func (ms *InMemoryMetadataService) RemoveNodeFromPlacements(ctx context.Context, nodeID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var affected []string
	for fileID, p := range ms.placements {
		touched := false
		for chunkID, entries := range p {
			kept := entries[:0:0]
			for _, e := range entries {
				if e.NodeID != nodeID {
					kept = append(kept, e)
				}
			}
			if len(kept) != len(entries) {
				p[chunkID] = kept
				touched = true
			}
		}
		if touched {
			affected = append(affected, fileID)
		}
	}
	sort.Strings(affected)
	return affected, nil
}

func (ms *InMemoryMetadataService) Close() error {
	return nil
}

var _ metadata_service.MetadataService = (*InMemoryMetadataService)(nil)
