package metadata_service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

// FileRecord is written once at upload. Only the access counters change later.
type FileRecord struct {
	FileID            string             `json:"fileId"`
	Filename          string             `json:"filename"`
	Size              int64              `json:"size"`
	Chunks            []chunk.Descriptor `json:"chunks"`
	ReplicationFactor int                `json:"replicationFactor"`
	Checksum          string             `json:"checksum"`
	CreatedAt         time.Time          `json:"createdAt"`
	AccessCount       int64              `json:"accessCount"`
	LastAccessedAt    time.Time          `json:"lastAccessedAt,omitempty"`
}

func (r FileRecord) ChunkIDs() []string {
	ids := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		ids[i] = c.ChunkID
	}
	return ids
}

func (r FileRecord) Validate() error {
	if r.FileID == "" {
		return storage_errors.NewValidationError("fileID", "must not be empty")
	}
	if r.ReplicationFactor <= 0 {
		return storage_errors.NewValidationError("replicationFactor", "must be positive")
	}
	if len(r.Chunks) == 0 {
		return storage_errors.NewValidationError("chunks", "file must have at least one chunk")
	}

	var total int64
	for i, c := range r.Chunks {
		if c.Sequence != i {
			return &storage_errors.SequenceGapError{Expected: i, Got: c.Sequence}
		}
		if c.FileID != r.FileID {
			return storage_errors.NewValidationError("chunks", fmt.Sprintf("chunk %s belongs to file %s", c.ChunkID, c.FileID))
		}
		total += c.Size
	}
	if total != r.Size {
		return storage_errors.NewValidationError("size", fmt.Sprintf("chunks sum to %d bytes, record says %d", total, r.Size))
	}
	return nil
}

func (r FileRecord) Clone() FileRecord {
	out := r
	out.Chunks = append([]chunk.Descriptor(nil), r.Chunks...)
	return out
}

type PlacementEntry struct {
	NodeID    string              `json:"nodeId"`
	Handle    object_store.Handle `json:"handle"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Placement maps chunk id to the ordered replica entries for that chunk.
type Placement map[string][]PlacementEntry

func (p Placement) Clone() Placement {
	out := make(Placement, len(p))
	for id, entries := range p {
		out[id] = append([]PlacementEntry(nil), entries...)
	}
	return out
}

// ValidateEntries rejects two entries on the same node.
func ValidateEntries(chunkID string, entries []PlacementEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.NodeID == "" {
			return storage_errors.NewValidationError("placement", "entry without node id for "+chunkID)
		}
		if _, dup := seen[e.NodeID]; dup {
			return fmt.Errorf("%w: chunk %s already has a replica on %s", ErrDuplicateReplicaNode, chunkID, e.NodeID)
		}
		seen[e.NodeID] = struct{}{}
	}
	return nil
}

type MetadataService interface {
	SaveFileRecord(ctx context.Context, record FileRecord) error
	LoadFileRecord(ctx context.Context, fileID string) (*FileRecord, error)
	ListFileRecords(ctx context.Context) ([]FileRecord, error)
	DeleteFile(ctx context.Context, fileID string) error
	RecordAccess(ctx context.Context, fileID string, at time.Time) error

	// SavePlacement replaces the full entry list of one chunk in a single step.
	SavePlacement(ctx context.Context, fileID, chunkID string, entries []PlacementEntry) error
	LoadPlacement(ctx context.Context, fileID string) (Placement, error)
	// RemoveNodeFromPlacements drops every entry on a decommissioned node and
	// returns the ids of files that lost an entry.
	RemoveNodeFromPlacements(ctx context.Context, nodeID string) ([]string, error)

	Close() error
}
