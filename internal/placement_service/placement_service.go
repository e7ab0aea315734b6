package placement_service

import (
	"context"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
)

// Result is the outcome of placing one chunk. Achieved may be below Desired
// when fewer nodes were active or some writes failed.
type Result struct {
	ChunkID  string
	Entries  []metadata_service.PlacementEntry
	Desired  int
	Achieved int
}

func (r Result) UnderReplicated() bool {
	return r.Achieved < r.Desired
}

type PlacementService interface {
	Place(ctx context.Context, c chunk.Chunk, desiredReplicationFactor int) (Result, error)
	// SelectTargets returns up to count active nodes not in exclude, least
	// loaded first.
	SelectTargets(count int, exclude map[string]struct{}) []node_registry.NodeRecord
	// Replicate writes data to every target and returns entries for the
	// writes that succeeded, in target order, plus the per-node failures.
	Replicate(ctx context.Context, chunkID string, data []byte, targets []node_registry.NodeRecord) ([]metadata_service.PlacementEntry, map[string]error)
}
