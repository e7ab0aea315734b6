// Package metadatatest holds behaviour checks shared by every MetadataService
// implementation.
package metadatatest

import (
	"context"
	"testing"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRecord builds a valid record for fileID by splitting data.
func NewRecord(t *testing.T, fileID string, data []byte, chunkSize int, created time.Time) metadata_service.FileRecord {
	t.Helper()
	chunks, err := chunk.Split(fileID, data, chunkSize)
	require.NoError(t, err)

	descs := make([]chunk.Descriptor, len(chunks))
	for i, c := range chunks {
		descs[i] = c.Descriptor
	}
	return metadata_service.FileRecord{
		FileID:            fileID,
		Filename:          fileID + ".bin",
		Size:              int64(len(data)),
		Chunks:            descs,
		ReplicationFactor: 2,
		Checksum:          chunk.Hash(data),
		CreatedAt:         created,
	}
}

func Run(t *testing.T, newStore func(t *testing.T) metadata_service.MetadataService) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("save and load file record", func(t *testing.T) {
		ms := newStore(t)
		ctx := context.Background()
		rec := NewRecord(t, "file-a", []byte("0123456789abcdef"), 5, base)

		require.NoError(t, ms.SaveFileRecord(ctx, rec))
		got, err := ms.LoadFileRecord(ctx, "file-a")
		require.NoError(t, err)

		assert.Equal(t, rec.FileID, got.FileID)
		assert.Equal(t, rec.Filename, got.Filename)
		assert.Equal(t, rec.Size, got.Size)
		assert.Equal(t, rec.Checksum, got.Checksum)
		assert.Equal(t, rec.ReplicationFactor, got.ReplicationFactor)
		assert.Equal(t, rec.Chunks, got.Chunks)
		assert.Equal(t, rec.ChunkIDs(), got.ChunkIDs())
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("record is immutable", func(t *testing.T) {
		ms := newStore(t)
		ctx := context.Background()
		rec := NewRecord(t, "file-b", []byte("data"), 4, base)

		require.NoError(t, ms.SaveFileRecord(ctx, rec))
		assert.ErrorIs(t, ms.SaveFileRecord(ctx, rec), metadata_service.ErrFileAlreadyExists)
	})

	t.Run("invalid record rejected", func(t *testing.T) {
		ms := newStore(t)
		rec := NewRecord(t, "file-c", []byte("data"), 4, base)
		rec.ReplicationFactor = 0

		assert.ErrorIs(t, ms.SaveFileRecord(context.Background(), rec), storage_errors.ErrValidation)
	})

	t.Run("missing record", func(t *testing.T) {
		ms := newStore(t)
		_, err := ms.LoadFileRecord(context.Background(), "nope")
		assert.ErrorIs(t, err, metadata_service.ErrFileNotFound)
		assert.ErrorIs(t, err, storage_errors.ErrNotFound)
	})

	t.Run("placement replace and load", func(t *testing.T) {
		ms := newStore(t)
		ctx := context.Background()
		rec := NewRecord(t, "file-d", []byte("abcdefgh"), 4, base)
		require.NoError(t, ms.SaveFileRecord(ctx, rec))

		c0, c1 := rec.Chunks[0].ChunkID, rec.Chunks[1].ChunkID
		require.NoError(t, ms.SavePlacement(ctx, rec.FileID, c0, []metadata_service.PlacementEntry{
			{NodeID: "node1", Handle: "h1", CreatedAt: base},
			{NodeID: "node2", Handle: "h2", CreatedAt: base},
		}))
		require.NoError(t, ms.SavePlacement(ctx, rec.FileID, c1, []metadata_service.PlacementEntry{
			{NodeID: "node3", Handle: "h3", CreatedAt: base},
		}))
		require.NoError(t, ms.SavePlacement(ctx, rec.FileID, c1, []metadata_service.PlacementEntry{
			{NodeID: "node3", Handle: "h3", CreatedAt: base},
			{NodeID: "node1", Handle: "h4", CreatedAt: base},
		}))

		p, err := ms.LoadPlacement(ctx, rec.FileID)
		require.NoError(t, err)
		require.Len(t, p, 2)
		assert.Equal(t, []string{"node1", "node2"}, nodeIDs(p[c0]))
		assert.Equal(t, []string{"node3", "node1"}, nodeIDs(p[c1]))
		assert.Equal(t, "h4", string(p[c1][1].Handle))
	})

	t.Run("duplicate node in placement rejected", func(t *testing.T) {
		ms := newStore(t)
		err := ms.SavePlacement(context.Background(), "f", "f-000000", []metadata_service.PlacementEntry{
			{NodeID: "node1", Handle: "a"},
			{NodeID: "node1", Handle: "b"},
		})
		assert.ErrorIs(t, err, metadata_service.ErrDuplicateReplicaNode)
	})

	t.Run("access counter is monotonic", func(t *testing.T) {
		ms := newStore(t)
		ctx := context.Background()
		rec := NewRecord(t, "file-e", []byte("xyz"), 8, base)
		require.NoError(t, ms.SaveFileRecord(ctx, rec))

		require.NoError(t, ms.RecordAccess(ctx, rec.FileID, base.Add(time.Minute)))
		require.NoError(t, ms.RecordAccess(ctx, rec.FileID, base.Add(2*time.Minute)))

		got, err := ms.LoadFileRecord(ctx, rec.FileID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.AccessCount)
		assert.True(t, got.LastAccessedAt.Equal(base.Add(2*time.Minute)))

		assert.ErrorIs(t, ms.RecordAccess(ctx, "nope", base), metadata_service.ErrFileNotFound)
	})

	t.Run("list and delete", func(t *testing.T) {
		ms := newStore(t)
		ctx := context.Background()
		first := NewRecord(t, "file-1", []byte("one"), 8, base)
		second := NewRecord(t, "file-2", []byte("two"), 8, base.Add(time.Second))
		require.NoError(t, ms.SaveFileRecord(ctx, second))
		require.NoError(t, ms.SaveFileRecord(ctx, first))
		require.NoError(t, ms.SavePlacement(ctx, first.FileID, first.Chunks[0].ChunkID, []metadata_service.PlacementEntry{{NodeID: "node1", Handle: "h"}}))

		list, err := ms.ListFileRecords(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "file-1", list[0].FileID)
		assert.Equal(t, "file-2", list[1].FileID)
		assert.Len(t, list[0].Chunks, 1)

		require.NoError(t, ms.DeleteFile(ctx, first.FileID))
		_, err = ms.LoadFileRecord(ctx, first.FileID)
		assert.ErrorIs(t, err, metadata_service.ErrFileNotFound)
		p, err := ms.LoadPlacement(ctx, first.FileID)
		require.NoError(t, err)
		assert.Empty(t, p)
		assert.ErrorIs(t, ms.DeleteFile(ctx, first.FileID), metadata_service.ErrFileNotFound)
	})

	t.Run("remove node from placements", func(t *testing.T) {
		ms := newStore(t)
		ctx := context.Background()
		require.NoError(t, ms.SavePlacement(ctx, "f1", "f1-000000", []metadata_service.PlacementEntry{{NodeID: "node1", Handle: "a"}, {NodeID: "node2", Handle: "b"}}))
		require.NoError(t, ms.SavePlacement(ctx, "f2", "f2-000000", []metadata_service.PlacementEntry{{NodeID: "node3", Handle: "c"}}))

		affected, err := ms.RemoveNodeFromPlacements(ctx, "node1")
		require.NoError(t, err)
		assert.Equal(t, []string{"f1"}, affected)

		p, err := ms.LoadPlacement(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, []string{"node2"}, nodeIDs(p["f1-000000"]))
	})
}

func nodeIDs(entries []metadata_service.PlacementEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.NodeID
	}
	return out
}
