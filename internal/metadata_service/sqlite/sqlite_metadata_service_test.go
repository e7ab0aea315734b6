package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service/metadatatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, path string) *SQLiteMetadataService {
	t.Helper()
	s, err := NewSQLiteMetadataService(context.Background(), Config{Path: path}, log_service.NoOpLogService{})
	require.NoError(t, err)
	return s
}

func TestSQLiteMetadataService(t *testing.T) {
	metadatatest.Run(t, func(t *testing.T) metadata_service.MetadataService {
		s := open(t, filepath.Join(t.TempDir(), "meta.db"))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteMetadataService_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meta.db")
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := open(t, path)
	rec := metadatatest.NewRecord(t, "durable", []byte("persist me please"), 6, created)
	require.NoError(t, first.SaveFileRecord(ctx, rec))
	require.NoError(t, first.SavePlacement(ctx, rec.FileID, rec.Chunks[0].ChunkID, []metadata_service.PlacementEntry{{NodeID: "node1", Handle: "h"}}))
	require.NoError(t, first.Close())

	second := open(t, path)
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.LoadFileRecord(ctx, rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, rec.Chunks, got.Chunks)

	p, err := second.LoadPlacement(ctx, rec.FileID)
	require.NoError(t, err)
	assert.Len(t, p[rec.Chunks[0].ChunkID], 1)
	require.NoError(t, second.Health(ctx))
}

func TestNewSQLiteMetadataService_RequiresPath(t *testing.T) {
	_, err := NewSQLiteMetadataService(context.Background(), Config{}, log_service.NoOpLogService{})
	assert.Error(t, err)
}
