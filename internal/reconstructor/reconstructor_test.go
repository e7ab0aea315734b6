package reconstructor

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metrics"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storagetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	return bytes.Repeat([]byte("sdfbs-"), n/6+1)[:n]
}

func newReconstructor(c *storagetest.Cluster, m *metrics.StorageMetrics) *Reconstructor {
	return NewReconstructor(c.Metadata, c.Registry, c.Directory, c.Log, m, 2)
}

func TestReconstruct(t *testing.T) {
	data := payload(50)

	tests := []struct {
		name        string
		setup       func(c *storagetest.Cluster)
		wantMissing []string
	}{
		{name: "all replicas healthy", setup: func(*storagetest.Cluster) {}},
		{name: "one node failed", setup: func(c *storagetest.Cluster) { c.Fail("node1") }},
		{name: "first replica dropped", setup: func(c *storagetest.Cluster) {
			c.Stores["node1"].Drop(handle("f", 2))
		}},
		{name: "first replica read errors", setup: func(c *storagetest.Cluster) {
			c.Stores["node1"].SetFailGets(true)
		}},
		{name: "first replica corrupt", setup: func(c *storagetest.Cluster) {
			c.Stores["node1"].Corrupt(handle("f", 0))
		}},
		{name: "every replica of two chunks gone", setup: func(c *storagetest.Cluster) {
			for _, id := range []string{"node1", "node2"} {
				c.Stores[id].Drop(handle("f", 1))
				c.Stores[id].Corrupt(handle("f", 3))
			}
		}, wantMissing: []string{chunk.ChunkID("f", 1), chunk.ChunkID("f", 3)}},
		{name: "both nodes failed", setup: func(c *storagetest.Cluster) { c.Fail("node1", "node2") },
			wantMissing: []string{
				chunk.ChunkID("f", 0), chunk.ChunkID("f", 1), chunk.ChunkID("f", 2),
				chunk.ChunkID("f", 3), chunk.ChunkID("f", 4),
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := storagetest.NewCluster(t, "node1", "node2", "node3")
			c.Seed(t, "f", data, 10, 2, "node1", "node2")
			tt.setup(c)

			got, err := newReconstructor(c, nil).Reconstruct(context.Background(), "f")
			if tt.wantMissing != nil {
				assert.Nil(t, got)
				var missing *storage_errors.MissingChunkError
				require.True(t, errors.As(err, &missing), "got %v", err)
				assert.Equal(t, "f", missing.FileID)
				assert.Equal(t, tt.wantMissing, missing.ChunkIDs)
				assert.ErrorIs(t, err, storage_errors.ErrMissingChunks)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestReconstruct_SingleReplicaLoss(t *testing.T) {
	c := storagetest.NewCluster(t, "node1")
	c.Seed(t, "f", payload(25), 10, 1, "node1")
	c.Stores["node1"].Drop(handle("f", 1))

	_, err := newReconstructor(c, nil).Reconstruct(context.Background(), "f")

	var missing *storage_errors.MissingChunkError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{chunk.ChunkID("f", 1)}, missing.ChunkIDs)
}

func TestReconstruct_CountsCorruptReplicas(t *testing.T) {
	c := storagetest.NewCluster(t, "node1", "node2")
	c.Seed(t, "f", payload(5), 10, 2, "node1", "node2")
	c.Stores["node1"].Corrupt(handle("f", 0))

	m := metrics.NewStorageMetrics(prometheus.NewRegistry())
	got, err := newReconstructor(c, m).Reconstruct(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, payload(5), got)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CorruptReplicas))
}

// tamperedMetadata reports a file checksum that no longer matches the chunks.
type tamperedMetadata struct {
	metadata_service.MetadataService
}

func (m tamperedMetadata) LoadFileRecord(ctx context.Context, fileID string) (*metadata_service.FileRecord, error) {
	rec, err := m.MetadataService.LoadFileRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}
	rec.Checksum = chunk.Hash([]byte("something else"))
	return rec, nil
}

func TestReconstruct_FileChecksumMismatch(t *testing.T) {
	c := storagetest.NewCluster(t, "node1")
	c.Seed(t, "f", payload(30), 10, 1, "node1")

	r := NewReconstructor(tamperedMetadata{c.Metadata}, c.Registry, c.Directory, c.Log, nil, 1)
	got, err := r.Reconstruct(context.Background(), "f")

	assert.Nil(t, got)
	var integrity *storage_errors.IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "f", integrity.FileID)
	assert.Empty(t, integrity.ChunkID)
	assert.Equal(t, chunk.Hash(payload(30)), integrity.Actual)
}

func TestReconstruct_Errors(t *testing.T) {
	c := storagetest.NewCluster(t, "node1")
	r := newReconstructor(c, nil)

	_, err := r.Reconstruct(context.Background(), "unknown")
	assert.ErrorIs(t, err, storage_errors.ErrNotFound)

	_, err = r.Reconstruct(context.Background(), "")
	assert.ErrorIs(t, err, storage_errors.ErrValidation)

	c.Seed(t, "f", payload(30), 10, 1, "node1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Reconstruct(ctx, "f")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspect(t *testing.T) {
	c := storagetest.NewCluster(t, "node1", "node2", "node3")
	c.Seed(t, "f", payload(30), 10, 2, "node1", "node2")
	c.Fail("node2")
	c.Stores["node1"].Drop(handle("f", 2))

	h, err := newReconstructor(c, nil).Inspect(context.Background(), "f")
	require.NoError(t, err)

	require.Len(t, h.Chunks, 3)
	assert.Equal(t, 1, h.Chunks[0].LiveReplicas)
	assert.Equal(t, []string{"node1"}, h.Chunks[0].Nodes)
	assert.Equal(t, []string{"node2"}, h.Chunks[0].StaleNodes)
	assert.Equal(t, 0, h.Chunks[2].LiveReplicas)

	assert.Equal(t, 0, h.MinReplicas())
	assert.Equal(t, 0, h.HealthyChunks())
	assert.Equal(t, []string{chunk.ChunkID("f", 2)}, h.Missing())

	c.Revive("node2")
	h, err = newReconstructor(c, nil).Inspect(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, 1, h.MinReplicas())
	assert.Equal(t, 2, h.HealthyChunks())
}

// handle matches the in-memory store, which keys objects by chunk id.
func handle(fileID string, seq int) object_store.Handle {
	return object_store.Handle(chunk.ChunkID(fileID, seq))
}
