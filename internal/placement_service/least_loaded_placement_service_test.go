package placement_service

import (
	"context"
	"errors"
	"testing"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneChunk(t *testing.T, fileID string, data string) chunk.Chunk {
	t.Helper()
	chunks, err := chunk.Split(fileID, []byte(data), 1024)
	require.NoError(t, err)
	return chunks[0]
}

func newService(c *storagetest.Cluster) *LeastLoadedPlacementService {
	return NewLeastLoadedPlacementService(c.Registry, c.Directory, c.Log, nil)
}

func TestPlace(t *testing.T) {
	tests := []struct {
		name         string
		nodes        []string
		failed       []string
		failPuts     []string
		desired      int
		wantAchieved int
		wantUnder    bool
		errorIs      error
	}{
		{name: "full replication", nodes: []string{"node1", "node2", "node3"}, desired: 2, wantAchieved: 2},
		{name: "replication factor one", nodes: []string{"node1", "node2"}, desired: 1, wantAchieved: 1},
		{name: "fewer active than desired", nodes: []string{"node1", "node2", "node3"}, failed: []string{"node3"}, desired: 3, wantAchieved: 2, wantUnder: true},
		{name: "one write fails", nodes: []string{"node1", "node2"}, failPuts: []string{"node1"}, desired: 2, wantAchieved: 1, wantUnder: true},
		{name: "every write fails", nodes: []string{"node1", "node2"}, failPuts: []string{"node1", "node2"}, desired: 2, errorIs: storage_errors.ErrPlacementFailed},
		{name: "no active nodes", nodes: []string{"node1"}, failed: []string{"node1"}, desired: 1, errorIs: storage_errors.ErrNoActiveNodes},
		{name: "invalid factor", nodes: []string{"node1"}, desired: 0, errorIs: storage_errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := storagetest.NewCluster(t, tt.nodes...)
			c.Fail(tt.failed...)
			for _, id := range tt.failPuts {
				c.Stores[id].SetFailPuts(true)
			}
			ps := newService(c)

			res, err := ps.Place(context.Background(), oneChunk(t, "file", "payload"), tt.desired)
			if tt.errorIs != nil {
				assert.ErrorIs(t, err, tt.errorIs)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantAchieved, res.Achieved)
			assert.Len(t, res.Entries, tt.wantAchieved)
			assert.Equal(t, tt.wantUnder, res.UnderReplicated())

			seen := map[string]bool{}
			for _, e := range res.Entries {
				assert.False(t, seen[e.NodeID], "node %s used twice", e.NodeID)
				seen[e.NodeID] = true
				assert.True(t, c.Stores[e.NodeID].Exists(context.Background(), e.Handle), "bytes must be written before the entry is returned")
			}
			for _, id := range tt.failed {
				assert.False(t, seen[id], "failed node %s received a replica", id)
			}
		})
	}
}

func TestPlace_PlacementErrorCarriesCauses(t *testing.T) {
	c := storagetest.NewCluster(t, "node1", "node2")
	c.Stores["node1"].SetFailPuts(true)
	c.Stores["node2"].SetFailPuts(true)

	_, err := newService(c).Place(context.Background(), oneChunk(t, "file", "x"), 2)

	var perr *storage_errors.PlacementError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, chunk.ChunkID("file", 0), perr.ChunkID)
	assert.Len(t, perr.Causes, 2)
}

func TestPlace_LeastLoadedFirst(t *testing.T) {
	c := storagetest.NewCluster(t, "node1", "node2", "node3")
	c.Registry.RecordStored("node1", 10, 10_000)
	c.Registry.RecordStored("node3", 1, 100)
	ps := newService(c)

	res, err := ps.Place(context.Background(), oneChunk(t, "file", "abc"), 2)
	require.NoError(t, err)

	assert.Equal(t, "node2", res.Entries[0].NodeID)
	assert.Equal(t, "node3", res.Entries[1].NodeID)

	n2, _ := c.Registry.Get("node2")
	assert.Equal(t, int64(1), n2.ChunkCount)
	assert.Equal(t, int64(3), n2.BytesStored)
}

func TestPlace_SpreadsLoadAcrossChunks(t *testing.T) {
	c := storagetest.NewCluster(t, "node1", "node2", "node3")
	ps := newService(c)

	chunks, err := chunk.Split("spread", make([]byte, 30), 10)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, ch := range chunks {
		res, err := ps.Place(context.Background(), ch, 2)
		require.NoError(t, err)
		for _, e := range res.Entries {
			counts[e.NodeID]++
		}
	}
	assert.Equal(t, map[string]int{"node1": 2, "node2": 2, "node3": 2}, counts)
}

func TestSelectTargets_Exclude(t *testing.T) {
	c := storagetest.NewCluster(t, "node1", "node2", "node3", "node4")
	c.Fail("node4")
	ps := newService(c)

	got := ps.SelectTargets(5, map[string]struct{}{"node1": {}})
	ids := make([]string, len(got))
	for i, n := range got {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"node2", "node3"}, ids)
	assert.Empty(t, ps.SelectTargets(0, nil))
}
