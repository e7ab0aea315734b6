// Package storagetest wires an in-memory set of storage nodes for tests.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	metainmemory "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service/inmemory"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	reginmemory "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry/inmemory"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storeinmemory "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store/inmemory"
	"github.com/stretchr/testify/require"
)

const FailureThreshold = 3

// ScriptedProbe reports nodes down only when told to.
type ScriptedProbe struct {
	mu   sync.Mutex
	down map[string]bool
}

func (p *ScriptedProbe) SetDown(nodeID string, down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down[nodeID] = down
}

func (p *ScriptedProbe) Probe(_ context.Context, n node_registry.NodeRecord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.down[n.ID]
}

type Cluster struct {
	Registry  *reginmemory.InMemoryNodeRegistry
	Directory *object_store.Directory
	Stores    map[string]*storeinmemory.InMemoryObjectStore
	Metadata  *metainmemory.InMemoryMetadataService
	Probe     *ScriptedProbe
	Log       log_service.LogService
}

func NewCluster(t *testing.T, nodeIDs ...string) *Cluster {
	t.Helper()

	ls := log_service.NoOpLogService{}
	c := &Cluster{
		Registry:  reginmemory.NewInMemoryNodeRegistry(reginmemory.Config{FailureThreshold: FailureThreshold}, ls),
		Directory: object_store.NewDirectory(),
		Stores:    make(map[string]*storeinmemory.InMemoryObjectStore),
		Metadata:  metainmemory.NewInMemoryMetadataService(ls),
		Probe:     &ScriptedProbe{down: make(map[string]bool)},
		Log:       ls,
	}
	c.Registry.SetProbe(c.Probe)

	for _, id := range nodeIDs {
		c.AddNode(t, id)
	}
	return c
}

func (c *Cluster) AddNode(t *testing.T, nodeID string) *storeinmemory.InMemoryObjectStore {
	t.Helper()
	store := storeinmemory.NewInMemoryObjectStore()
	c.Stores[nodeID] = store
	c.Directory.Attach(nodeID, store)
	require.NoError(t, c.Registry.RegisterNode(node_registry.NodeRecord{ID: nodeID}))
	return store
}

// Fail drives nodes to failed through the liveness probe.
func (c *Cluster) Fail(nodeIDs ...string) {
	for _, id := range nodeIDs {
		c.Probe.SetDown(id, true)
	}
	for i := 0; i < FailureThreshold; i++ {
		c.Registry.ProbeAll(context.Background())
	}
}

func (c *Cluster) Revive(nodeIDs ...string) {
	for _, id := range nodeIDs {
		c.Probe.SetDown(id, false)
	}
	c.Registry.ProbeAll(context.Background())
}

// Writes sums new objects stored across every node.
func (c *Cluster) Writes() int64 {
	var total int64
	for _, s := range c.Stores {
		total += s.Writes()
	}
	return total
}

// Seed stores data under fileID with every chunk written to each of nodeIDs,
// bypassing placement so tests control exactly where replicas live.
func (c *Cluster) Seed(t *testing.T, fileID string, data []byte, chunkSize, replicationFactor int, nodeIDs ...string) metadata_service.FileRecord {
	t.Helper()
	ctx := context.Background()

	chunks, err := chunk.Split(fileID, data, chunkSize)
	require.NoError(t, err)

	rec := metadata_service.FileRecord{
		FileID:            fileID,
		Filename:          fileID + ".bin",
		Size:              int64(len(data)),
		ReplicationFactor: replicationFactor,
		Checksum:          chunk.Hash(data),
		CreatedAt:         time.Now(),
	}
	for _, ch := range chunks {
		rec.Chunks = append(rec.Chunks, ch.Descriptor)

		var entries []metadata_service.PlacementEntry
		for _, id := range nodeIDs {
			store, ok := c.Stores[id]
			require.True(t, ok, "unknown node %s", id)
			handle, err := store.Put(ctx, ch.ChunkID, ch.Data)
			require.NoError(t, err)
			c.Registry.RecordStored(id, 1, ch.Size)
			entries = append(entries, metadata_service.PlacementEntry{NodeID: id, Handle: handle, CreatedAt: rec.CreatedAt})
		}
		require.NoError(t, c.Metadata.SavePlacement(ctx, fileID, ch.ChunkID, entries))
	}
	require.NoError(t, c.Metadata.SaveFileRecord(ctx, rec))
	return rec
}
