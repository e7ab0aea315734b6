// Package fileservicetest builds a ChunkedFileService over an in-memory
// cluster for transport tests.
package fileservicetest

import (
	"testing"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/filelock"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metrics"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/placement_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/reconstructor"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/repair_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storagetest"
)

type Env struct {
	Cluster *storagetest.Cluster
	Files   *file_service.ChunkedFileService
}

// New wires every engine component with chunkSize-byte chunks. m may be nil.
func New(t *testing.T, chunkSize int, m *metrics.StorageMetrics, nodeIDs ...string) *Env {
	t.Helper()
	c := storagetest.NewCluster(t, nodeIDs...)
	locks := filelock.New()

	placement := placement_service.NewLeastLoadedPlacementService(c.Registry, c.Directory, c.Log, m)
	reader := reconstructor.NewReconstructor(c.Metadata, c.Registry, c.Directory, c.Log, m, 2)
	repairs := repair_service.NewReplicaRepairService(c.Metadata, placement, reader, locks, c.Log, m, 2)

	files := file_service.NewChunkedFileService(file_service.Config{ChunkSize: chunkSize}, file_service.Deps{
		Metadata:  c.Metadata,
		Registry:  c.Registry,
		Stores:    c.Directory,
		Placement: placement,
		Reader:    reader,
		Repairs:   repairs,
		Locks:     locks,
		Log:       c.Log,
		Metrics:   m,
	})
	return &Env{Cluster: c, Files: files}
}
