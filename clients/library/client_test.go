package sdfbslib

import (
	"context"
	"errors"
	"testing"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	grpccomm "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication/grpc"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service/fileservicetest"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server/simple"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startCluster serves an in-memory engine over a loopback gRPC listener.
func startCluster(t *testing.T, nodes ...string) (*Client, *fileservicetest.Env) {
	t.Helper()
	ls := log_service.NoOpLogService{}
	env := fileservicetest.New(t, 4, nil, nodes...)

	serverComm := grpccomm.NewGRPCCommunicator("127.0.0.1:0", ls)
	srv := simple.NewSimpleServer(serverComm, env.Files, env.Cluster.Registry, ls)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	clientComm := grpccomm.NewGRPCCommunicator("", ls)
	t.Cleanup(func() { _ = clientComm.Stop() })
	return NewClient(serverComm.Address(), clientComm), env
}

func TestClient_RoundTrip(t *testing.T) {
	client, _ := startCluster(t, "node1", "node2", "node3")
	ctx := context.Background()

	data := []byte("the quick brown fox")
	res, err := client.Upload(ctx, "fox.txt", data, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, res.ChunkCount)
	assert.Equal(t, 2, res.AchievedReplication)

	got, err := client.Download(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	status, err := client.Status(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, "fox.txt", status.Filename)
	assert.True(t, status.Reconstructable)

	files, err := client.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, res.FileID, files[0].FileID)

	nodes, err := client.ListNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	require.NoError(t, client.Heartbeat(ctx, "node2"))
	require.NoError(t, client.Delete(ctx, res.FileID))

	_, err = client.Status(ctx, res.FileID)
	assert.True(t, errors.Is(err, storage_errors.ErrNotFound), "got %v", err)
}

func TestClient_FailAndRepair(t *testing.T) {
	client, _ := startCluster(t, "node1", "node2", "node3")
	ctx := context.Background()

	res, err := client.Upload(ctx, "f", []byte("abcdefgh"), 2)
	require.NoError(t, err)

	require.NoError(t, client.MarkNodeFailed(ctx, "node1"))
	nodes, err := client.ListNodes(ctx)
	require.NoError(t, err)
	for _, n := range nodes {
		if n.ID == "node1" {
			assert.Equal(t, node_registry.StateFailed, n.State)
		}
	}

	report, err := client.Repair(ctx, res.FileID)
	require.NoError(t, err)
	assert.True(t, report.Healthy())

	reports, err := client.RepairAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Zero(t, reports[0].Writes)

	got, err := client.Download(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", string(got))
}

func TestClient_TypedErrors(t *testing.T) {
	client, env := startCluster(t, "node1", "node2")
	ctx := context.Background()

	res, err := client.Upload(ctx, "f", []byte("abcdefgh"), 1)
	require.NoError(t, err)
	lost := chunk.ChunkID(res.FileID, 1)
	for _, store := range env.Cluster.Stores {
		store.Drop(object_store.Handle(lost))
	}

	t.Run("validation", func(t *testing.T) {
		_, err := client.Upload(ctx, "x", []byte("x"), 0)
		assert.True(t, errors.Is(err, storage_errors.ErrValidation), "got %v", err)
	})

	t.Run("unknown node", func(t *testing.T) {
		err := client.MarkNodeFailed(ctx, "nope")
		assert.True(t, errors.Is(err, storage_errors.ErrNotFound), "got %v", err)
	})

	t.Run("missing chunks", func(t *testing.T) {
		_, err := client.Download(ctx, res.FileID)
		var missing *storage_errors.MissingChunkError
		require.True(t, errors.As(err, &missing), "got %v", err)
		assert.Equal(t, res.FileID, missing.FileID)
		assert.Equal(t, []string{lost}, missing.ChunkIDs)
	})

	t.Run("unrepairable keeps report", func(t *testing.T) {
		report, err := client.Repair(ctx, res.FileID)
		var repairErr *storage_errors.RepairError
		require.True(t, errors.As(err, &repairErr), "got %v", err)
		assert.Equal(t, []string{lost}, repairErr.ChunkIDs)
		assert.Equal(t, []string{lost}, report.Unrepairable)
	})

	t.Run("no active nodes", func(t *testing.T) {
		env.Cluster.Fail("node1", "node2")
		_, err := client.Upload(ctx, "g", []byte("data"), 1)
		assert.True(t, errors.Is(err, storage_errors.ErrNoActiveNodes), "got %v", err)
	})
}

func TestClient_Unconfigured(t *testing.T) {
	_, err := (&Client{}).ListNodes(context.Background())
	assert.Error(t, err)
}
