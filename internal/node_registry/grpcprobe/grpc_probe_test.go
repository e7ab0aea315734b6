package grpcprobe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T) (string, *health.Server) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String(), hs
}

func TestGRPCHealthProbe(t *testing.T) {
	addr, hs := startHealthServer(t)
	p := NewGRPCHealthProbe("", 2*time.Second, log_service.NoOpLogService{})
	t.Cleanup(func() { _ = p.Close() })
	ctx := context.Background()

	node := node_registry.NodeRecord{ID: "node1", Address: addr}
	assert.True(t, p.Probe(ctx, node))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	assert.False(t, p.Probe(ctx, node))

	assert.False(t, p.Probe(ctx, node_registry.NodeRecord{ID: "node2"}))
}
