package grpcprobe

import (
	"context"
	"sync"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthProbe calls the standard gRPC health service on each node's
// address. Nodes without an address are reported down.
type GRPCHealthProbe struct {
	service string
	timeout time.Duration
	ls      log_service.LogService

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewGRPCHealthProbe(service string, timeout time.Duration, ls log_service.LogService) *GRPCHealthProbe {
	return &GRPCHealthProbe{
		service: service,
		timeout: timeout,
		ls:      ls,
		conns:   make(map[string]*grpc.ClientConn),
	}
}

func (p *GRPCHealthProbe) conn(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[addr]; ok {
		return c, nil
	}
	c, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	p.conns[addr] = c
	return c, nil
}

func (p *GRPCHealthProbe) Probe(ctx context.Context, node node_registry.NodeRecord) bool {
	if node.Address == "" {
		return false
	}

	c, err := p.conn(node.Address)
	if err != nil {
		p.ls.Warn(log_service.LogEvent{
			Message:  "Failed to create health client",
			Metadata: map[string]any{"nodeID": node.ID, "address": node.Address, "error": err.Error()},
		})
		return false
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := healthpb.NewHealthClient(c).Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		p.ls.Debug(log_service.LogEvent{
			Message:  "Health check failed",
			Metadata: map[string]any{"nodeID": node.ID, "address": node.Address, "error": err.Error()},
		})
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (p *GRPCHealthProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, addr)
	}
	return firstErr
}

var _ node_registry.LivenessProbe = (*GRPCHealthProbe)(nil)
