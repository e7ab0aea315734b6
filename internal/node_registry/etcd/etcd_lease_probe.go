package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	EtcdDialTimeout = 5 * time.Second
	LeaseTTL        = 5 // seconds
	PrefixLease     = "/sdfbs/leases/"
)

func LeaseKey(nodeID string) string {
	return PrefixLease + nodeID
}

type leaseValue struct {
	NodeID    string    `json:"nodeId"`
	Address   string    `json:"address,omitempty"`
	GrantedAt time.Time `json:"grantedAt"`
}

func Connect(endpoints []string) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: EtcdDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return cli, nil
}

// LeaseProbe reports a node alive while its lease key exists in etcd.
type LeaseProbe struct {
	client *clientv3.Client
	ls     log_service.LogService
}

func NewLeaseProbe(client *clientv3.Client, ls log_service.LogService) *LeaseProbe {
	return &LeaseProbe{client: client, ls: ls}
}

func (p *LeaseProbe) Probe(ctx context.Context, node node_registry.NodeRecord) bool {
	resp, err := p.client.Get(ctx, LeaseKey(node.ID), clientv3.WithCountOnly())
	if err != nil {
		p.ls.Warn(log_service.LogEvent{
			Message:  "Lease lookup failed",
			Metadata: map[string]any{"nodeID": node.ID, "error": err.Error()},
		})
		return false
	}
	return resp.Count > 0
}

var _ node_registry.LivenessProbe = (*LeaseProbe)(nil)

// Announcer keeps a node's lease key alive for as long as it runs.
type Announcer struct {
	client  *clientv3.Client
	ls      log_service.LogService
	nodeID  string
	address string

	leaseID  clientv3.LeaseID
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewAnnouncer(client *clientv3.Client, nodeID, address string, ls log_service.LogService) *Announcer {
	return &Announcer{
		client:  client,
		ls:      ls,
		nodeID:  nodeID,
		address: address,
		stopCh:  make(chan struct{}),
	}
}

func (a *Announcer) Start(ctx context.Context) error {
	resp, err := a.client.Grant(ctx, LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	a.leaseID = resp.ID

	val, _ := json.Marshal(leaseValue{NodeID: a.nodeID, Address: a.address, GrantedAt: time.Now().UTC()})
	if _, err := a.client.Put(ctx, LeaseKey(a.nodeID), string(val), clientv3.WithLease(a.leaseID)); err != nil {
		return fmt.Errorf("failed to put lease key: %w", err)
	}

	ch, err := a.client.KeepAlive(context.Background(), a.leaseID)
	if err != nil {
		return fmt.Errorf("failed to start keepalive: %w", err)
	}

	a.ls.Info(log_service.LogEvent{
		Message:  "Node lease announced",
		Metadata: map[string]any{"nodeID": a.nodeID, "leaseID": int64(a.leaseID)},
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.stopCh:
				return
			case _, ok := <-ch:
				if !ok {
					a.ls.Error(log_service.LogEvent{
						Message:  "Etcd keepalive channel closed unexpectedly",
						Metadata: map[string]any{"nodeID": a.nodeID},
					})
					return
				}
			}
		}
	}()
	return nil
}

// Stop ends the keep-alive and revokes the lease. Later calls are no-ops.
func (a *Announcer) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() { err = a.stop(ctx) })
	return err
}

func (a *Announcer) stop(ctx context.Context) error {
	close(a.stopCh)
	a.wg.Wait()

	if a.leaseID == 0 {
		return nil
	}
	if _, err := a.client.Revoke(ctx, a.leaseID); err != nil {
		a.ls.Warn(log_service.LogEvent{
			Message:  "Failed to revoke lease during shutdown",
			Metadata: map[string]any{"nodeID": a.nodeID, "error": err.Error()},
		})
		return err
	}
	return nil
}
