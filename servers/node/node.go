package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/config"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/filelock"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	metainmemory "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service/inmemory"
	metasqlite "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service/sqlite"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metrics"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/placement_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/reconstructor"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/repair_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server/adminhttp"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server/simple"

	grpccomm "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication/grpc"
	locallog "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service/localdisc"
	etcdprobe "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry/etcd"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry/grpcprobe"
	reginmemory "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry/inmemory"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry/storeprobe"
	storelocal "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store/localdisc"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store/remote"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Node is one storage server process: every configured storage node, the
// engine on top of them, and its gRPC and admin HTTP endpoints.
type Node struct {
	cfg *config.Config
	ls  log_service.LogService
	log *locallog.LocalDiscLogService

	Files    file_service.FileService
	Registry node_registry.NodeRegistry
	Metadata metadata_service.MetadataService

	monitor    *node_registry.Monitor
	scheduler  *repair_service.Scheduler
	comm       *grpccomm.GRPCCommunicator
	server     *simple.SimpleServer
	admin      *adminhttp.Server
	grpcProbe  *grpcprobe.GRPCHealthProbe
	etcd       *clientv3.Client
	announcers []announcer

	cancel context.CancelFunc
}

// Build wires every component from cfg. Nothing listens until Start.
func Build(cfg *config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{cfg: cfg, cancel: cancel}

	// 1. Logging
	logSvc, err := locallog.NewLocalDiscLogService(cfg.LogDir(), cfg.NodeID, locallog.Options{
		Console:    cfg.Log.Console,
		NoColor:    cfg.Log.NoColor,
		MaxSizeMB:  cfg.Log.Rotation.MaxSize,
		MaxBackups: cfg.Log.Rotation.MaxBackups,
		MaxAgeDays: cfg.Log.Rotation.MaxAge,
		Compress:   cfg.Log.Rotation.Compress,
	}, cfg.Log.Level)
	if err != nil {
		cancel()
		return nil, err
	}
	n.log, n.ls = logSvc, logSvc
	ls := n.ls

	fail := func(err error) (*Node, error) {
		n.close()
		return nil, err
	}

	// 2. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewStorageMetrics(registry)

	// 3. Metadata
	switch cfg.Metadata.Type {
	case config.MetadataSQLite:
		n.Metadata, err = metasqlite.NewSQLiteMetadataService(ctx, metasqlite.Config{Path: cfg.SQLitePath()}, ls)
		if err != nil {
			return fail(err)
		}
	default:
		n.Metadata = metainmemory.NewInMemoryMetadataService(ls)
	}

	// 4. Object stores, one per storage node. Remote nodes are reached
	// through the communicator; only local ones are served to peers.
	n.comm = grpccomm.NewGRPCCommunicator(cfg.Server.GRPCListen, ls)
	stores := object_store.NewDirectory()
	local := object_store.NewDirectory()
	for _, nc := range cfg.Nodes {
		if nc.Remote {
			stores.Attach(nc.ID, remote.NewRemoteObjectStore(nc.ID, nc.Address, n.comm, config.Duration(cfg.Registry.ProbeTimeout), ls))
			continue
		}
		store, err := storelocal.NewLocalDiscObjectStore(cfg.NodeDataDir(nc), ls)
		if err != nil {
			return fail(fmt.Errorf("node %s: %w", nc.ID, err))
		}
		stores.Attach(nc.ID, store)
		local.Attach(nc.ID, store)
	}

	// 5. Node registry and liveness
	reg := reginmemory.NewInMemoryNodeRegistry(reginmemory.Config{
		HeartbeatTimeout: config.Duration(cfg.Registry.HeartbeatTimeout),
		FailureThreshold: cfg.Registry.FailureThreshold,
		OnStateChange:    n.onStateChange,
	}, ls)
	n.Registry = reg

	for _, nc := range cfg.Nodes {
		address := nc.Address
		if address == "" {
			address = cfg.Server.GRPCListen
		}
		if err := reg.RegisterNode(node_registry.NodeRecord{ID: nc.ID, Address: address}); err != nil {
			return fail(err)
		}
	}
	if err := restoreLoad(ctx, n.Metadata, reg); err != nil {
		return fail(err)
	}

	probeTimeout := config.Duration(cfg.Registry.ProbeTimeout)
	switch cfg.Registry.Probe {
	case config.ProbeStore:
		reg.SetProbe(storeprobe.NewStoreProbe(stores, probeTimeout, ls))
	case config.ProbeGRPC:
		n.grpcProbe = grpcprobe.NewGRPCHealthProbe(grpccomm.ServiceName, probeTimeout, ls)
		reg.SetProbe(n.grpcProbe)
	case config.ProbeEtcd:
		n.etcd, err = etcdprobe.Connect(cfg.Registry.EtcdEndpoints)
		if err != nil {
			return fail(err)
		}
		reg.SetProbe(etcdprobe.NewLeaseProbe(n.etcd, ls))
		for _, nc := range cfg.Nodes {
			if !nc.Remote {
				n.announcers = append(n.announcers, etcdprobe.NewAnnouncer(n.etcd, nc.ID, nc.Address, ls))
			}
		}
	case config.ProbeHeartbeat:
		// Nodes are judged on heartbeat age alone.
	}
	n.monitor = node_registry.NewMonitor(ctx, reg, config.Duration(cfg.Registry.ProbeInterval), ls)

	// 6. Engine
	locks := filelock.New()
	placement := placement_service.NewLeastLoadedPlacementService(reg, stores, ls, m)
	reader := reconstructor.NewReconstructor(n.Metadata, reg, stores, ls, m, cfg.Storage.ReadParallelism)
	repairs := repair_service.NewReplicaRepairService(n.Metadata, placement, reader, locks, ls, m, cfg.Repair.Parallelism)

	if cfg.Repair.Enabled {
		n.scheduler = repair_service.NewScheduler(ctx, repairs, config.Duration(cfg.Repair.Interval), ls)
		n.scheduler.OnCycleComplete = func(repair_service.SchedulerStats) {
			m.RecordRepairCycle()
		}
	}

	n.Files = file_service.NewChunkedFileService(file_service.Config{ChunkSize: cfg.Storage.ChunkSize}, file_service.Deps{
		Metadata:  n.Metadata,
		Registry:  reg,
		Stores:    stores,
		Placement: placement,
		Reader:    reader,
		Repairs:   repairs,
		Locks:     locks,
		Log:       ls,
		Metrics:   m,
	})

	// 7. Gateways
	n.server = simple.NewSimpleServer(n.comm, n.Files, reg, ls)
	n.server.ServeObjects(local)
	n.admin = adminhttp.NewServer(n.Files, registry, ls)

	return n, nil
}

// announcer keeps a hosted node visible to peers while the process runs.
type announcer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Start opens the listeners and starts the background loops.
func (n *Node) Start(ctx context.Context) error {
	for i, a := range n.announcers {
		if err := a.Start(ctx); err != nil {
			stopAnnouncers(context.WithoutCancel(ctx), n.announcers[:i])
			return err
		}
	}
	if err := n.server.Start(); err != nil {
		stopAnnouncers(context.WithoutCancel(ctx), n.announcers)
		return err
	}
	if err := n.admin.Start(n.cfg.Server.AdminListen); err != nil {
		_ = n.server.Stop()
		stopAnnouncers(context.WithoutCancel(ctx), n.announcers)
		return err
	}

	n.monitor.Start()
	if n.scheduler != nil {
		n.scheduler.Start()
	}

	n.ls.Info(log_service.LogEvent{
		Message: "Storage server started",
		Metadata: map[string]any{
			"nodeID": n.cfg.NodeID,
			"grpc":   n.comm.Address(),
			"admin":  n.admin.Addr(),
			"nodes":  len(n.cfg.Nodes),
		},
	})
	return nil
}

// Stop shuts everything down in reverse order of Start.
func (n *Node) Stop(ctx context.Context) error {
	var errs []error
	if n.scheduler != nil {
		n.scheduler.Stop()
	}
	n.monitor.Stop()

	errs = append(errs, n.admin.Stop(ctx), n.server.Stop())
	errs = append(errs, stopAnnouncers(ctx, n.announcers)...)

	n.ls.Info(log_service.LogEvent{Message: "Storage server stopped"})
	errs = append(errs, n.close())
	return errors.Join(errs...)
}

// Run starts the node and blocks until SIGINT or SIGTERM.
func (n *Node) Run() error {
	if err := n.Start(context.Background()); err != nil {
		_ = n.close()
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), config.Duration(n.cfg.ShutdownTimeout))
	defer cancel()
	return n.Stop(ctx)
}

func stopAnnouncers(ctx context.Context, announcers []announcer) []error {
	errs := make([]error, 0, len(announcers))
	for _, a := range announcers {
		errs = append(errs, a.Stop(ctx))
	}
	return errs
}

func (n *Node) GRPCAddress() string {
	return n.comm.Address()
}

func (n *Node) AdminAddress() string {
	return n.admin.Addr()
}

func (n *Node) close() error {
	n.cancel()
	var errs []error
	if n.grpcProbe != nil {
		errs = append(errs, n.grpcProbe.Close())
	}
	if n.etcd != nil {
		errs = append(errs, n.etcd.Close())
	}
	if n.Metadata != nil {
		errs = append(errs, n.Metadata.Close())
	}
	if n.log != nil {
		errs = append(errs, n.log.Close())
	}
	return errors.Join(errs...)
}

func (n *Node) onStateChange(change node_registry.StateChange) {
	if change.To != node_registry.StateFailed || n.scheduler == nil {
		return
	}
	if err := n.scheduler.Trigger(); err != nil && !errors.Is(err, repair_service.ErrSchedulerStopped) {
		n.ls.Warn(log_service.LogEvent{
			Message:  "Could not trigger repair after node failure",
			Metadata: map[string]any{"nodeID": change.NodeID, "error": err.Error()},
		})
	}
}

// restoreLoad seeds per-node chunk counts from persisted placements so
// least-loaded placement survives a restart.
func restoreLoad(ctx context.Context, ms metadata_service.MetadataService, reg node_registry.NodeRegistry) error {
	records, err := ms.ListFileRecords(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		placement, err := ms.LoadPlacement(ctx, rec.FileID)
		if err != nil {
			return err
		}
		for _, c := range rec.Chunks {
			for _, e := range placement[c.ChunkID] {
				if _, ok := reg.Get(e.NodeID); ok {
					reg.RecordStored(e.NodeID, 1, c.Size)
				}
			}
		}
	}
	return nil
}
