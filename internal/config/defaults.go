package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ProbeStore     = "store"
	ProbeGRPC      = "grpc"
	ProbeEtcd      = "etcd"
	ProbeHeartbeat = "heartbeat"

	MetadataMemory = "memory"
	MetadataSQLite = "sqlite"
)

func GetDefault() Config {
	return Config{
		NodeID:          "sdfbs-1",
		DataDir:         "./data",
		ShutdownTimeout: "10s",

		Storage: StorageConfig{
			ChunkSize:         1 << 20,
			ReplicationFactor: 2,
			ReadParallelism:   4,
		},
		Nodes: []NodeConfig{
			{ID: "node1"},
			{ID: "node2"},
			{ID: "node3"},
		},
		Registry: RegistryConfig{
			HeartbeatTimeout: "30s",
			FailureThreshold: 3,
			ProbeInterval:    "5s",
			ProbeTimeout:     "2s",
			Probe:            ProbeStore,
		},
		Repair: RepairConfig{
			Enabled:     true,
			Interval:    "30s",
			Parallelism: 2,
		},
		Metadata: MetadataConfig{
			Type: MetadataSQLite,
		},
		Server: ServerConfig{
			GRPCListen:  "127.0.0.1:7400",
			AdminListen: "127.0.0.1:7401",
		},
		Log: LogConfig{
			Level:   "INFO",
			Console: true,
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
			},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := GetDefault()

	v.SetDefault("node_id", d.NodeID)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)

	v.SetDefault("storage.chunk_size", d.Storage.ChunkSize)
	v.SetDefault("storage.replication_factor", d.Storage.ReplicationFactor)
	v.SetDefault("storage.read_parallelism", d.Storage.ReadParallelism)

	nodes := make([]map[string]any, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		nodes = append(nodes, map[string]any{"id": n.ID, "data_dir": n.DataDir, "address": n.Address, "remote": n.Remote})
	}
	v.SetDefault("nodes", nodes)

	v.SetDefault("registry.heartbeat_timeout", d.Registry.HeartbeatTimeout)
	v.SetDefault("registry.failure_threshold", d.Registry.FailureThreshold)
	v.SetDefault("registry.probe_interval", d.Registry.ProbeInterval)
	v.SetDefault("registry.probe_timeout", d.Registry.ProbeTimeout)
	v.SetDefault("registry.probe", d.Registry.Probe)
	v.SetDefault("registry.etcd_endpoints", d.Registry.EtcdEndpoints)

	v.SetDefault("repair.enabled", d.Repair.Enabled)
	v.SetDefault("repair.interval", d.Repair.Interval)
	v.SetDefault("repair.parallelism", d.Repair.Parallelism)

	v.SetDefault("metadata.type", d.Metadata.Type)
	v.SetDefault("metadata.sqlite.path", d.Metadata.SQLite.Path)

	v.SetDefault("server.grpc_listen", d.Server.GRPCListen)
	v.SetDefault("server.admin_listen", d.Server.AdminListen)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.console", d.Log.Console)
	v.SetDefault("log.no_color", d.Log.NoColor)
	v.SetDefault("log.rotation.max_size", d.Log.Rotation.MaxSize)
	v.SetDefault("log.rotation.max_backups", d.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age", d.Log.Rotation.MaxAge)
	v.SetDefault("log.rotation.compress", d.Log.Rotation.Compress)
}

// Generate writes the default configuration as YAML to path. It returns
// false when the file exists and overwrite is not set.
func Generate(path string, overwrite bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := yaml.Marshal(GetDefault())
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return true, nil
}
