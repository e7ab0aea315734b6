package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "node_id: test-node\n"))
	require.NoError(t, err)

	d := GetDefault()
	assert.Equal(t, "test-node", cfg.NodeID)
	assert.Equal(t, d.Storage, cfg.Storage)
	assert.Equal(t, d.Nodes, cfg.Nodes)
	assert.Equal(t, d.Repair, cfg.Repair)
	assert.Equal(t, ProbeStore, cfg.Registry.Probe)
	assert.Equal(t, 3, cfg.Registry.FailureThreshold)
	assert.Equal(t, MetadataSQLite, cfg.Metadata.Type)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
node_id: primary
data_dir: /var/lib/sdfbs
storage:
  chunk_size: 4096
  replication_factor: 3
nodes:
  - id: a
  - id: b
    data_dir: /mnt/b
    address: 10.0.0.2:7400
registry:
  probe: grpc
  probe_interval: 1s
metadata:
  type: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Storage.ChunkSize)
	assert.Equal(t, 3, cfg.Storage.ReplicationFactor)
	assert.Equal(t, 4, cfg.Storage.ReadParallelism)
	require.Len(t, cfg.Nodes, 2)
	assert.Equal(t, NodeConfig{ID: "b", DataDir: "/mnt/b", Address: "10.0.0.2:7400"}, cfg.Nodes[1])
	assert.Equal(t, ProbeGRPC, cfg.Registry.Probe)
	assert.Equal(t, time.Second, Duration(cfg.Registry.ProbeInterval))
	assert.Equal(t, MetadataMemory, cfg.Metadata.Type)

	assert.Equal(t, filepath.Join("/var/lib/sdfbs", "nodes", "a"), cfg.NodeDataDir(cfg.Nodes[0]))
	assert.Equal(t, "/mnt/b", cfg.NodeDataDir(cfg.Nodes[1]))
	assert.Equal(t, filepath.Join("/var/lib/sdfbs", "metadata.db"), cfg.SQLitePath())
	assert.Equal(t, filepath.Join("/var/lib/sdfbs", "logs"), cfg.LogDir())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SDFBS_STORAGE_REPLICATION_FACTOR", "1")
	t.Setenv("SDFBS_SERVER_ADMIN_LISTEN", "127.0.0.1:9999")

	cfg, err := Load(writeConfig(t, "storage:\n  replication_factor: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Storage.ReplicationFactor)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.AdminListen)
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	path := writeConfig(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("SDFBS_NODE_ID=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("SDFBS_NODE_ID") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.NodeID)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero chunk size", mutate: func(c *Config) { c.Storage.ChunkSize = 0 }, wantErr: "storage.chunk_size"},
		{name: "zero replication", mutate: func(c *Config) { c.Storage.ReplicationFactor = 0 }, wantErr: "storage.replication_factor"},
		{name: "no nodes", mutate: func(c *Config) { c.Nodes = nil }, wantErr: "at least one node"},
		{name: "duplicate node", mutate: func(c *Config) { c.Nodes = []NodeConfig{{ID: "a"}, {ID: "a"}} }, wantErr: "duplicate node id"},
		{name: "remote without address", mutate: func(c *Config) { c.Nodes = []NodeConfig{{ID: "a", Remote: true}} }, wantErr: "needs an address"},
		{name: "unknown probe", mutate: func(c *Config) { c.Registry.Probe = "ping" }, wantErr: "registry.probe"},
		{name: "etcd without endpoints", mutate: func(c *Config) { c.Registry.Probe = ProbeEtcd }, wantErr: "etcd_endpoints"},
		{name: "unknown metadata", mutate: func(c *Config) { c.Metadata.Type = "postgres" }, wantErr: "metadata.type"},
		{name: "bad duration", mutate: func(c *Config) { c.Repair.Interval = "soon" }, wantErr: "repair.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefault()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sdfbs.yaml")

	written, err := Generate(path, false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = Generate(path, false)
	require.NoError(t, err)
	assert.False(t, written)

	cfg, err := Load(path)
	require.NoError(t, err)
	d := GetDefault()
	assert.Equal(t, d.Storage, cfg.Storage)
	assert.Equal(t, d.Server, cfg.Server)
	assert.Equal(t, d.Log.Rotation, cfg.Log.Rotation)
}
