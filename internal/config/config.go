package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "SDFBS"

var envFiles = []string{".env", ".env.local"}

type Config struct {
	NodeID          string `mapstructure:"node_id"          yaml:"node_id"`
	DataDir         string `mapstructure:"data_dir"         yaml:"data_dir"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Nodes    []NodeConfig   `mapstructure:"nodes"    yaml:"nodes"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Repair   RepairConfig   `mapstructure:"repair"   yaml:"repair"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"`
	Log      LogConfig      `mapstructure:"log"      yaml:"log"`
}

type StorageConfig struct {
	ChunkSize         int `mapstructure:"chunk_size"         yaml:"chunk_size"`
	ReplicationFactor int `mapstructure:"replication_factor" yaml:"replication_factor"`
	ReadParallelism   int `mapstructure:"read_parallelism"   yaml:"read_parallelism"`
}

// NodeConfig describes one storage node. An empty DataDir places the node
// under <data_dir>/nodes/<id>. A remote node's store is hosted by the sdfbs
// process listening on Address.
type NodeConfig struct {
	ID      string `mapstructure:"id"       yaml:"id"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	Address string `mapstructure:"address"  yaml:"address"`
	Remote  bool   `mapstructure:"remote"   yaml:"remote"`
}

type RegistryConfig struct {
	HeartbeatTimeout string   `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	FailureThreshold int      `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	ProbeInterval    string   `mapstructure:"probe_interval"    yaml:"probe_interval"`
	ProbeTimeout     string   `mapstructure:"probe_timeout"     yaml:"probe_timeout"`
	Probe            string   `mapstructure:"probe"             yaml:"probe"`
	EtcdEndpoints    []string `mapstructure:"etcd_endpoints"    yaml:"etcd_endpoints"`
}

type RepairConfig struct {
	Enabled     bool   `mapstructure:"enabled"     yaml:"enabled"`
	Interval    string `mapstructure:"interval"    yaml:"interval"`
	Parallelism int    `mapstructure:"parallelism" yaml:"parallelism"`
}

type MetadataConfig struct {
	Type   string       `mapstructure:"type"   yaml:"type"`
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type ServerConfig struct {
	GRPCListen  string `mapstructure:"grpc_listen"  yaml:"grpc_listen"`
	AdminListen string `mapstructure:"admin_listen" yaml:"admin_listen"`
}

type LogConfig struct {
	Level    string            `mapstructure:"level"    yaml:"level"`
	Dir      string            `mapstructure:"dir"      yaml:"dir"`
	Console  bool              `mapstructure:"console"  yaml:"console"`
	NoColor  bool              `mapstructure:"no_color" yaml:"no_color"`
	Rotation LogRotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"    yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"     yaml:"max_age"`
	Compress   bool `mapstructure:"compress"    yaml:"compress"`
}

// Load reads path (or config.yaml from the usual locations when path is
// empty), layers SDFBS_* environment variables over it and validates the
// result. .env files next to the config are loaded first.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	if path != "" {
		v.SetConfigFile(path)
		dir := filepath.Dir(path)
		for _, f := range envFiles {
			_ = godotenv.Load(filepath.Join(dir, f))
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.sdfbs")
		v.AddConfigPath("/etc/sdfbs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.NodeID == "" {
		errs = append(errs, errors.New("node_id is required"))
	}
	if c.Storage.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.chunk_size must be positive, got %d", c.Storage.ChunkSize))
	}
	if c.Storage.ReplicationFactor < 1 {
		errs = append(errs, fmt.Errorf("storage.replication_factor must be at least 1, got %d", c.Storage.ReplicationFactor))
	}
	if len(c.Nodes) == 0 {
		errs = append(errs, errors.New("at least one node is required"))
	}

	seen := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("nodes[%d].id is required", i))
			continue
		}
		if n.Remote && n.Address == "" {
			errs = append(errs, fmt.Errorf("remote node %q needs an address", n.ID))
		}
		if seen[n.ID] {
			errs = append(errs, fmt.Errorf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
	}

	switch c.Registry.Probe {
	case ProbeStore, ProbeGRPC, ProbeHeartbeat:
	case ProbeEtcd:
		if len(c.Registry.EtcdEndpoints) == 0 {
			errs = append(errs, errors.New("registry.etcd_endpoints is required for the etcd probe"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown registry.probe %q", c.Registry.Probe))
	}

	switch c.Metadata.Type {
	case MetadataMemory, MetadataSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown metadata.type %q", c.Metadata.Type))
	}

	durations := map[string]string{
		"shutdown_timeout":           c.ShutdownTimeout,
		"registry.heartbeat_timeout": c.Registry.HeartbeatTimeout,
		"registry.probe_interval":    c.Registry.ProbeInterval,
		"registry.probe_timeout":     c.Registry.ProbeTimeout,
		"repair.interval":            c.Repair.Interval,
	}
	for key, value := range durations {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", key, value))
		}
	}

	return errors.Join(errs...)
}

// NodeDataDir resolves where node keeps its chunks.
func (c *Config) NodeDataDir(node NodeConfig) string {
	if node.DataDir != "" {
		return node.DataDir
	}
	return filepath.Join(c.DataDir, "nodes", node.ID)
}

func (c *Config) SQLitePath() string {
	if c.Metadata.SQLite.Path != "" {
		return c.Metadata.SQLite.Path
	}
	return filepath.Join(c.DataDir, "metadata.db")
}

func (c *Config) LogDir() string {
	if c.Log.Dir != "" {
		return c.Log.Dir
	}
	return filepath.Join(c.DataDir, "logs")
}

// Duration parses a value Validate already accepted.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
