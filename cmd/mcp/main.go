package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	grpccomm "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication/grpc"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"
)

type MCPConfig struct {
	Servers []struct {
		ID      string `yaml:"id"`
		Address string `yaml:"address"`
	} `yaml:"servers"`
	DefaultServer string `yaml:"default_server"`
}

// LoadConfig reads path, writing a single-server default there first when
// it does not exist.
func LoadConfig(path string) (*MCPConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &MCPConfig{DefaultServer: "local"}
		cfg.Servers = append(cfg.Servers, struct {
			ID      string `yaml:"id"`
			Address string `yaml:"address"`
		}{ID: "local", Address: "127.0.0.1:7400"})

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &MCPConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "mcp.yaml", "MCP server config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	comm := grpccomm.NewGRPCCommunicator("", log_service.NoOpLogService{})
	defer comm.Stop()

	registry := &ServerRegistry{
		Servers:       make(map[string]string, len(cfg.Servers)),
		DefaultServer: cfg.DefaultServer,
		Communicator:  comm,
	}
	for _, s := range cfg.Servers {
		registry.Servers[s.ID] = s.Address
	}

	s := server.NewMCPServer(
		"sdfbs",
		"0.1.0",
		server.WithToolCapabilities(false),
	)
	addTools(s, registry)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}
