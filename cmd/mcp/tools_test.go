package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"

	grpccomm "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication/grpc"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service/fileservicetest"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server/simple"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *ServerRegistry {
	t.Helper()
	ls := log_service.NoOpLogService{}
	env := fileservicetest.New(t, 4, nil, "node1", "node2")

	serverComm := grpccomm.NewGRPCCommunicator("127.0.0.1:0", ls)
	srv := simple.NewSimpleServer(serverComm, env.Files, env.Cluster.Registry, ls)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	clientComm := grpccomm.NewGRPCCommunicator("", ls)
	t.Cleanup(func() { _ = clientComm.Stop() })

	return &ServerRegistry{
		Servers:       map[string]string{"local": serverComm.Address()},
		DefaultServer: "local",
		Communicator:  clientComm,
	}
}

func call(t *testing.T, r *ServerRegistry, h toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := r.wrap(h)(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools_UploadDownload(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name     string
		encoding string
		content  string
		want     string
	}{
		{name: "text", encoding: "text", content: "hello from an agent", want: "hello from an agent"},
		{name: "base64", encoding: "base64", content: base64.StdEncoding.EncodeToString([]byte{0, 1, 2, 3, 4, 5}), want: base64.StdEncoding.EncodeToString([]byte{0, 1, 2, 3, 4, 5})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, r, handleUpload, map[string]any{
				"filename": "f",
				"content":  tt.content,
				"encoding": tt.encoding,
				"replicas": float64(2),
			})
			require.False(t, res.IsError, text(t, res))

			var up file_service.UploadResult
			require.NoError(t, json.Unmarshal([]byte(text(t, res)), &up))
			assert.Equal(t, 2, up.AchievedReplication)

			res = call(t, r, handleDownload, map[string]any{"file_id": up.FileID, "encoding": tt.encoding})
			require.False(t, res.IsError, text(t, res))
			assert.Equal(t, tt.want, text(t, res))
		})
	}
}

func TestTools_Errors(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name string
		h    toolHandler
		args map[string]any
	}{
		{name: "missing filename", h: handleUpload, args: map[string]any{"content": "x"}},
		{name: "bad base64", h: handleUpload, args: map[string]any{"filename": "f", "content": "%%%", "encoding": "base64"}},
		{name: "unknown file", h: handleDownload, args: map[string]any{"file_id": "nope"}},
		{name: "unknown server", h: handleDownload, args: map[string]any{"file_id": "x", "server": "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, r, tt.h, tt.args)
			assert.True(t, res.IsError)
		})
	}
}

func TestLoadConfig_WritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mcp.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.DefaultServer)

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestListServers(t *testing.T) {
	out := listServers(&ServerRegistry{
		Servers:       map[string]string{"b": "host-b:1", "a": "host-a:1"},
		DefaultServer: "a",
	})
	assert.Equal(t, "Available servers:\n- a: host-a:1\n- b: host-b:1\nDefault server: a\n", out)
}
