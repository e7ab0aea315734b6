package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sdfbslib "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/clients/library"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type ServerRegistry struct {
	Servers       map[string]string
	DefaultServer string
	Communicator  communication.Communicator
}

// client resolves the optional "server" argument to a client.
func (r *ServerRegistry) client(request mcp.CallToolRequest) (*sdfbslib.Client, error) {
	serverID := request.GetString("server", "")
	if serverID == "" {
		serverID = r.DefaultServer
	}
	addr, ok := r.Servers[serverID]
	if !ok {
		return nil, fmt.Errorf("server %s not found", serverID)
	}
	c := sdfbslib.NewClient(addr, r.Communicator)
	c.From = "mcp-server"
	return c, nil
}

type toolHandler func(ctx context.Context, c *sdfbslib.Client, request mcp.CallToolRequest) (any, error)

// wrap turns a typed handler into a tool handler. Results are returned as
// indented JSON and failures as tool errors rather than protocol errors.
func (r *ServerRegistry) wrap(h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := r.client(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := h(ctx, c, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if text, ok := result.(string); ok {
			return mcp.NewToolResultText(text), nil
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func serverArg() mcp.ToolOption {
	return mcp.WithString("server", mcp.Description("Server id from the MCP config; the default server when empty"))
}

func fileIDArg() mcp.ToolOption {
	return mcp.WithString("file_id", mcp.Required(), mcp.Description("File id returned by upload_file"))
}

func addTools(s *server.MCPServer, registry *ServerRegistry) {
	s.AddTool(mcp.NewTool("list_servers",
		mcp.WithDescription("List all configured storage servers"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(listServers(registry)), nil
	})

	s.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Split content into chunks and store each chunk on several nodes"),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name to store the file under")),
		mcp.WithString("content", mcp.Required(), mcp.Description("File content")),
		mcp.WithString("encoding", mcp.Description("text (default) or base64")),
		mcp.WithNumber("replicas", mcp.Description("Replicas per chunk, default 2")),
		serverArg(),
	), registry.wrap(handleUpload))

	s.AddTool(mcp.NewTool("download_file",
		mcp.WithDescription("Reassemble a file from its surviving replicas"),
		fileIDArg(),
		mcp.WithString("encoding", mcp.Description("text (default) or base64")),
		serverArg(),
	), registry.wrap(handleDownload))

	s.AddTool(mcp.NewTool("file_status",
		mcp.WithDescription("Show per-chunk replica health of a file"),
		fileIDArg(),
		serverArg(),
	), registry.wrap(func(ctx context.Context, c *sdfbslib.Client, request mcp.CallToolRequest) (any, error) {
		fileID, err := request.RequireString("file_id")
		if err != nil {
			return nil, err
		}
		return c.Status(ctx, fileID)
	}))

	s.AddTool(mcp.NewTool("repair_file",
		mcp.WithDescription("Copy surviving replicas until every chunk of a file meets its replication factor"),
		fileIDArg(),
		serverArg(),
	), registry.wrap(func(ctx context.Context, c *sdfbslib.Client, request mcp.CallToolRequest) (any, error) {
		fileID, err := request.RequireString("file_id")
		if err != nil {
			return nil, err
		}
		return c.Repair(ctx, fileID)
	}))

	s.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List stored files with how many chunks are still available"),
		serverArg(),
	), registry.wrap(func(ctx context.Context, c *sdfbslib.Client, _ mcp.CallToolRequest) (any, error) {
		return c.ListFiles(ctx)
	}))

	s.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List storage nodes with their health state and load"),
		serverArg(),
	), registry.wrap(func(ctx context.Context, c *sdfbslib.Client, _ mcp.CallToolRequest) (any, error) {
		return c.ListNodes(ctx)
	}))

	s.AddTool(mcp.NewTool("mark_node_failed",
		mcp.WithDescription("Mark a storage node failed so no new replicas land on it"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
		serverArg(),
	), registry.wrap(func(ctx context.Context, c *sdfbslib.Client, request mcp.CallToolRequest) (any, error) {
		nodeID, err := request.RequireString("node_id")
		if err != nil {
			return nil, err
		}
		if err := c.MarkNodeFailed(ctx, nodeID); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Node %s marked failed", nodeID), nil
	}))
}

func listServers(registry *ServerRegistry) string {
	ids := make([]string, 0, len(registry.Servers))
	for id := range registry.Servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Available servers:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %s\n", id, registry.Servers[id])
	}
	fmt.Fprintf(&b, "Default server: %s\n", registry.DefaultServer)
	return b.String()
}

func handleUpload(ctx context.Context, c *sdfbslib.Client, request mcp.CallToolRequest) (any, error) {
	filename, err := request.RequireString("filename")
	if err != nil {
		return nil, err
	}
	content, err := request.RequireString("content")
	if err != nil {
		return nil, err
	}

	data := []byte(content)
	if request.GetString("encoding", "text") == "base64" {
		if data, err = base64.StdEncoding.DecodeString(content); err != nil {
			return nil, fmt.Errorf("content is not valid base64: %w", err)
		}
	}
	return c.Upload(ctx, filename, data, request.GetInt("replicas", 2))
}

func handleDownload(ctx context.Context, c *sdfbslib.Client, request mcp.CallToolRequest) (any, error) {
	fileID, err := request.RequireString("file_id")
	if err != nil {
		return nil, err
	}
	data, err := c.Download(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if request.GetString("encoding", "text") == "base64" {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return string(data), nil
}
