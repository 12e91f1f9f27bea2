package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/feedcache"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with feed cache tools.
type Server struct {
	client    *feedcache.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with the feed tools registered.
func NewServer(client *feedcache.Client) *Server {
	s := &Server{client: client}

	s.mcpServer = server.NewMCPServer(
		"feedcache",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "feed_items", Description: "List cached items of a feed in display order"},
		{Name: "feed_refresh", Description: "Reload a feed from its first page, replacing the cached items"},
		{Name: "feed_load_more", Description: "Append the next page of a feed to the cache"},
		{Name: "feed_item_get", Description: "Get a cached item by id"},
		{Name: "feed_clear", Description: "Delete the cached items and cursor of a feed"},
		{Name: "feed_stats", Description: "Show cache statistics and per-feed cursors"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "feed_items":
		return s.handleItems(ctx, args)
	case "feed_refresh":
		return s.handleRefresh(ctx, args)
	case "feed_load_more":
		return s.handleLoadMore(ctx, args)
	case "feed_item_get":
		return s.handleItemGet(ctx, args)
	case "feed_clear":
		return s.handleClear(ctx, args)
	case "feed_stats":
		return s.handleStats(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	labelOpt := mcp.WithString("label",
		mcp.Description("Feed label (default: resolved via env/config/default)"),
	)
	excludeOpt := mcp.WithString("exclude_id",
		mcp.Description("Leave this item id out of fetched pages. Repeat it on every load of the feed."),
	)
	subtitleOpt := mcp.WithString("subtitle",
		mcp.Description("Only fetch items with this subtitle. Repeat it on every load of the feed."),
	)

	s.mcpServer.AddTool(mcp.NewTool("feed_items",
		mcp.WithDescription("List cached items of a feed in display order. Reads the local cache only; use feed_refresh or feed_load_more to fetch."),
		labelOpt,
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of items to return (default: 20, 0 for all)"),
		),
	), s.wrap(s.handleItems))

	s.mcpServer.AddTool(mcp.NewTool("feed_refresh",
		mcp.WithDescription("Reload a feed from its first page. On success the cached items of the feed are replaced; on failure they are left untouched."),
		labelOpt,
		excludeOpt,
		subtitleOpt,
	), s.wrap(s.handleRefresh))

	s.mcpServer.AddTool(mcp.NewTool("feed_load_more",
		mcp.WithDescription("Fetch the next page of a feed and append it to the cache. Reports end of pagination when the feed is exhausted."),
		labelOpt,
		excludeOpt,
		subtitleOpt,
	), s.wrap(s.handleLoadMore))

	s.mcpServer.AddTool(mcp.NewTool("feed_item_get",
		mcp.WithDescription("Get a cached item by id."),
		mcp.WithString("id",
			mcp.Description("Item id"),
			mcp.Required(),
		),
	), s.wrap(s.handleItemGet))

	s.mcpServer.AddTool(mcp.NewTool("feed_clear",
		mcp.WithDescription("Delete the cached items and cursor of a feed."),
		labelOpt,
	), s.wrap(s.handleClear))

	s.mcpServer.AddTool(mcp.NewTool("feed_stats",
		mcp.WithDescription("Show cache statistics and the cursor of every cached feed."),
	), s.wrap(s.handleStats))
}

type toolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// wrap adapts an internal handler to the mcp-go handler signature.
func (s *Server) wrap(h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}
