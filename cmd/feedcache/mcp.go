package main

import (
	"fmt"

	"github.com/hyperengineering/feedcache"
	feedmcp "github.com/hyperengineering/feedcache/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for coding agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

This lets coding agents list, refresh and page through cached feeds.

Configuration example:

  {
    "mcpServers": {
      "feedcache": {
        "command": "feedcache",
        "args": ["mcp"],
        "env": {
          "FEEDCACHE_DB_PATH": "/path/to/cache.db",
          "FEEDCACHE_SOURCE_URL": "https://feeds.example.com"
        }
      }
    }
  }

Environment variables:
  FEEDCACHE_DB_PATH     Path to local SQLite database
  FEEDCACHE_LABEL       Default feed label (default: "default")
  FEEDCACHE_SOURCE_URL  Feed API base URL (optional, enables loading)
  FEEDCACHE_API_KEY     Feed API key
  FEEDCACHE_PAGE_SIZE   Items per page (default: 20)`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The client persists for the server lifetime
	client, err := feedcache.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	server := feedmcp.NewServer(client)
	return server.Run()
}
