package main

import (
	"fmt"

	"github.com/hyperengineering/feedcache"
	"github.com/spf13/cobra"
)

var (
	cfgDBPath    string
	cfgSourceURL string
	cfgAPIKey    string
	cfgLabel     string
	cfgPageSize  int
	cfgDebug     bool
	outputJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "feedcache",
	Short: "Feedcache - paginated feed cache CLI",
	Long: `Feedcache keeps a local SQLite cache of paginated remote feeds.

It refreshes feeds from their first page, appends further pages on demand,
and serves the cached items offline, over HTTP or to coding agents via MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db-path", "", "Path to local cache database (default: ~/.feedcache/cache.db)")
	rootCmd.PersistentFlags().StringVar(&cfgSourceURL, "source-url", "", "Base URL of the remote feed API")
	rootCmd.PersistentFlags().StringVar(&cfgAPIKey, "api-key", "", "API key for the feed API")
	rootCmd.PersistentFlags().StringVarP(&cfgLabel, "label", "l", "", "Default feed label (default: $FEEDCACHE_LABEL or \"default\")")
	rootCmd.PersistentFlags().IntVar(&cfgPageSize, "page-size", 0, "Items per page, 1-100 (default: 20)")
	rootCmd.PersistentFlags().BoolVar(&cfgDebug, "debug", false, "Log feed API traffic and load cycles to stderr")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(moreCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// loadConfig layers flags over FEEDCACHE_* environment variables over defaults.
func loadConfig() (feedcache.Config, error) {
	cfg, err := feedcache.ConfigFromEnv()
	if err != nil {
		return feedcache.Config{}, err
	}

	if cfgDBPath != "" {
		cfg.LocalPath = cfgDBPath
	}
	if cfgSourceURL != "" {
		cfg.SourceURL = cfgSourceURL
	}
	if cfgAPIKey != "" {
		cfg.APIKey = cfgAPIKey
	}
	if cfgLabel != "" {
		cfg.Label = cfgLabel
	}
	if cfgPageSize != 0 {
		cfg.PageSize = cfgPageSize
	}
	if cfgDebug {
		cfg.Debug = true
	}

	return cfg.WithDefaults(), nil
}

// newClient opens a client for a one-shot command.
func newClient() (*feedcache.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// The background refresh loop belongs to long-running commands.
	cfg.AutoRefresh = false
	client, err := feedcache.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}

// labelArg returns the optional positional label, or "" for the default.
func labelArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
