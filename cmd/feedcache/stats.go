package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/feedcache"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long: `Display statistics about the local cache and the cursor of every feed.

Example:
  feedcache stats
  feedcache stats --health`,
	RunE: runStats,
}

var statsHealth bool

func init() {
	statsCmd.Flags().BoolVar(&statsHealth, "health", false, "Include health check")
}

// StatsResult for JSON output.
type StatsResult struct {
	Stats  *feedcache.StoreStats      `json:"stats"`
	Feeds  []feedcache.PartitionStats `json:"feeds"`
	Health *feedcache.HealthStatus    `json:"health,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	stats, err := client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	feeds, err := client.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	result := StatsResult{Stats: stats, Feeds: feeds}
	if statsHealth {
		hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		health := client.HealthCheck(hctx)
		result.Health = &health
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Local Cache Statistics")
	fmt.Fprintln(out, "----------------------")
	fmt.Fprintf(out, "Items:          %d\n", stats.ItemCount)
	fmt.Fprintf(out, "Feeds:          %d\n", stats.PartitionCount)
	fmt.Fprintf(out, "Schema version: %s\n", stats.SchemaVersion)
	if !stats.LastWrite.IsZero() {
		fmt.Fprintf(out, "Last write:     %s (%s ago)\n",
			stats.LastWrite.Format(time.RFC3339),
			time.Since(stats.LastWrite).Round(time.Second))
	} else {
		fmt.Fprintln(out, "Last write:     never")
	}

	if len(feeds) > 0 {
		fmt.Fprintln(out)
		outputFeeds(out, feeds)
	}

	if h := result.Health; h != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Health Check")
		fmt.Fprintln(out, "------------")

		status := "healthy"
		if !h.Healthy {
			status = "unhealthy"
		}
		fmt.Fprintf(out, "Status:           %s\n", status)
		fmt.Fprintf(out, "Store OK:         %v\n", h.StoreOK)
		fmt.Fprintf(out, "Source reachable: %v\n", h.SourceReachable)
		if h.Error != "" {
			fmt.Fprintf(out, "Error:            %s\n", scrubSensitiveData(h.Error))
		}
	}

	return nil
}
