package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperengineering/feedcache"
	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to stderr, ensuring no API keys are leaked.
func outputError(w io.Writer, err error) {
	msg := scrubSensitiveData(err.Error())
	if feedcache.IsRetryable(err) {
		msg += " (retryable: pass --retries to retry automatically)"
	}
	printError(w, "Error: %s", msg)
}

// scrubSensitiveData removes the configured API key from messages.
func scrubSensitiveData(msg string) string {
	if cfgAPIKey != "" && strings.Contains(msg, cfgAPIKey) {
		msg = strings.ReplaceAll(msg, cfgAPIKey, "[REDACTED]")
	}
	return msg
}

func outputLoadResult(w io.Writer, r LoadResult) error {
	took := time.Duration(r.DurationMs) * time.Millisecond
	printSuccess(w, "%s: %d items fetched (took %s)", r.Label, r.Fetched, took)
	if r.EndOfPagination {
		printInfo(w, "End of feed reached")
	}
	if r.Attempts > 1 {
		printMuted(w, "Succeeded after %d attempts", r.Attempts)
	}
	return nil
}

func outputItems(w io.Writer, label string, items []feedcache.Item) error {
	if len(items) == 0 {
		fmt.Fprintf(w, "No cached items for %s.\n", label)
		fmt.Fprintln(w, "(Tip: run 'feedcache refresh' to load the first page)")
		return nil
	}

	printLabel(w, fmt.Sprintf("%s (%d items)", label, len(items)))
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	for i, item := range items {
		fmt.Fprintf(w, "%3d. %s\n", i+1, item.Title)
		if item.Subtitle != "" {
			fmt.Fprintf(w, "     %s\n", item.Subtitle)
		}
		printMuted(w, "     id %s", item.ID)
	}
	return nil
}

// outputItem prints a single item in the configured format.
func outputItem(cmd *cobra.Command, item *feedcache.Item) error {
	if outputJSON {
		return outputAsJSON(cmd, item)
	}

	w := cmd.OutOrStdout()
	field := func(name, value string) {
		if value == "" {
			return
		}
		printLabel(w, fmt.Sprintf("%-12s ", name+":"))
		printValue(w, value)
	}
	field("ID", item.ID)
	field("Feed", item.Label)
	field("Title", item.Title)
	field("Subtitle", item.Subtitle)
	field("Description", item.Description)
	field("Source", item.SourceURL)
	field("Thumbnail", item.ThumbURL)
	field("Updated", item.UpdatedAt.Format(time.RFC3339))
	return nil
}

func outputFeeds(w io.Writer, feeds []feedcache.PartitionStats) {
	fmt.Fprintf(w, "%-32s %8s  %s\n", "FEED", "ITEMS", "NEXT PAGE")
	for _, f := range feeds {
		fmt.Fprintf(w, "%-32s %8d  %s\n", f.Label, f.ItemCount, formatToken(f.NextPage, f.HasCursor))
	}
}

func formatToken(next *feedcache.PageToken, hasCursor bool) string {
	switch {
	case !hasCursor:
		return "-"
	case next == nil:
		return "end"
	default:
		return fmt.Sprintf("%d", *next)
	}
}

// formatBytes formats bytes into human-readable format.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
