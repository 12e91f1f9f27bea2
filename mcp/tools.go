package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/feedcache"
)

const defaultItemLimit = 20

func (s *Server) handleItems(ctx context.Context, args map[string]any) (*ToolResult, error) {
	label := stringArg(args, "label")
	limit := defaultItemLimit
	if v, ok := args["limit"].(float64); ok {
		if v < 0 {
			return &ToolResult{Content: "limit must be >= 0", IsError: true}, nil
		}
		limit = int(v)
	}

	feed := s.client.Feed(label)
	items, err := s.client.Items(ctx, feed.Label, limit)
	if err != nil {
		return errorResult("list items", err), nil
	}
	if len(items) == 0 {
		return &ToolResult{Content: fmt.Sprintf("No cached items for feed %q. Use feed_refresh to load the first page.", feed.Label)}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Feed %q: %d item(s)\n\n", feed.Label, len(items))
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, item.ID, item.Title)
		if item.Subtitle != "" {
			fmt.Fprintf(&sb, "   %s\n", item.Subtitle)
		}
		if item.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", truncate(item.Description, 160))
		}
	}
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handleRefresh(ctx context.Context, args map[string]any) (*ToolResult, error) {
	pager, err := s.pager(args)
	if err != nil {
		return errorResult("refresh", err), nil
	}
	res, err := pager.Refresh(ctx)
	if err != nil {
		return errorResult("refresh", err), nil
	}
	return &ToolResult{Content: formatResult("Refreshed", pager.Feed().Label, res)}, nil
}

func (s *Server) handleLoadMore(ctx context.Context, args map[string]any) (*ToolResult, error) {
	pager, err := s.pager(args)
	if err != nil {
		return errorResult("load more", err), nil
	}
	res, err := pager.LoadMore(ctx)
	if err != nil {
		return errorResult("load more", err), nil
	}
	return &ToolResult{Content: formatResult("Loaded more for", pager.Feed().Label, res)}, nil
}

// pager returns the pager for the label and filters in args.
func (s *Server) pager(args map[string]any) (*feedcache.Pager, error) {
	feed := s.client.Feed(stringArg(args, "label"))
	feed.ExcludeID = stringArg(args, "exclude_id")
	feed.Subtitle = stringArg(args, "subtitle")
	return s.client.Pager(feed)
}

func (s *Server) handleItemGet(ctx context.Context, args map[string]any) (*ToolResult, error) {
	id := stringArg(args, "id")
	if id == "" {
		return &ToolResult{Content: "id is required", IsError: true}, nil
	}

	item, err := s.client.Get(ctx, id)
	if err != nil {
		if errors.Is(err, feedcache.ErrNotFound) {
			return &ToolResult{Content: fmt.Sprintf("Item not found: %q", id), IsError: true}, nil
		}
		return errorResult("get item", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ID: %s\n", item.ID)
	fmt.Fprintf(&sb, "Feed: %s\n", item.Label)
	fmt.Fprintf(&sb, "Title: %s\n", item.Title)
	if item.Subtitle != "" {
		fmt.Fprintf(&sb, "Subtitle: %s\n", item.Subtitle)
	}
	if item.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", item.Description)
	}
	if item.SourceURL != "" {
		fmt.Fprintf(&sb, "Source: %s\n", item.SourceURL)
	}
	if item.ThumbURL != "" {
		fmt.Fprintf(&sb, "Thumbnail: %s\n", item.ThumbURL)
	}
	fmt.Fprintf(&sb, "Updated: %s\n", item.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handleClear(ctx context.Context, args map[string]any) (*ToolResult, error) {
	feed := s.client.Feed(stringArg(args, "label"))
	if err := s.client.Clear(ctx, feed.Label); err != nil {
		return errorResult("clear", err), nil
	}
	return &ToolResult{Content: fmt.Sprintf("Cleared feed %q", feed.Label)}, nil
}

func (s *Server) handleStats(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	stats, err := s.client.Stats(ctx)
	if err != nil {
		return errorResult("stats", err), nil
	}
	parts, err := s.client.Partitions(ctx)
	if err != nil {
		return errorResult("stats", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Items: %d\n", stats.ItemCount)
	fmt.Fprintf(&sb, "Feeds: %d\n", stats.PartitionCount)
	fmt.Fprintf(&sb, "Schema version: %s\n", stats.SchemaVersion)
	if !stats.LastWrite.IsZero() {
		fmt.Fprintf(&sb, "Last write: %s\n", stats.LastWrite.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	for _, p := range parts {
		fmt.Fprintf(&sb, "\n- %s: %d item(s), next page %s", p.Label, p.ItemCount, formatToken(p.NextPage, p.HasCursor))
	}
	return &ToolResult{Content: sb.String()}, nil
}

func formatResult(verb, label string, res feedcache.Result) string {
	msg := fmt.Sprintf("%s feed %q: %d item(s) fetched", verb, label, res.Fetched)
	if res.EndOfPagination {
		msg += ", end of pagination"
	}
	return msg
}

func formatToken(next *feedcache.PageToken, hasCursor bool) string {
	switch {
	case !hasCursor:
		return "none (never loaded)"
	case next == nil:
		return "none (exhausted)"
	default:
		return fmt.Sprintf("%d", *next)
	}
}

// errorResult turns a client error into a user-facing tool error.
func errorResult(op string, err error) *ToolResult {
	if errors.Is(err, feedcache.ErrOffline) {
		return &ToolResult{
			Content: fmt.Sprintf("%s unavailable: no source configured (offline mode)", op),
			IsError: true,
		}
	}

	var ve *feedcache.ValidationError
	if errors.As(err, &ve) {
		return &ToolResult{Content: fmt.Sprintf("invalid %s: %s", ve.Field, ve.Message), IsError: true}
	}

	msg := fmt.Sprintf("%s failed: %v", op, err)
	if feedcache.IsRetryable(err) {
		msg += "\nThe cached items were not changed; the call can be retried."
	}
	return &ToolResult{Content: msg, IsError: true}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// truncate shortens a string to maxLen characters, adding ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
