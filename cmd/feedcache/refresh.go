package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/feedcache"
	"github.com/hyperengineering/feedcache/internal/telemetry"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [label]",
	Short: "Reload a feed from its first page",
	Long: `Fetch the first page of a feed and replace its cached items.

A failed refresh leaves the cache untouched. With --retries, transient
fetch failures are retried with exponential backoff; storage failures
are never retried. --exclude-id and --subtitle filter the remote feed and
must be repeated on every "more" for the same label.

Example:
  feedcache refresh
  feedcache refresh news/tech --retries 3
  feedcache refresh related/42 --exclude-id 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(cmd, labelArg(args), "Refreshing", (*feedcache.Pager).Refresh)
	},
}

var (
	loadRetries   int
	loadBackoff   time.Duration
	loadExcludeID string
	loadSubtitle  string
)

func init() {
	for _, c := range []*cobra.Command{refreshCmd, moreCmd} {
		c.Flags().IntVar(&loadRetries, "retries", 0, "Retry transient fetch failures up to N times")
		c.Flags().DurationVar(&loadBackoff, "backoff", 500*time.Millisecond, "Initial retry backoff")
		c.Flags().StringVar(&loadExcludeID, "exclude-id", "", "Leave this item id out of fetched pages")
		c.Flags().StringVar(&loadSubtitle, "subtitle", "", "Only fetch items with this subtitle")
	}
}

// LoadResult for JSON output.
type LoadResult struct {
	Label           string `json:"label"`
	CycleID         string `json:"cycle_id"`
	Fetched         int    `json:"fetched"`
	EndOfPagination bool   `json:"end_of_pagination"`
	Attempts        int    `json:"attempts"`
	DurationMs      int64  `json:"duration_ms"`
}

type loadFunc func(p *feedcache.Pager, ctx context.Context) (feedcache.Result, error)

func runLoad(cmd *cobra.Command, label, verb string, load loadFunc) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	shutdown, err := telemetry.Setup(ctx, "feedcache-cli")
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	feed := client.Feed(label)
	feed.ExcludeID = loadExcludeID
	feed.Subtitle = loadSubtitle
	pager, err := client.Pager(feed)
	if err != nil {
		return err
	}
	label = feed.Label
	start := time.Now()

	var (
		res      feedcache.Result
		attempts int
	)
	err = runWithSpinner(cmd.ErrOrStderr(), fmt.Sprintf("%s %s", verb, label), func() error {
		return retryLoad(ctx, loadRetries, loadBackoff, func(ctx context.Context) error {
			attempts++
			var err error
			res, err = load(pager, ctx)
			return err
		})
	})
	if err != nil {
		return err
	}

	result := LoadResult{
		Label:           label,
		CycleID:         res.CycleID,
		Fetched:         res.Fetched,
		EndOfPagination: res.EndOfPagination,
		Attempts:        attempts,
		DurationMs:      time.Since(start).Milliseconds(),
	}
	if outputJSON {
		return outputAsJSON(cmd, result)
	}
	return outputLoadResult(out, result)
}

// retryLoad runs fn, retrying up to retries times while the failure is a
// retryable load error.
func retryLoad(ctx context.Context, retries int, base time.Duration, fn func(context.Context) error) error {
	if retries <= 0 {
		return fn(ctx)
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	b := retry.WithCappedDuration(30*time.Second, retry.NewExponential(base))
	b = retry.WithMaxRetries(uint64(retries), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && feedcache.IsRetryable(err) && ctx.Err() == nil {
			return retry.RetryableError(err)
		}
		return err
	})
}
