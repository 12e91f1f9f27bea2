package main

import (
	"github.com/hyperengineering/feedcache"
	"github.com/spf13/cobra"
)

var moreCmd = &cobra.Command{
	Use:   "more [label]",
	Short: "Append the next page of a feed",
	Long: `Fetch the page after the cached cursor and append it to the feed.

Reports end of pagination once the remote feed is exhausted or when the
feed has never been refreshed.

Example:
  feedcache more
  feedcache more news/tech --retries 3
  feedcache more related/42 --exclude-id 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(cmd, labelArg(args), "Loading more of", (*feedcache.Pager).LoadMore)
	},
}
