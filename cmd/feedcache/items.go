package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var itemsCmd = &cobra.Command{
	Use:   "items [label]",
	Short: "List cached items of a feed",
	Long: `List the cached items of a feed in display order.

Reads the local cache only.

Example:
  feedcache items
  feedcache items news/tech --limit 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runItems,
}

var itemsLimit int

func init() {
	itemsCmd.Flags().IntVarP(&itemsLimit, "limit", "n", 20, "Maximum items to list (0 for all)")
}

func runItems(cmd *cobra.Command, args []string) error {
	if itemsLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	label := client.Feed(labelArg(args)).Label
	items, err := client.Items(cmd.Context(), label, itemsLimit)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, items)
	}
	return outputItems(cmd.OutOrStdout(), label, items)
}
