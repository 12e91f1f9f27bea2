package main

import (
	"errors"
	"fmt"

	"github.com/hyperengineering/feedcache"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a cached item",
	Long: `Show a cached item by id.

With --watch, keep printing the item each time its cached value changes
until interrupted.

Example:
  feedcache get 42
  feedcache get 42 --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var getWatch bool

func init() {
	getCmd.Flags().BoolVarP(&getWatch, "watch", "w", false, "Stream changes to the item")
}

func runGet(cmd *cobra.Command, args []string) error {
	id := args[0]

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if getWatch {
		return watchItem(cmd, client, id)
	}

	item, err := client.Get(cmd.Context(), id)
	if errors.Is(err, feedcache.ErrNotFound) {
		return fmt.Errorf("item %q not found in cache", id)
	}
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	return outputItem(cmd, item)
}

func watchItem(cmd *cobra.Command, client *feedcache.Client, id string) error {
	out := cmd.OutOrStdout()
	if !outputJSON {
		printMuted(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)", id)
	}

	for item := range client.WatchItem(cmd.Context(), id) {
		if item == nil {
			if !outputJSON {
				printWarning(out, "%s is not cached", id)
			}
			continue
		}
		if err := outputItem(cmd, item); err != nil {
			return err
		}
		if !outputJSON {
			fmt.Fprintln(out)
		}
	}
	return nil
}
