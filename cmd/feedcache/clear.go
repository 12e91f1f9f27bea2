package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear [label]",
	Short: "Delete the cached items and cursor of a feed",
	Long: `Delete every cached item of a feed together with its cursor.

The next refresh starts the feed over from the first page. Order
positions are never reused, so items loaded afterwards sort after
anything held by other readers.

Example:
  feedcache clear news/tech --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClear,
}

var clearForce bool

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Confirm deletion")
}

func runClear(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	label := client.Feed(labelArg(args)).Label
	if !clearForce {
		return fmt.Errorf("refusing to clear %q without --force", label)
	}

	if err := client.Clear(cmd.Context(), label); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]any{"label": label, "cleared": true})
	}
	printSuccess(cmd.OutOrStdout(), "Cleared feed %s", label)
	return nil
}
