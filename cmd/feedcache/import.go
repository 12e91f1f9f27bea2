package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a feed export",
	Long: `Load a JSON export produced by 'feedcache export' into the cache.

By default the items are appended to the feed named in the file. With
--replace the feed's cached items and cursor are replaced, as a refresh
would. Use "-" to read from stdin.

Examples:
  feedcache import news.json
  feedcache import news.json --replace`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importReplace bool

func init() {
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Replace the feed instead of appending")
}

func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader
	if args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Import(cmd.Context(), r, importReplace)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	mode := "Appended"
	if importReplace {
		mode = "Replaced"
	}
	printSuccess(out, "%s feed %s: %d of %d items imported", mode, result.Label, result.Imported, result.Total)
	if result.Skipped > 0 {
		printWarning(out, "Skipped %d items", result.Skipped)
		for _, e := range result.Errors {
			printMuted(out, "  %s", e)
		}
	}
	return nil
}
