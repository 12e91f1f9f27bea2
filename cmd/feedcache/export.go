package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [label]",
	Short: "Export a feed to JSON",
	Long: `Export the cached items and cursor of a feed as JSON.

Items are streamed in display order. Without --output the export is
written to stdout.

Examples:
  feedcache export news -o news.json
  feedcache export > default.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var exportOutputPath string

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (default: stdout)")
}

// ExportResult for JSON output.
type ExportResult struct {
	Label    string `json:"label"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Duration string `json:"duration"`
}

func runExport(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	label := client.Feed(labelArg(args)).Label

	if exportOutputPath == "" || exportOutputPath == "-" {
		return client.Export(ctx, label, cmd.OutOrStdout())
	}

	start := time.Now()
	f, err := os.Create(exportOutputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	if err := client.Export(ctx, label, f); err != nil {
		_ = f.Close()
		_ = os.Remove(exportOutputPath)
		return fmt.Errorf("export failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	var size int64
	if fi, statErr := os.Stat(exportOutputPath); statErr == nil {
		size = fi.Size()
	}

	result := ExportResult{
		Label:    label,
		FilePath: exportOutputPath,
		FileSize: size,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Exported feed %s to %s", label, exportOutputPath)
	fmt.Fprintf(out, "  Size: %s\n", formatBytes(size))
	fmt.Fprintf(out, "  Took: %s\n", result.Duration)
	return nil
}

