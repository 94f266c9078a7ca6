package cmd

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanqa/internal/batch"
)

var outputFormats = []string{batch.FormatText, batch.FormatJSON, batch.FormatCSV}

// assessCmd runs quality assessment over local files.
var assessCmd = &cobra.Command{
	Use:   "assess [files or directories...]",
	Short: "Assess the quality of scanned images and PDFs",
	Long: `Assess every document found in the given images and PDFs. Directories are
scanned for supported files (JPEG, PNG, BMP, TIFF, WebP, PDF). PDF pages are
assessed individually. Files are sent to the pipeline in chunks of
batch.max_files.

Examples:
  scanqa assess scan.jpg
  scanqa assess contract.pdf --format json
  scanqa assess scans/ --recursive --include "*.png" --format csv --output report.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssess,
}

func init() {
	rootCmd.AddCommand(assessCmd)
	assessCmd.Flags().StringP("format", "f", batch.FormatText, "output format (text, json, csv)")
	assessCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
	assessCmd.Flags().BoolP("recursive", "r", false, "scan directories recursively")
	assessCmd.Flags().StringSlice("include", nil, "glob patterns of file names to include")
	assessCmd.Flags().StringSlice("exclude", nil, "glob patterns of file names to exclude")
	assessCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	assessCmd.Flags().BoolP("quiet", "q", false, "suppress progress and status messages")
	assessCmd.Flags().Bool("stats", false, "print processing statistics")
}

// assessConfigFromFlags reads the batch settings from the command flags.
func assessConfigFromFlags(cmd *cobra.Command, chunkSize int) (*batch.Config, error) {
	bc := &batch.Config{ChunkSize: chunkSize, ProgressWriter: cmd.ErrOrStderr()}
	bc.Format, _ = cmd.Flags().GetString("format")
	if !slices.Contains(outputFormats, bc.Format) {
		return nil, fmt.Errorf("unsupported format %q (want one of %v)", bc.Format, outputFormats)
	}
	bc.OutputFile, _ = cmd.Flags().GetString("output")
	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	return bc, nil
}

func runAssess(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	bc, err := assessConfigFromFlags(cmd, cfg.Batch.MaxFiles)
	if err != nil {
		return err
	}

	assembly, err := batch.BuildPipeline(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer func() {
		if err := assembly.Close(); err != nil {
			slog.Error("Pipeline cleanup error", "error", err)
		}
	}()

	result, err := batch.ProcessBatch(cmd.Context(), assembly.Pipeline, args, bc)
	if err != nil {
		return err
	}
	if err := result.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats && !bc.Quiet {
		result.PrintStats(cmd.ErrOrStderr())
	}
	return nil
}
