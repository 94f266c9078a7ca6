// Package batch runs quality assessment over local files and formats the results.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

// Runner assesses one chunk of files.
type Runner interface {
	AssessBatchWithProgress(ctx context.Context, files []pipeline.File, progress pipeline.ProgressCallback) ([]pipeline.BatchItemResult, error)
}

// ProcessBatch discovers inputs under args and assesses them in chunks of
// config.ChunkSize. Results keep discovery order.
func ProcessBatch(ctx context.Context, runner Runner, args []string, config *Config) (*Result, error) {
	paths, err := discoverInputFiles(args, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover input files: %w", err)
	}
	if len(paths) == 0 {
		return nil, errors.New("no image or PDF files found")
	}

	files, size, err := readInputs(paths)
	if err != nil {
		return nil, err
	}

	chunks := chunk(files, config.ChunkSize)
	result := &Result{Inputs: paths, InputBytes: size}
	start := time.Now()
	for i, c := range chunks {
		slog.Debug("assessing chunk", "chunk", i+1, "of", len(chunks), "files", len(c))
		items, err := runner.AssessBatchWithProgress(ctx, c, progressFor(config, i, len(chunks)))
		if err != nil {
			return nil, fmt.Errorf("batch processing failed: %w", err)
		}
		result.Items = append(result.Items, items...)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// progressFor returns the progress reporter for the n-th of total chunks.
func progressFor(config *Config, n, total int) pipeline.ProgressCallback {
	if !config.ShowProgress || config.Quiet {
		return pipeline.NoOpProgressCallback{}
	}
	var w io.Writer = os.Stderr
	if config.ProgressWriter != nil {
		w = config.ProgressWriter
	}
	prefix := "Assessing: "
	if total > 1 {
		prefix = fmt.Sprintf("Assessing [%d/%d]: ", n+1, total)
	}
	cb := pipeline.NewConsoleProgressCallback(w, prefix)
	if config.ProgressInterval > 0 {
		cb = cb.WithUpdateInterval(config.ProgressInterval)
	}
	return cb
}
