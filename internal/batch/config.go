package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds all configuration for a local batch run.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// ChunkSize is the number of files sent to the pipeline at once; it must not exceed
	// the pipeline's MaxFiles.
	ChunkSize int

	// Output settings
	Format     string
	OutputFile string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer
}

// Result holds the result of a batch run.
type Result struct {
	Items      []pipeline.BatchItemResult
	Inputs     []string
	InputBytes uint64
	Duration   time.Duration
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, err := fmt.Fprint(w, output)
		return err
	}
	if err := writeFile(outputFile, []byte(output)); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
	}
	return nil
}

// Stats summarizes a batch run.
type Stats struct {
	Inputs       int            `json:"inputs"`
	Items        int            `json:"items"`
	Documents    int            `json:"documents"`
	Empty        int            `json:"empty"`
	Failed       int            `json:"failed"`
	Categories   map[string]int `json:"categories"`
	AverageScore float64        `json:"average_score"`
	InputBytes   uint64         `json:"input_bytes"`
	Duration     time.Duration  `json:"duration_ns"`
}

// Stats computes the run summary.
func (r *Result) Stats() Stats {
	s := Stats{
		Inputs:     len(r.Inputs),
		Items:      len(r.Items),
		Categories: map[string]int{},
		InputBytes: r.InputBytes,
		Duration:   r.Duration,
	}
	var total float64
	for _, item := range r.Items {
		switch {
		case !item.OK():
			s.Failed++
		case len(item.Records) == 0:
			s.Empty++
		}
		for _, rec := range item.Records {
			s.Documents++
			s.Categories[string(rec.Category)]++
			total += rec.Score
		}
	}
	if s.Documents > 0 {
		s.AverageScore = total / float64(s.Documents)
	}
	return s
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Inputs: %d (%s)\n", stats.Inputs, humanize.Bytes(stats.InputBytes))
	_, _ = fmt.Fprintf(w, "  Items: %d\n", stats.Items)
	_, _ = fmt.Fprintf(w, "  Documents: %d\n", stats.Documents)
	_, _ = fmt.Fprintf(w, "  Without document: %d\n", stats.Empty)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	for _, c := range categoryOrder {
		if n := stats.Categories[c]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s: %d\n", c, n)
		}
	}
	if stats.Documents > 0 {
		_, _ = fmt.Fprintf(w, "  Average score: %.2f\n", stats.AverageScore)
	}
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.Duration.Round(time.Millisecond))
	if stats.Items > 0 && stats.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f items/sec\n", float64(stats.Items)/stats.Duration.Seconds())
	}
}
