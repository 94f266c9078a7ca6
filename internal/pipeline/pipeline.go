// Package pipeline orchestrates document quality assessment: localization, binarization,
// binarization quality, OCR confidence and score fusion, for single images, multi-document
// images and batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/MeKo-Tech/scanqa/internal/binarize"
	"github.com/MeKo-Tech/scanqa/internal/history"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/pdf"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
)

// PageRenderer rasterizes PDF documents.
type PageRenderer interface {
	RenderPages(ctx context.Context, data []byte, dpi int) ([]image.Image, error)
}

// Recorder persists completed assessments.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
}

// Config holds orchestration settings.
type Config struct {
	MaxFiles         int  // batch size limit
	PDFDPI           int  // rasterization resolution for PDF pages
	Workers          int  // concurrent batch items
	InferenceWorkers int  // concurrent detection/binarization/OCR calls across all requests
	AsyncOCR         bool // bound each OCR attempt by the extractor timeout
	Weights          scoring.Weights
}

// DefaultConfig returns the default orchestration settings.
func DefaultConfig() Config {
	return Config{
		MaxFiles:         10,
		PDFDPI:           pdf.DefaultDPI,
		Workers:          4,
		InferenceWorkers: runtime.NumCPU(),
		AsyncOCR:         true,
		Weights:          scoring.DefaultWeights(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxFiles < 1 {
		return fmt.Errorf("max files must be at least 1, got %d", c.MaxFiles)
	}
	if c.PDFDPI < 1 {
		return fmt.Errorf("pdf dpi must be positive, got %d", c.PDFDPI)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.InferenceWorkers < 1 {
		return fmt.Errorf("inference workers must be at least 1, got %d", c.InferenceWorkers)
	}
	return c.Weights.Validate()
}

// Pipeline runs assessments. It is safe for concurrent use.
type Pipeline struct {
	localizer  *locator.Localizer
	normalizer *binarize.Normalizer
	assessor   *binarize.Assessor
	extractor  *ocrquality.Extractor
	renderer   PageRenderer
	recorder   Recorder
	inference  *semaphore.Weighted
	cfg        Config
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	p   Pipeline
	cfg Config
}

// NewBuilder starts a pipeline from its three required stages.
func NewBuilder(l *locator.Localizer, n *binarize.Normalizer, e *ocrquality.Extractor) *Builder {
	return &Builder{
		p:   Pipeline{localizer: l, normalizer: n, extractor: e},
		cfg: DefaultConfig(),
	}
}

// WithAssessor overrides the default binarization assessor.
func (b *Builder) WithAssessor(a *binarize.Assessor) *Builder {
	b.p.assessor = a
	return b
}

// WithRenderer enables PDF inputs.
func (b *Builder) WithRenderer(r PageRenderer) *Builder {
	b.p.renderer = r
	return b
}

// WithRecorder persists every record.
func (b *Builder) WithRecorder(r Recorder) *Builder {
	b.p.recorder = r
	return b
}

// WithConfig replaces the orchestration settings.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// Build validates and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.p.localizer == nil || b.p.normalizer == nil || b.p.extractor == nil {
		return nil, errors.New("pipeline requires a localizer, a normalizer and an extractor")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	p := b.p
	if p.assessor == nil {
		p.assessor = binarize.NewAssessor(binarize.DefaultLargeRegionFraction)
	}
	p.cfg = b.cfg
	p.inference = semaphore.NewWeighted(int64(b.cfg.InferenceWorkers))
	return &p, nil
}

// Config returns the active settings.
func (p *Pipeline) Config() Config { return p.cfg }

// AcceptsPDF reports whether a renderer is configured.
func (p *Pipeline) AcceptsPDF() bool { return p.renderer != nil }

// withInference runs fn while holding one inference slot.
func (p *Pipeline) withInference(ctx context.Context, stage string, fn func() error) error {
	if err := p.inference.Acquire(ctx, 1); err != nil {
		return err
	}
	inferenceInFlight.Inc()
	defer func() {
		inferenceInFlight.Dec()
		p.inference.Release(1)
	}()
	done := observeStage(stage)
	defer done()
	return fn()
}
