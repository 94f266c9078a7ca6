package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/scanqa/internal/artifact"
	"github.com/MeKo-Tech/scanqa/internal/binarize"
	"github.com/MeKo-Tech/scanqa/internal/classify"
	"github.com/MeKo-Tech/scanqa/internal/config"
	"github.com/MeKo-Tech/scanqa/internal/history"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/pdf"
	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

// Assembly is a wired pipeline together with the resources it owns.
type Assembly struct {
	Pipeline  *pipeline.Pipeline
	Artifacts artifact.Store
	History   *history.Store // nil when history is disabled

	// Classifier is the optional whole-image screener; nil unless enabled.
	Classifier *classify.Classifier

	closers []io.Closer
}

// Close releases the models, engine, store and history database.
func (a *Assembly) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildPipeline creates the ONNX detector and OCR engine named by cfg and wires them into
// a pipeline.
func BuildPipeline(ctx context.Context, cfg *config.Config) (*Assembly, error) {
	if cfg.OCR.Engine != config.EngineTesseract {
		return nil, fmt.Errorf("unsupported OCR engine %q", cfg.OCR.Engine)
	}

	det, err := locator.NewONNXDetector(cfg.ToDetectorConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create document detector: %w", err)
	}
	engine, err := ocrquality.NewTesseractEngine(cfg.ToTesseractConfig())
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	a, err := Assemble(ctx, cfg, det, engine)
	if err != nil {
		_ = engine.Close()
		_ = det.Close()
		return nil, err
	}
	a.closers = append([]io.Closer{det, engine}, a.closers...)

	if cfg.Classifier.Enabled {
		if err := a.attachClassifier(cfg); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Assembly) attachClassifier(cfg *config.Config) error {
	model, err := classify.NewONNXModel(cfg.ToClassifierConfig())
	if err != nil {
		return fmt.Errorf("failed to create quality classifier: %w", err)
	}
	c, err := classify.New(model, cfg.Classifier.Threshold)
	if err != nil {
		_ = model.Close()
		return err
	}
	a.Classifier = c
	a.closers = append(a.closers, model)
	return nil
}

// Assemble builds every stage around an existing detector and engine. The caller keeps
// ownership of det and engine.
func Assemble(ctx context.Context, cfg *config.Config, det locator.Detector, engine ocrquality.Engine) (*Assembly, error) {
	a := &Assembly{}

	store, err := artifact.New(ctx, cfg.ToArtifactConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}
	a.Artifacts = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	normalizer, err := binarize.NewNormalizer(cfg.ToNormalizerConfig(), store)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	extractor, err := ocrquality.NewExtractor(engine, cfg.ToExtractorConfig())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create OCR extractor: %w", err)
	}
	renderer, err := pdf.NewRenderer("")
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	b := pipeline.NewBuilder(locator.NewLocalizer(det, store, cfg.Locator.InputSize), normalizer, extractor).
		WithAssessor(binarize.NewAssessor(cfg.Binarize.LargeRegionFraction)).
		WithRenderer(renderer).
		WithConfig(cfg.ToPipelineConfig())

	if cfg.History.Enabled {
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.History = h
		a.closers = append(a.closers, h)
		b = b.WithRecorder(h)
	}

	p, err := b.Build()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	a.Pipeline = p

	slog.Debug("pipeline assembled",
		"storage", cfg.Storage.Backend,
		"history", cfg.History.Enabled,
		"max_files", cfg.Batch.MaxFiles,
		"inference_workers", cfg.Pipeline.InferenceWorkers)
	return a, nil
}
