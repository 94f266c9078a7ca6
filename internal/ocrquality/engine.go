package ocrquality

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrTransientMismatch marks a structurally incomplete recognition result. It is retried.
	ErrTransientMismatch = errors.New("ocr result shape mismatch")
	// ErrOCRFailed wraps non-retryable recognition failures.
	ErrOCRFailed = errors.New("ocr failed")
	// ErrOCRTimeout is returned when every attempt exceeded its time budget.
	ErrOCRTimeout = errors.New("ocr timed out")
	// ErrNoBackend is returned when no recognition backend is compiled in.
	ErrNoBackend = errors.New("ocrquality: no recognition backend linked; build with -tags=tesseract")
)

// Engine recognizes text lines in an image. Implementations must be safe for concurrent use.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, lang string) (*Recognition, error)
}

// Line is one recognized text line.
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // in [0,1]
}

// Recognition is the raw engine output: one region per recognized line.
type Recognition struct {
	Regions []image.Rectangle
	Lines   []Line
}

// validate checks that every line has a region and a confidence in [0,1].
func validate(r *Recognition) error {
	if r == nil {
		return fmt.Errorf("%w: empty result", ErrTransientMismatch)
	}
	if len(r.Regions) != len(r.Lines) {
		return fmt.Errorf("%w: %d regions for %d lines", ErrTransientMismatch, len(r.Regions), len(r.Lines))
	}
	for i, reg := range r.Regions {
		if reg.Empty() {
			return fmt.Errorf("%w: line %d has an empty region", ErrTransientMismatch, i)
		}
	}
	for i, l := range r.Lines {
		if math.IsNaN(l.Confidence) || l.Confidence < 0 || l.Confidence > 1 {
			return fmt.Errorf("%w: line %d confidence %v outside [0,1]", ErrTransientMismatch, i, l.Confidence)
		}
	}
	return nil
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, img image.Image, lang string) (*Recognition, error)

// Recognize implements Engine.
func (f EngineFunc) Recognize(ctx context.Context, img image.Image, lang string) (*Recognition, error) {
	return f(ctx, img, lang)
}
