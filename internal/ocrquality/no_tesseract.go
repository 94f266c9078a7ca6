//go:build !tesseract

package ocrquality

import (
	"context"
	"image"
)

// TesseractEngine is unavailable in builds without the tesseract tag.
type TesseractEngine struct{}

// NewTesseractEngine returns ErrNoBackend unless built with -tags=tesseract.
func NewTesseractEngine(_ TesseractConfig) (*TesseractEngine, error) {
	return nil, ErrNoBackend
}

// Recognize implements Engine.
func (t *TesseractEngine) Recognize(_ context.Context, _ image.Image, _ string) (*Recognition, error) {
	return nil, ErrNoBackend
}

// Close is a no-op.
func (t *TesseractEngine) Close() error { return nil }
