//go:build tesseract

package ocrquality

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/MeKo-Tech/scanqa/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text lines with libtesseract. The underlying client is not
// goroutine-safe, so calls are serialized.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractEngine creates a tesseract-backed Engine.
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("tesseract: set tessdata prefix: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tesseract: set page segmentation mode: %w", err)
	}
	return &TesseractEngine{client: client}, nil
}

// Recognize implements Engine.
func (t *TesseractEngine) Recognize(ctx context.Context, img image.Image, lang string) (*Recognition, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := t.client.SetLanguage(TesseractLanguage(lang)...); err != nil {
		return nil, fmt.Errorf("tesseract: set language: %w", err)
	}
	if err := t.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("tesseract: set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract: recognize: %w", err)
	}

	rec := &Recognition{
		Regions: make([]image.Rectangle, 0, len(boxes)),
		Lines:   make([]Line, 0, len(boxes)),
	}
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		rec.Regions = append(rec.Regions, b.Box)
		rec.Lines = append(rec.Lines, Line{Text: text, Confidence: min(max(b.Confidence/100, 0), 1)})
	}
	return rec, nil
}

// Close releases the tesseract client.
func (t *TesseractEngine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
