// Package classify labels a whole photo as good or bad with an image classification
// model. It is a fast screening step that runs without localization or OCR.
package classify

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// Quality labels.
const (
	Good = "good"
	Bad  = "bad"
)

// DefaultThreshold is the top-1 confidence a photo needs to be labeled good.
const DefaultThreshold = 0.8

var (
	// ErrInvalidImage is returned for uploads that do not decode as an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrClassificationFailed wraps model failures.
	ErrClassificationFailed = errors.New("classification failed")
)

// Model returns per-class probabilities for a whole image.
type Model interface {
	Scores(ctx context.Context, img image.Image) ([]float32, error)
}

// Result is the classification of one photo.
type Result struct {
	Quality    string  `json:"quality"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
}

// Classifier turns model scores into a good or bad label.
type Classifier struct {
	model     Model
	threshold float64
}

// New creates a classifier. threshold must be in [0,1].
func New(model Model, threshold float64) (*Classifier, error) {
	if model == nil {
		return nil, errors.New("classification model is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0,1], got %v", threshold)
	}
	return &Classifier{model: model, threshold: threshold}, nil
}

// Threshold returns the configured confidence threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify labels img.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (Result, error) {
	scores, err := c.model.Scores(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}
	return Judge(scores, c.threshold), nil
}

// ClassifyBytes decodes data and labels it.
func (c *Classifier) ClassifyBytes(ctx context.Context, data []byte) (Result, error) {
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return c.Classify(ctx, img)
}

// Judge picks the top-1 class. The photo is good when that class's confidence reaches
// threshold, whichever class it is. Empty scores count as zero confidence.
func Judge(scores []float32, threshold float64) Result {
	res := Result{Quality: Bad, ClassID: -1}
	for i, s := range scores {
		if res.ClassID < 0 || float64(s) > res.Confidence {
			res.ClassID, res.Confidence = i, float64(s)
		}
	}
	if res.ClassID >= 0 && res.Confidence >= threshold {
		res.Quality = Good
	}
	return res
}
