package ocrquality

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
)

// Config controls retry and timeout behaviour.
type Config struct {
	Language   string
	MaxRetries int           // total attempts
	RetryDelay time.Duration // pause between attempts
	Timeout    time.Duration // per-attempt budget of ExtractAsync
	MinSide    int           // images narrower or shorter than this are upscaled 2x
}

// DefaultConfig returns three attempts one second apart with a 120s attempt timeout.
func DefaultConfig() Config {
	return Config{
		Language:   "ru",
		MaxRetries: 3,
		RetryDelay: time.Second,
		Timeout:    120 * time.Second,
		MinSide:    50,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %v", c.RetryDelay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Extractor runs an Engine with result validation, retries and optional per-attempt timeouts.
type Extractor struct {
	engine Engine
	cfg    Config
}

// NewExtractor wraps engine.
func NewExtractor(engine Engine, cfg Config) (*Extractor, error) {
	if engine == nil {
		return nil, errors.New("ocr engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{engine: engine, cfg: cfg}, nil
}

// Language returns the configured default language hint.
func (e *Extractor) Language() string { return e.cfg.Language }

// Extract recognizes img synchronously. Malformed results are retried; once the attempt
// budget is spent the failed sentinel is returned with a nil error. Other engine errors
// are returned immediately wrapped in ErrOCRFailed.
func (e *Extractor) Extract(ctx context.Context, img image.Image, lang string) (Result, error) {
	return e.run(ctx, img, lang, 0)
}

// ExtractAsync is Extract with every attempt bounded by the configured timeout. A timed-out
// attempt counts against the retry budget; if all attempts time out the error wraps
// ErrOCRTimeout.
func (e *Extractor) ExtractAsync(ctx context.Context, img image.Image, lang string) (Result, error) {
	return e.run(ctx, img, lang, e.cfg.Timeout)
}

func (e *Extractor) run(ctx context.Context, img image.Image, lang string, budget time.Duration) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, fmt.Errorf("%w: empty input image", ErrOCRFailed)
	}
	if lang == "" {
		lang = e.cfg.Language
	}
	img = e.prepare(img)

	timeouts := 0
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, e.cfg.RetryDelay); err != nil {
				return Result{}, err
			}
		}

		rec, err := e.attempt(ctx, img, lang, budget)
		if err == nil {
			err = validate(rec)
		}
		switch {
		case err == nil:
			lines := rec.Lines
			avg := AverageConfidence(lines)
			return Result{
				Text:              joinLines(lines),
				AverageConfidence: avg,
				Tier:              TierFor(avg),
				Lines:             lines,
				Attempts:          attempt,
			}, nil
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		case errors.Is(err, ErrOCRTimeout):
			timeouts++
			slog.Warn("OCR attempt timed out", "attempt", attempt, "timeout", budget)
		case errors.Is(err, ErrTransientMismatch):
			slog.Warn("OCR returned malformed result, retrying", "attempt", attempt, "error", err)
		default:
			return Result{}, fmt.Errorf("%w: %w", ErrOCRFailed, err)
		}
	}

	if timeouts == e.cfg.MaxRetries {
		return Result{}, fmt.Errorf("%w after %d attempts of %v", ErrOCRTimeout, timeouts, budget)
	}
	slog.Warn("OCR failed after multiple retries", "attempts", e.cfg.MaxRetries)
	return FailedResult(e.cfg.MaxRetries), nil
}

type recognition struct {
	rec *Recognition
	err error
}

// attempt runs one recognition. With a positive budget the engine runs on its own goroutine
// under a deadline; the buffered channel lets an abandoned call finish without blocking.
func (e *Extractor) attempt(ctx context.Context, img image.Image, lang string, budget time.Duration) (*Recognition, error) {
	if budget <= 0 {
		return e.engine.Recognize(ctx, img, lang)
	}

	actx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan recognition, 1)
	go func() {
		rec, err := e.engine.Recognize(actx, img, lang)
		done <- recognition{rec: rec, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, ErrOCRTimeout
		}
		return r.rec, r.err
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrOCRTimeout
	}
}

// prepare upscales small inputs so the engine has enough pixels per glyph.
func (e *Extractor) prepare(img image.Image) image.Image {
	b := img.Bounds()
	if e.cfg.MinSide <= 0 || (b.Dx() >= e.cfg.MinSide && b.Dy() >= e.cfg.MinSide) {
		return img
	}
	return imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.NearestNeighbor)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
