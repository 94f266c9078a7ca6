package binarize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/scanqa/internal/utils"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Saver persists bitmap artifacts and returns a stable handle for them.
type Saver interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Config controls the normalization steps.
type Config struct {
	Denoise       Denoise
	UpscaleFactor float64
	NLMeansH      float64
}

// DefaultConfig returns gaussian denoising with a 2× upscale.
func DefaultConfig() Config {
	return Config{
		Denoise:       DenoiseGaussian,
		UpscaleFactor: 2,
		NLMeansH:      10,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseDenoise(string(c.Denoise)); err != nil {
		return err
	}
	if c.UpscaleFactor < 1 || c.UpscaleFactor > 8 {
		return fmt.Errorf("upscale factor must be in [1,8], got %v", c.UpscaleFactor)
	}
	if c.Denoise == DenoiseNLMeans && c.NLMeansH <= 0 {
		return fmt.Errorf("nlmeans strength must be positive, got %v", c.NLMeansH)
	}
	return nil
}

// Normalizer converts a crop into a binary bitmap: grayscale, cubic upscale, denoise,
// then Otsu threshold. It never modifies its input.
type Normalizer struct {
	cfg   Config
	saver Saver
}

// NewNormalizer creates a normalizer. saver may be nil.
func NewNormalizer(cfg Config, saver Saver) (*Normalizer, error) {
	if cfg.Denoise == "" {
		cfg.Denoise = DenoiseGaussian
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{cfg: cfg, saver: saver}, nil
}

// Binarize runs the normalization steps and returns a freshly allocated bitmap.
func (n *Normalizer) Binarize(img image.Image) (*Bitmap, error) {
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "binarize", Err: errors.New("input image is nil")}
	}
	if img.Bounds().Empty() {
		return nil, &utils.ImageProcessingError{Operation: "binarize", Err: errors.New("empty image")}
	}

	gray := toGray(img)
	gray = upscale(gray, n.cfg.UpscaleFactor)

	switch n.cfg.Denoise {
	case DenoiseNLMeans:
		gray = nlMeans(gray, n.cfg.NLMeansH)
	default:
		gray = gaussianBlur3(gray)
	}

	return Threshold(gray, OtsuThreshold(gray)), nil
}

// Normalize binarizes img and persists a PNG copy. It returns the bitmap and the artifact
// handle, which is empty when no saver is configured.
func (n *Normalizer) Normalize(ctx context.Context, img image.Image, name string) (*Bitmap, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	bm, err := n.Binarize(img)
	if err != nil {
		return nil, "", err
	}
	if n.saver == nil {
		return bm, "", nil
	}

	data, err := utils.EncodePNG(bm)
	if err != nil {
		return nil, "", err
	}
	handle, err := n.saver.Save(ctx, processedName(name), data)
	if err != nil {
		return nil, "", fmt.Errorf("persist bitmap: %w", err)
	}
	return bm, handle, nil
}

// toGray converts to luma using Rec. 601 weights into a zero-origin *image.Gray.
func toGray(img image.Image) *image.Gray {
	g := imaging.Grayscale(img)
	r := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := range r.Dy() {
		src := g.Pix[y*g.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := range r.Dx() {
			dst[x] = src[x*4]
		}
	}
	return out
}

func upscale(g *image.Gray, factor float64) *image.Gray {
	if factor <= 1 {
		return g
	}
	r := g.Bounds()
	w := int(float64(r.Dx()) * factor)
	h := int(float64(r.Dy()) * factor)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), g, r, xdraw.Src, nil)
	return dst
}

func processedName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "document"
	}
	return base + "_processed.png"
}
