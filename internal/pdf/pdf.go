// Package pdf rasterizes scanned PDF documents into page images.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

// DefaultDPI is the rasterization resolution used when none is given.
const DefaultDPI = 200

// pointsPerInch is the PDF user-space unit.
const pointsPerInch = 72.0

// ErrNoPages is returned for documents without any page.
var ErrNoPages = errors.New("pdf has no pages")

// Renderer turns a PDF into one image per page. Scanned pages are recovered from their
// embedded raster images and resampled to the requested DPI; pages without images render
// as blank white sheets so page numbering stays aligned.
type Renderer struct {
	// Pages restricts rendering to a selection like "1-3,5". Empty means all pages.
	Pages string
}

// NewRenderer returns a renderer for the given page selection.
func NewRenderer(pages string) (*Renderer, error) {
	if _, err := parsePageRange(pages); err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pages, err)
	}
	return &Renderer{Pages: pages}, nil
}

// RenderPages returns page images in ascending page order.
func (r *Renderer) RenderPages(ctx context.Context, data []byte, dpi int) ([]image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if len(data) == 0 {
		return nil, errors.New("empty pdf data")
	}

	tempDir, err := os.MkdirTemp("", "scanqa-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	inFile := filepath.Join(tempDir, "document.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage pdf: %w", err)
	}

	dims, err := api.PageDimsFile(inFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	if len(dims) == 0 {
		return nil, ErrNoPages
	}

	pages, err := parsePageRange(r.Pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", r.Pages, err)
	}
	if len(pages) == 0 {
		pages = make([]int, len(dims))
		for i := range pages {
			pages[i] = i + 1
		}
	}

	outDir := filepath.Join(tempDir, "images")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	selected := make([]string, len(pages))
	for i, p := range pages {
		selected[i] = strconv.Itoa(p)
	}
	if err := api.ExtractImagesFile(inFile, outDir, selected, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extracted, err := collectExtractedImages(outDir, "document")
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}

	out := make([]image.Image, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > len(dims) {
			return nil, fmt.Errorf("page %d out of range (document has %d pages)", p, len(dims))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, h := pagePixels(dims[p-1].Width, dims[p-1].Height, dpi)
		src := largest(extracted[p])
		if src == nil {
			slog.Debug("pdf page has no raster image, rendering blank", "page", p)
			out = append(out, imaging.New(w, h, color.White))
			continue
		}
		out = append(out, fitToPage(src, w, h))
	}
	return out, nil
}

// pagePixels converts a page size in points to pixels at dpi.
func pagePixels(widthPt, heightPt float64, dpi int) (int, int) {
	w := int(math.Round(widthPt / pointsPerInch * float64(dpi)))
	h := int(math.Round(heightPt / pointsPerInch * float64(dpi)))
	return max(w, 1), max(h, 1)
}

// fitToPage resamples a page scan to the target pixel size unless it already matches.
func fitToPage(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if abs(b.Dx()-w) <= 1 && abs(b.Dy()-h) <= 1 {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// largest picks the image with the most pixels; full-page scans dominate logos and stamps.
func largest(imgs []image.Image) image.Image {
	var best image.Image
	bestArea := -1
	for _, img := range imgs {
		b := img.Bounds()
		if a := b.Dx() * b.Dy(); a > bestArea {
			best, bestArea = img, a
		}
	}
	return best
}

// loadImageFile loads an image from a file path.
func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: path is inside our temp directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// collectExtractedImages walks dir and groups decodable images by page number.
func collectExtractedImages(dir, base string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		pageNum, err := parsePageFromFilename(info.Name(), base)
		if err != nil {
			return nil
		}
		img, err := loadImageFile(path)
		if err != nil {
			slog.Debug("skipping undecodable pdf image", "file", info.Name(), "error", err)
			return nil
		}
		result[pageNum] = append(result[pageNum], img)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from a pdfcpu image file name. Both the
// "<base>_<page>_<id>.<ext>" and "page_<page>_image_<idx>.<ext>" layouts are accepted.
func parsePageFromFilename(filename, base string) (int, error) {
	var rest string
	switch {
	case base != "" && strings.HasPrefix(filename, base+"_"):
		rest = strings.TrimPrefix(filename, base+"_")
	case strings.HasPrefix(filename, "page_"):
		rest = strings.TrimPrefix(filename, "page_")
	default:
		return 0, errors.New("not a page file")
	}

	num, _, _ := strings.Cut(rest, "_")
	num, _, _ = strings.Cut(num, ".")
	pageNum, err := strconv.Atoi(num)
	if err != nil || pageNum < 1 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil // Empty means all pages
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
