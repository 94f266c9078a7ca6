package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// batchItem is one unit of batch work: an uploaded image, a rendered PDF page, or an
// input that already failed during expansion.
type batchItem struct {
	name string
	data []byte
	page image.Image
	err  error
}

// AssessBatch assesses every file, expanding PDFs into pages. Results follow input order,
// with pages ascending inside a file. A failing item never aborts the others; the only
// batch-level error is ErrTooManyFiles.
func (p *Pipeline) AssessBatch(ctx context.Context, files []File) ([]BatchItemResult, error) {
	return p.AssessBatchWithProgress(ctx, files, nil)
}

// AssessBatchWithProgress is AssessBatch with per-item progress reporting. Callbacks are
// serialized.
func (p *Pipeline) AssessBatchWithProgress(ctx context.Context, files []File, progress ProgressCallback) ([]BatchItemResult, error) {
	if len(files) > p.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: got %d, at most %d allowed", ErrTooManyFiles, len(files), p.cfg.MaxFiles)
	}
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	items := p.expand(ctx, files)
	results := make([]BatchItemResult, len(items))
	progress.OnStart(len(items))
	defer progress.OnComplete()

	var (
		mu        sync.Mutex
		completed int
	)
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)
	for i, it := range items {
		g.Go(func() error {
			res := p.assessItem(ctx, it)
			results[i] = res
			recordBatchItem(res)
			if res.Err != nil {
				slog.Warn("batch item failed", "file", res.Filename, "error", res.Err)
			}

			mu.Lock()
			completed++
			progress.OnItem(i, completed, len(items), res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("batch assessed", "files", len(files), "items", len(items))
	return results, nil
}

func (p *Pipeline) assessItem(ctx context.Context, it batchItem) BatchItemResult {
	res := BatchItemResult{Filename: it.name}
	if it.err != nil {
		res.Err = it.err
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	img := it.page
	if img == nil {
		decoded, err := p.decode(it.data)
		if err != nil {
			res.Err = err
			return res
		}
		img = decoded
	}

	records, err := p.AssessDecoded(ctx, it.name, img, locator.ModeMulti)
	switch {
	case err == nil:
		res.Records = records
	case errors.Is(err, locator.ErrNoDocumentDetected):
		res.Records = []Record{}
	default:
		res.Err = err
	}
	return res
}

// expand turns files into batch items, rendering PDFs into one item per page.
func (p *Pipeline) expand(ctx context.Context, files []File) []batchItem {
	items := make([]batchItem, 0, len(files))
	for _, f := range files {
		if !utils.IsPDF(f.Name, f.Data) {
			items = append(items, batchItem{name: f.Name, data: f.Data})
			continue
		}
		pages, err := p.renderPDF(ctx, f)
		if err != nil {
			items = append(items, batchItem{name: f.Name, err: err})
			continue
		}
		for i, page := range pages {
			items = append(items, batchItem{name: pageName(f.Name, i+1), page: page})
		}
	}
	return items
}

func (p *Pipeline) renderPDF(ctx context.Context, f File) ([]image.Image, error) {
	if p.renderer == nil {
		return nil, fmt.Errorf("%w: pdf input is not supported", ErrInvalidImage)
	}
	var pages []image.Image
	err := p.withInference(ctx, "render", func() error {
		var err error
		pages, err = p.renderer.RenderPages(ctx, f.Data, p.cfg.PDFDPI)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	if len(pages) == 0 {
		return nil, errors.New("failed to render pdf: no pages")
	}
	return pages, nil
}

// pageName names the n-th page of a PDF: "<base>_page<n>.png".
func pageName(name string, n int) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "document"
	}
	return fmt.Sprintf("%s_page%d.png", base, n)
}
