package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/scanqa/internal/binarize"
	"github.com/MeKo-Tech/scanqa/internal/history"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// AssessImage assesses the highest-confidence document in an encoded image.
// It returns locator.ErrNoDocumentDetected when the image holds no document.
func (p *Pipeline) AssessImage(ctx context.Context, name string, data []byte) (Record, error) {
	img, err := p.decode(data)
	if err != nil {
		return Record{}, err
	}
	records, err := p.AssessDecoded(ctx, name, img, locator.ModeSingle)
	if err != nil {
		return Record{}, err
	}
	return records[0], nil
}

// AssessDocuments assesses every document found in an encoded image.
func (p *Pipeline) AssessDocuments(ctx context.Context, name string, data []byte) ([]Record, error) {
	img, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	return p.AssessDecoded(ctx, name, img, locator.ModeMulti)
}

// Preview assesses every document and reduces each record to its preview form.
func (p *Pipeline) Preview(ctx context.Context, name string, data []byte) ([]Preview, error) {
	records, err := p.AssessDocuments(ctx, name, data)
	if err != nil {
		return nil, err
	}
	out := make([]Preview, len(records))
	for i, r := range records {
		out[i] = NewPreview(r)
	}
	return out, nil
}

// AssessDecoded runs the stages on an already decoded image. Stages run strictly in
// sequence per document; the first fatal error is returned.
func (p *Pipeline) AssessDecoded(ctx context.Context, name string, img image.Image, mode locator.Mode) ([]Record, error) {
	var outcome locator.Outcome
	err := p.withInference(ctx, "locate", func() error {
		outcome = p.localizer.Locate(ctx, img, name, mode)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := outcome.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(outcome.Regions))
	for i, region := range outcome.Regions {
		rec, err := p.assessRegion(ctx, name, i, region)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Pipeline) decode(data []byte) (image.Image, error) {
	done := observeStage("decode")
	defer done()
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return img, nil
}

func (p *Pipeline) assessRegion(ctx context.Context, name string, idx int, region locator.Region) (Record, error) {
	rec := Record{Filename: name, Detection: region.Detection, CropArtifact: region.Artifact}

	var bm *binarize.Bitmap
	err := p.withInference(ctx, "binarize", func() error {
		var err error
		bm, rec.BitmapArtifact, err = p.normalizer.Normalize(ctx, region.Image, regionName(name, idx))
		return err
	})
	if err != nil {
		return Record{}, fmt.Errorf("binarization failed: %w", err)
	}

	done := observeStage("assess")
	rec.Metrics = p.assessor.Assess(bm)
	done()

	err = p.withInference(ctx, "ocr", func() error {
		var err error
		if p.cfg.AsyncOCR {
			rec.OCR, err = p.extractor.ExtractAsync(ctx, bm, "")
		} else {
			rec.OCR, err = p.extractor.Extract(ctx, bm, "")
		}
		return err
	})
	if err != nil {
		return Record{}, err
	}

	rec.Score = scoring.Score(rec.OCR.AverageConfidence, rec.Metrics.GlobalBlackRatio,
		rec.Metrics.LargeBlackRatio, p.cfg.Weights)
	rec.Category = scoring.Categorize(rec.Score)
	if rec.OCR.Failed() {
		rec.Category = scoring.Failed
	}

	assessmentsTotal.WithLabelValues(string(rec.Category)).Inc()
	slog.Info("document assessed",
		"file", name,
		"doc_type", rec.Detection.DocType,
		"detection_confidence", rec.Detection.Confidence,
		"ocr_confidence", rec.OCR.AverageConfidence,
		"global_black_ratio", rec.Metrics.GlobalBlackRatio,
		"large_black_ratio", rec.Metrics.LargeBlackRatio,
		"score", rec.Score,
		"category", rec.Category,
	)
	p.record(ctx, rec)
	return rec, nil
}

// record persists rec; history is best effort and never fails an assessment.
func (p *Pipeline) record(ctx context.Context, rec Record) {
	if p.recorder == nil {
		return
	}
	_, err := p.recorder.Record(ctx, history.Entry{
		Filename:            rec.Filename,
		DocType:             rec.Detection.DocType,
		DetectionConfidence: rec.Detection.Confidence,
		OCRConfidence:       rec.OCR.AverageConfidence,
		OCRTier:             string(rec.OCR.Tier),
		GlobalBlackRatio:    rec.Metrics.GlobalBlackRatio,
		LargeBlackRatio:     rec.Metrics.LargeBlackRatio,
		Score:               rec.Score,
		Category:            string(rec.Category),
		CropArtifact:        rec.CropArtifact,
		BitmapArtifact:      rec.BitmapArtifact,
	})
	if err != nil {
		slog.Warn("failed to record assessment history", "file", rec.Filename, "error", err)
	}
}

// regionName derives the artifact base for the idx-th document of name.
func regionName(name string, idx int) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "document"
	}
	return fmt.Sprintf("%s_crop%d.png", base, idx+1)
}
