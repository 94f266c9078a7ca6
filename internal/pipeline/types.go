package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/scanqa/internal/binarize"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
)

var (
	// ErrInvalidImage is returned when an upload cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
	// ErrTooManyFiles is returned when a batch exceeds the configured file limit.
	ErrTooManyFiles = errors.New("too many files")
)

// File is one uploaded input.
type File struct {
	Name string
	Data []byte
}

// Record is the full quality assessment of one located document.
type Record struct {
	Filename       string
	Detection      locator.Detection
	CropArtifact   string
	BitmapArtifact string
	Metrics        binarize.Metrics
	OCR            ocrquality.Result
	Score          float64
	Category       scoring.Category
}

// Response is the wire form of a Record.
type Response struct {
	DocType               string  `json:"doc_type"`
	Confidence            float64 `json:"confidence"`
	Text                  string  `json:"text"`
	AverageConfidence     float64 `json:"average_confidence"`
	OCRQualityAssessment  string  `json:"ocr_quality_assessment"`
	GlobalBlackRatio      string  `json:"global_black_ratio"`
	LargeBlackRegionRatio string  `json:"large_black_region_ratio"`
	BinarizationQuality   string  `json:"binarization_quality"`
	GlobalScore           float64 `json:"global_score"`
	QualityCategory       string  `json:"quality_category"`
}

// NewResponse formats r for clients. Ratios are rendered as "NN.NN%".
func NewResponse(r Record) Response {
	return Response{
		DocType:               r.Detection.DocType,
		Confidence:            r.Detection.Confidence,
		Text:                  r.OCR.Text,
		AverageConfidence:     r.OCR.AverageConfidence,
		OCRQualityAssessment:  r.OCR.Tier.Label(),
		GlobalBlackRatio:      formatPercent(r.Metrics.GlobalBlackRatio),
		LargeBlackRegionRatio: formatPercent(r.Metrics.LargeBlackRatio),
		BinarizationQuality:   r.Metrics.Verdict(),
		GlobalScore:           r.Score,
		QualityCategory:       string(r.Category),
	}
}

// NewResponses formats a list of records.
func NewResponses(records []Record) []Response {
	out := make([]Response, len(records))
	for i, r := range records {
		out[i] = NewResponse(r)
	}
	return out
}

// Preview is the reduced record used by crop-preview workflows.
type Preview struct {
	DocType         string `json:"doc_type"`
	QualityCategory string `json:"quality_category"`
	CroppedROI      string `json:"cropped_roi"`
}

// NewPreview reduces r to its preview form.
func NewPreview(r Record) Preview {
	return Preview{
		DocType:         r.Detection.DocType,
		QualityCategory: string(r.Category),
		CroppedROI:      r.CropArtifact,
	}
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// BatchItemResult is the outcome of one batch item. Exactly one of Records and Err is
// meaningful; an item without documents has an empty Records slice and no error.
type BatchItemResult struct {
	Filename string
	Records  []Record
	Err      error
}

// OK reports whether the item succeeded.
func (b BatchItemResult) OK() bool { return b.Err == nil }

type batchItemJSON struct {
	Filename string      `json:"filename"`
	Result   *[]Response `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// MarshalJSON renders {filename, result} or {filename, error}.
func (b BatchItemResult) MarshalJSON() ([]byte, error) {
	out := batchItemJSON{Filename: b.Filename}
	if b.Err != nil {
		out.Error = b.Err.Error()
	} else {
		res := NewResponses(b.Records)
		out.Result = &res
	}
	return json.Marshal(out)
}
