package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/scanqa/internal/pipeline"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
)

var categoryOrder = []string{
	string(scoring.Excellent),
	string(scoring.Moderate),
	string(scoring.Poor),
	string(scoring.Failed),
}

// formatBatchResults formats r in the specified format. Unknown formats render as text.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(r)
	case FormatCSV:
		return formatCSV(r.Items)
	default:
		return formatText(r.Items), nil
	}
}

// formatJSON renders the items in their HTTP batch form plus a summary.
func formatJSON(r *Result) (string, error) {
	items := r.Items
	if items == nil {
		items = []pipeline.BatchItemResult{}
	}
	out := struct {
		Items   []pipeline.BatchItemResult `json:"items"`
		Summary Stats                      `json:"summary"`
	}{Items: items, Summary: r.Stats()}

	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

// formatCSV writes one row per document; items without documents get a single row.
func formatCSV(items []pipeline.BatchItemResult) (string, error) {
	rows := [][]string{{
		"file", "document_index", "doc_type", "detection_confidence", "ocr_confidence",
		"ocr_quality", "global_black_ratio", "large_black_ratio", "score", "category",
		"crop_artifact", "error",
	}}

	for _, item := range items {
		if !item.OK() {
			rows = append(rows, []string{item.Filename, "", "", "", "", "", "", "", "", "", "", item.Err.Error()})
			continue
		}
		if len(item.Records) == 0 {
			rows = append(rows, []string{item.Filename, "", "", "", "", "", "", "", "", "", "", ""})
			continue
		}
		for i, rec := range item.Records {
			rows = append(rows, []string{
				item.Filename,
				strconv.Itoa(i + 1),
				rec.Detection.DocType,
				fmt.Sprintf("%.3f", rec.Detection.Confidence),
				fmt.Sprintf("%.2f", rec.OCR.AverageConfidence),
				string(rec.OCR.Tier),
				fmt.Sprintf("%.2f", rec.Metrics.GlobalBlackRatio),
				fmt.Sprintf("%.2f", rec.Metrics.LargeBlackRatio),
				fmt.Sprintf("%.2f", rec.Score),
				string(rec.Category),
				rec.CropArtifact,
				"",
			})
		}
	}

	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

// formatText renders a human-readable report.
func formatText(items []pipeline.BatchItemResult) string {
	var output strings.Builder
	for i, item := range items {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", item.Filename)
		switch {
		case !item.OK():
			fmt.Fprintf(&output, "  error: %v\n", item.Err)
			continue
		case len(item.Records) == 0:
			output.WriteString("  no document detected\n")
			continue
		}
		for j, rec := range item.Records {
			resp := pipeline.NewResponse(rec)
			fmt.Fprintf(&output, "  [%d] %s (%.2f)  score %.2f  %s\n",
				j+1, resp.DocType, resp.Confidence, resp.GlobalScore, resp.QualityCategory)
			fmt.Fprintf(&output, "      OCR: %s, average confidence %.2f\n",
				resp.OCRQualityAssessment, resp.AverageConfidence)
			fmt.Fprintf(&output, "      Black ratio: %s global, %s large regions\n",
				resp.GlobalBlackRatio, resp.LargeBlackRegionRatio)
			fmt.Fprintf(&output, "      %s\n", resp.BinarizationQuality)
			if rec.CropArtifact != "" {
				fmt.Fprintf(&output, "      Crop: %s\n", rec.CropArtifact)
			}
		}
	}
	return output.String()
}
