package batch

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/binarize"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/pipeline"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
)

func record(docType string, score float64, category scoring.Category) pipeline.Record {
	return pipeline.Record{
		Detection:    locator.Detection{DocType: docType, Confidence: 0.9},
		CropArtifact: "abc_" + docType + "_crop1.png",
		Metrics:      binarize.Metrics{GlobalBlackRatio: 10, LargeBlackRatio: 2.5},
		OCR:          ocrquality.Result{AverageConfidence: 82.5, Tier: ocrquality.TierExcellent},
		Score:        score,
		Category:     category,
	}
}

func sampleResult() *Result {
	return &Result{
		Inputs: []string{"a.png", "b.pdf", "c.png"},
		Items: []pipeline.BatchItemResult{
			{Filename: "a.png", Records: []pipeline.Record{record("passport", 70, scoring.Excellent)}},
			{Filename: "b_page1.png", Records: []pipeline.Record{
				record("receipt", 55, scoring.Moderate),
				record("id_card", 40, scoring.Poor),
			}},
			{Filename: "b_page2.png", Records: []pipeline.Record{}},
			{Filename: "c.png", Err: errors.New("invalid image")},
		},
		InputBytes: 2048,
		Duration:   2 * time.Second,
	}
}

func TestFormatResults_Text(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatText)
	require.NoError(t, err)

	assert.Contains(t, out, "# a.png\n  [1] passport (0.90)  score 70.00  Excellent\n")
	assert.Contains(t, out, "      OCR: Excellent readability, average confidence 82.50\n")
	assert.Contains(t, out, "      Black ratio: 10.00% global, 2.50% large regions\n")
	assert.Contains(t, out, "  [2] id_card (0.90)  score 40.00  Poor\n")
	assert.Contains(t, out, "# b_page2.png\n  no document detected\n")
	assert.Contains(t, out, "# c.png\n  error: invalid image\n")
	assert.Contains(t, out, "      Crop: abc_passport_crop1.png\n")
}

func TestFormatResults_UnknownFormatIsText(t *testing.T) {
	r := sampleResult()
	text, err := r.FormatResults(FormatText)
	require.NoError(t, err)
	other, err := r.FormatResults("yaml")
	require.NoError(t, err)
	assert.Equal(t, text, other)
}

func TestFormatResults_JSON(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatJSON)
	require.NoError(t, err)

	var decoded struct {
		Items []struct {
			Filename string              `json:"filename"`
			Result   []pipeline.Response `json:"result"`
			Error    string              `json:"error"`
		} `json:"items"`
		Summary Stats `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Items, 4)
	assert.Equal(t, "passport", decoded.Items[0].Result[0].DocType)
	assert.Len(t, decoded.Items[1].Result, 2)
	assert.Empty(t, decoded.Items[2].Result)
	assert.Equal(t, "invalid image", decoded.Items[3].Error)

	assert.Equal(t, 3, decoded.Summary.Documents)
	assert.Equal(t, 1, decoded.Summary.Failed)
	assert.Equal(t, 1, decoded.Summary.Empty)
}

func TestFormatResults_JSONEmpty(t *testing.T) {
	out, err := (&Result{}).FormatResults(FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, out, `"items": []`)
}

func TestFormatResults_CSV(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6) // header + 3 documents + empty page + failed file
	assert.True(t, strings.HasPrefix(lines[0], "file,document_index,doc_type"))
	assert.Equal(t, "a.png,1,passport,0.900,82.50,Excellent,10.00,2.50,70.00,Excellent,abc_passport_crop1.png,", lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "b_page1.png,2,id_card"))
	assert.Equal(t, "b_page2.png,,,,,,,,,,,", lines[4])
	assert.Equal(t, "c.png,,,,,,,,,,,invalid image", lines[5])
}

func TestResultStats(t *testing.T) {
	s := sampleResult().Stats()
	assert.Equal(t, 3, s.Inputs)
	assert.Equal(t, 4, s.Items)
	assert.Equal(t, 3, s.Documents)
	assert.Equal(t, 1, s.Empty)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, map[string]int{"Excellent": 1, "Moderate": 1, "Poor": 1}, s.Categories)
	assert.InDelta(t, 55.0, s.AverageScore, 1e-9)
}

func TestPrintStats(t *testing.T) {
	var b strings.Builder
	sampleResult().PrintStats(&b)
	out := b.String()
	assert.Contains(t, out, "Inputs: 3 (2.0 kB)")
	assert.Contains(t, out, "Documents: 3")
	assert.Contains(t, out, "Excellent: 1")
	assert.Contains(t, out, "Average score: 55.00")
	assert.Contains(t, out, "Throughput: 2.0 items/sec")
}
