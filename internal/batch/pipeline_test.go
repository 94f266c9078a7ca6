package batch

import (
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/config"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
	"github.com/MeKo-Tech/scanqa/internal/testutil"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// paperDetector reports the default synthetic document's paper in letterboxed frame space.
type paperDetector struct{}

func (paperDetector) Detect(context.Context, image.Image) ([]locator.RawDetection, error) {
	return []locator.RawDetection{{Box: utils.NewBox(96, 152, 544, 488), Label: "passport", Confidence: 0.9}}, nil
}

func readableEngine() ocrquality.Engine {
	return ocrquality.EngineFunc(func(context.Context, image.Image, string) (*ocrquality.Recognition, error) {
		return &ocrquality.Recognition{
			Regions: []image.Rectangle{image.Rect(0, 0, 100, 20), image.Rect(0, 30, 100, 50)},
			Lines: []ocrquality.Line{
				{Text: "ПАСПОРТ", Confidence: 0.9},
				{Text: "ИВАНОВ", Confidence: 0.8},
			},
		}, nil
	})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "artifacts")
	cfg.History.Path = ":memory:"
	cfg.OCR.RetryDelayMS = 1
	cfg.Pipeline.InferenceWorkers = 2
	return &cfg
}

func TestAssemble_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	a, err := Assemble(context.Background(), cfg, paperDetector{}, readableEngine())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	require.NotNil(t, a.History)

	dir := t.TempDir()
	doc := filepath.Join(dir, "scan.png")
	testutil.SaveImage(t, testutil.GenerateDocument(testutil.DefaultDocumentConfig()), doc)
	testutil.WriteFile(t, filepath.Join(dir, "broken.png"), []byte("not an image"))

	res, err := ProcessBatch(context.Background(), a.Pipeline, []string{dir}, &Config{ChunkSize: cfg.Batch.MaxFiles})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	broken, scan := res.Items[0], res.Items[1]
	assert.False(t, broken.OK())

	require.True(t, scan.OK())
	require.Len(t, scan.Records, 1)
	rec := scan.Records[0]
	assert.Equal(t, "passport", rec.Detection.DocType)
	assert.InDelta(t, 85.0, rec.OCR.AverageConfidence, 1e-9)
	assert.NotEqual(t, scoring.Failed, rec.Category)
	assert.True(t, strings.HasSuffix(rec.CropArtifact, "_scan_crop1.png"), rec.CropArtifact)
	assert.FileExists(t, filepath.Join(cfg.Storage.Dir, rec.CropArtifact))
	assert.FileExists(t, filepath.Join(cfg.Storage.Dir, rec.BitmapArtifact))

	entries, err := a.History.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, doc, entries[0].Filename)
}

func TestAssemble_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false

	a, err := Assemble(context.Background(), cfg, paperDetector{}, readableEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Nil(t, a.History)
	assert.True(t, a.Pipeline.AcceptsPDF())
}

func TestAssemble_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		want   string
	}{
		{"storage backend", func(c *config.Config) { c.Storage.Backend = "ftp" }, "failed to create artifact store"},
		{"denoise", func(c *config.Config) { c.Binarize.Denoise = "median" }, "failed to create normalizer"},
		{"pipeline", func(c *config.Config) { c.Batch.MaxFiles = 0 }, "failed to build pipeline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			_, err := Assemble(context.Background(), cfg, paperDetector{}, readableEngine())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildPipeline_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.Engine = "paddle"
	_, err := BuildPipeline(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported OCR engine "paddle"`)

	cfg = testConfig(t)
	cfg.Locator.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	_, err = BuildPipeline(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create document detector")
}
