package locator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/testutil"
)

func TestNewONNXDetector_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty model path", func(c *Config) { c.ModelPath = "" }, "model path cannot be empty"},
		{"input size", func(c *Config) { c.InputSize = 0 }, "input size must be positive"},
		{"confidence", func(c *Config) { c.ConfThreshold = 1.5 }, "confidence threshold"},
		{"iou", func(c *Config) { c.IoUThreshold = -0.1 }, "IoU threshold"},
		{"missing model", func(c *Config) { c.ModelPath = "/nonexistent/doc_detector.onnx" }, "model file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ModelPath = "model.onnx"
			tt.modify(&cfg)
			_, err := NewONNXDetector(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestONNXDetector_SyntheticDocument(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = testutil.RequireDetectorModel(t)

	det, err := NewONNXDetector(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, det.Close()) })

	img := testutil.GenerateDocument(testutil.DefaultDocumentConfig())
	out := NewLocalizer(det, nil, cfg.InputSize).Locate(context.Background(), img, "synthetic.png", ModeMulti)
	require.NotEqual(t, StatusFailed, out.Status, "cause: %v", out.Cause)
	for _, r := range out.Regions {
		assert.False(t, r.Image.Bounds().Empty())
		assert.GreaterOrEqual(t, r.Detection.Confidence, cfg.ConfThreshold)
	}
}
