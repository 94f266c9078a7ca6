package classify

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/testutil"
)

func TestDecodeScores(t *testing.T) {
	probs, err := decodeScores([]float32{0.2, 0.8}, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.2, 0.8}, probs)

	probs, err = decodeScores([]float32{2, 0}, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, 0.8808, probs[0], 1e-4)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-6)

	for _, shape := range [][]int64{{2}, {2, 2}, {1, 0}, {1, 3}} {
		_, err := decodeScores([]float32{0.5, 0.5}, shape)
		assert.Error(t, err, "shape %v", shape)
	}
}

func TestPrepare_CentersSquare(t *testing.T) {
	img := prepare(testutil.CreateTestImage(400, 200, color.White), DefaultInputSize)
	assert.Equal(t, DefaultInputSize, img.Bounds().Dx())
	assert.Equal(t, DefaultInputSize, img.Bounds().Dy())
}

func TestNewONNXModel_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"empty path", Config{InputSize: DefaultInputSize}},
		{"input size", Config{ModelPath: "cls.onnx"}},
		{"missing model", Config{ModelPath: filepath.Join(t.TempDir(), "cls.onnx"), InputSize: DefaultInputSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewONNXModel(tt.config)
			require.Error(t, err)
		})
	}
}
