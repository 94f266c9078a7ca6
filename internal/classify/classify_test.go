package classify

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/testutil"
)

type fakeModel struct {
	scores []float32
	err    error
	calls  int
}

func (f *fakeModel) Scores(_ context.Context, _ image.Image) ([]float32, error) {
	f.calls++
	return f.scores, f.err
}

func TestJudge(t *testing.T) {
	tests := []struct {
		name       string
		scores     []float32
		threshold  float64
		quality    string
		classID    int
		confidence float64
	}{
		{"confident", []float32{0.1, 0.9}, 0.8, Good, 1, 0.9},
		{"at threshold", []float32{0.8, 0.2}, 0.8, Good, 0, 0.8},
		{"unsure", []float32{0.55, 0.45}, 0.8, Bad, 0, 0.55},
		{"empty", nil, 0.8, Bad, -1, 0},
		{"zero threshold", []float32{0.5, 0.5}, 0, Good, 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Judge(tt.scores, tt.threshold)
			assert.Equal(t, tt.quality, res.Quality)
			assert.Equal(t, tt.classID, res.ClassID)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-6)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, 0.8)
	require.Error(t, err)
	_, err = New(&fakeModel{}, 1.2)
	require.Error(t, err)

	c, err := New(&fakeModel{}, DefaultThreshold)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, c.Threshold(), 1e-9)
}

func TestClassifyBytes(t *testing.T) {
	model := &fakeModel{scores: []float32{0.05, 0.95}}
	c, err := New(model, DefaultThreshold)
	require.NoError(t, err)

	res, err := c.ClassifyBytes(context.Background(), testutil.EncodePNG(t, testutil.CreateTestImage(32, 24, color.White)))
	require.NoError(t, err)
	assert.Equal(t, Result{Quality: Good, Confidence: float64(float32(0.95)), ClassID: 1}, res)

	_, err = c.ClassifyBytes(context.Background(), []byte("not an image"))
	require.ErrorIs(t, err, ErrInvalidImage)
	assert.Equal(t, 1, model.calls)
}

func TestClassify_ModelErrors(t *testing.T) {
	img := testutil.CreateTestImage(8, 8, color.White)

	c, err := New(&fakeModel{err: errors.New("session lost")}, DefaultThreshold)
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), img)
	require.ErrorIs(t, err, ErrClassificationFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err = New(&fakeModel{err: context.Canceled}, DefaultThreshold)
	require.NoError(t, err)
	_, err = c.Classify(ctx, img)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrClassificationFailed)
}
