package binarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filled(w, h int, black bool) *Bitmap {
	b := NewBitmap(w, h)
	if black {
		for i := range b.Pix {
			b.Pix[i] = 0
		}
	}
	return b
}

func TestAssess_AllWhite(t *testing.T) {
	for _, sz := range [][2]int{{1, 1}, {10, 7}, {200, 300}} {
		m := NewAssessor(0).Assess(filled(sz[0], sz[1], false))
		assert.Zero(t, m.GlobalBlackRatio)
		assert.Zero(t, m.LargeBlackRatio)
	}
}

func TestAssess_AllBlack(t *testing.T) {
	for _, sz := range [][2]int{{1, 1}, {10, 7}, {200, 300}} {
		m := NewAssessor(0).Assess(filled(sz[0], sz[1], true))
		assert.InDelta(t, 100.0, m.GlobalBlackRatio, 1e-9)
		assert.InDelta(t, 100.0, m.LargeBlackRatio, 1e-9)
	}
}

func TestAssess_SmallStrokesVsBlob(t *testing.T) {
	// 100x100 = 10000 px; the 1% limit is 100 px.
	b := NewBitmap(100, 100)
	// Ten "strokes" of 2x5 = 10 px each.
	for i := range 10 {
		for y := 5; y < 10; y++ {
			for x := i * 8; x < i*8+2; x++ {
				b.Set(x, y, true)
			}
		}
	}
	// One 20x20 blob = 400 px.
	for y := 50; y < 70; y++ {
		for x := 50; x < 70; x++ {
			b.Set(x, y, true)
		}
	}

	m := NewAssessor(DefaultLargeRegionFraction).Assess(b)
	assert.InDelta(t, 5.0, m.GlobalBlackRatio, 1e-9)
	assert.InDelta(t, 4.0, m.LargeBlackRatio, 1e-9)
}

func TestAssess_ThresholdIsStrict(t *testing.T) {
	// Exactly 1% (100 px) is not "large".
	b := NewBitmap(100, 100)
	for x := range 100 {
		b.Set(x, 0, true)
	}
	m := NewAssessor(0.01).Assess(b)
	assert.InDelta(t, 1.0, m.GlobalBlackRatio, 1e-9)
	assert.Zero(t, m.LargeBlackRatio)

	m = NewAssessor(0.005).Assess(b)
	assert.InDelta(t, 1.0, m.LargeBlackRatio, 1e-9)
}

func TestAssess_DiagonalPixelsFormOneComponent(t *testing.T) {
	b := NewBitmap(50, 50)
	for i := range 50 {
		b.Set(i, i, true)
	}
	// 50 px of 2500 = 2% as one diagonal 8-connected line.
	m := NewAssessor(0.01).Assess(b)
	assert.InDelta(t, 2.0, m.LargeBlackRatio, 1e-9)
}

func TestAssess_Idempotent(t *testing.T) {
	b := NewBitmap(64, 48)
	for y := range 48 {
		for x := range 64 {
			b.Set(x, y, (x*7+y*13)%5 == 0 || (x > 30 && y > 20))
		}
	}
	snapshot := append([]uint8(nil), b.Pix...)

	a := NewAssessor(0)
	first := a.Assess(b)
	second := a.Assess(b)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, b.Pix)
}

func TestAssess_Empty(t *testing.T) {
	assert.Equal(t, Metrics{}, NewAssessor(0).Assess(nil))
	assert.Equal(t, Metrics{}, NewAssessor(0).Assess(&Bitmap{}))
}

func TestMetricsVerdict(t *testing.T) {
	assert.Equal(t, "High large-black region ratio (25.50%), potential quality issues.",
		Metrics{LargeBlackRatio: 25.5}.Verdict())
	assert.Equal(t, "Low large-black region ratio (20.00%), image quality acceptable.",
		Metrics{LargeBlackRatio: 20}.Verdict())
}
