package binarize

import (
	"fmt"

	"github.com/MeKo-Tech/scanqa/internal/mempool"
)

// DefaultLargeRegionFraction is the share of total pixels above which a black component
// counts as an artifact rather than text.
const DefaultLargeRegionFraction = 0.01

// HighLargeBlackRatio is the large-black ratio (percent) above which a scan is flagged.
const HighLargeBlackRatio = 20.0

// Metrics are black-pixel coverage percentages of a bitmap.
type Metrics struct {
	GlobalBlackRatio float64 `json:"global_black_ratio"`
	LargeBlackRatio  float64 `json:"large_black_ratio"`
}

// Verdict is a human-readable summary of the large-black ratio.
func (m Metrics) Verdict() string {
	if m.LargeBlackRatio > HighLargeBlackRatio {
		return fmt.Sprintf("High large-black region ratio (%.2f%%), potential quality issues.", m.LargeBlackRatio)
	}
	return fmt.Sprintf("Low large-black region ratio (%.2f%%), image quality acceptable.", m.LargeBlackRatio)
}

// Assessor computes Metrics. It holds no mutable state and is safe for concurrent use.
type Assessor struct {
	fraction float64
}

// NewAssessor creates an assessor. A non-positive fraction selects the default.
func NewAssessor(largeRegionFraction float64) *Assessor {
	if largeRegionFraction <= 0 {
		largeRegionFraction = DefaultLargeRegionFraction
	}
	return &Assessor{fraction: largeRegionFraction}
}

// Assess measures global and large-region black coverage of b.
func (a *Assessor) Assess(b *Bitmap) Metrics {
	if b == nil || b.Width == 0 || b.Height == 0 {
		return Metrics{}
	}
	total := b.Width * b.Height

	mask := mempool.Bools.Get(total)
	defer mempool.Bools.Put(mask)
	black := 0
	for i, p := range b.Pix[:total] {
		if p == 0 {
			mask[i] = true
			black++
		}
	}

	comps, labels := connectedComponents(mask, b.Width, b.Height)
	mempool.Int32s.Put(labels)
	limit := a.fraction * float64(total)
	large := 0
	for _, c := range comps {
		if float64(c.area) > limit {
			large += c.area
		}
	}

	return Metrics{
		GlobalBlackRatio: float64(black) / float64(total) * 100,
		LargeBlackRatio:  float64(large) / float64(total) * 100,
	}
}
