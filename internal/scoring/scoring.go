// Package scoring fuses OCR confidence and binarization ratios into a single quality score.
package scoring

import "fmt"

// Weights are the coefficients of the linear score.
type Weights struct {
	Alpha float64 `json:"alpha"` // OCR confidence
	Beta  float64 `json:"beta"`  // global black ratio
	Gamma float64 `json:"gamma"` // large black region ratio
}

// DefaultWeights returns α=1, β=0.5, γ=1.
func DefaultWeights() Weights {
	return Weights{Alpha: 1, Beta: 0.5, Gamma: 1}
}

// Validate rejects negative weights, which would make the score non-monotonic.
func (w Weights) Validate() error {
	if w.Alpha < 0 || w.Beta < 0 || w.Gamma < 0 {
		return fmt.Errorf("scoring weights must be non-negative, got %+v", w)
	}
	return nil
}

// Score computes α·ocr − β·gbr − γ·lbr. All inputs are percentages.
func Score(ocr, gbr, lbr float64, w Weights) float64 {
	return w.Alpha*ocr - w.Beta*gbr - w.Gamma*lbr
}

// Category is the coarse verdict of a document.
type Category string

const (
	Excellent Category = "Excellent"
	Moderate  Category = "Moderate"
	Poor      Category = "Poor"
	// Failed is assigned by callers when recognition exhausted its retries.
	Failed Category = "Failed"
)

// Category thresholds on the score.
const (
	ExcellentMin = 64.0
	ModerateMin  = 50.0
)

// Categorize maps a score to Excellent, Moderate or Poor.
func Categorize(score float64) Category {
	switch {
	case score >= ExcellentMin:
		return Excellent
	case score >= ModerateMin:
		return Moderate
	default:
		return Poor
	}
}
