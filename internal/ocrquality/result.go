package ocrquality

// Tier is a coarse readability level derived from the average confidence.
type Tier string

const (
	TierExcellent Tier = "Excellent"
	TierModerate  Tier = "Moderate"
	TierPoor      Tier = "Poor"
	// TierFailed marks the sentinel result returned after exhausting retries.
	TierFailed Tier = "Failed"
)

// FailedLabel is the assessment text of the sentinel result.
const FailedLabel = "OCR failed after multiple retries"

// Tier thresholds on the 0-100 average confidence.
const (
	ExcellentThreshold = 80.0
	ModerateThreshold  = 60.0
)

// TierFor maps an average confidence percentage to a tier.
func TierFor(avg float64) Tier {
	switch {
	case avg >= ExcellentThreshold:
		return TierExcellent
	case avg >= ModerateThreshold:
		return TierModerate
	default:
		return TierPoor
	}
}

// Label is the human-readable assessment for the tier.
func (t Tier) Label() string {
	if t == TierFailed {
		return FailedLabel
	}
	return string(t) + " readability"
}

// Result summarizes recognition of one document.
type Result struct {
	Text              string  `json:"text"`
	AverageConfidence float64 `json:"average_confidence"`
	Tier              Tier    `json:"tier"`
	Lines             []Line  `json:"lines,omitempty"`
	Attempts          int     `json:"attempts"`
}

// Failed reports whether r is the retry-exhaustion sentinel.
func (r Result) Failed() bool { return r.Tier == TierFailed }

// FailedResult is the sentinel returned when no attempt produced a usable result.
func FailedResult(attempts int) Result {
	return Result{Text: "", AverageConfidence: 0, Tier: TierFailed, Attempts: attempts}
}

// AverageConfidence is the mean line confidence as a 0-100 percentage, 0 for no lines.
func AverageConfidence(lines []Line) float64 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines)) * 100
}
