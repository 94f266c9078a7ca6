package locator

import (
	"math"

	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// Remap maps a box from letterboxed frame coordinates back to original-image pixels:
// x = (x_frame - pad) / scale, clamped to [0, dim]. It reports false when the clamped box
// is empty or inverted; such detections must be discarded.
func Remap(box utils.Box, lb utils.Letterbox, origW, origH int) (utils.Box, bool) {
	if lb.Scale <= 0 || origW <= 0 || origH <= 0 {
		return utils.Box{}, false
	}

	w, h := float64(origW), float64(origH)
	out := utils.Box{
		MinX: clamp((box.MinX-lb.PadLeft)/lb.Scale, w),
		MinY: clamp((box.MinY-lb.PadTop)/lb.Scale, h),
		MaxX: clamp((box.MaxX-lb.PadLeft)/lb.Scale, w),
		MaxY: clamp((box.MaxY-lb.PadTop)/lb.Scale, h),
	}
	if out.MaxX <= out.MinX || out.MaxY <= out.MinY {
		return utils.Box{}, false
	}
	return out, true
}

func clamp(v, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), hi)
}
