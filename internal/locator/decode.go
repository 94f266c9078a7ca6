package locator

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// decodeOutput turns a raw YOLO output tensor into detections in frame coordinates.
//
// Two layouts are accepted:
//   - [1, N, 6] end-to-end rows of x1, y1, x2, y2, score, class (NMS already applied)
//   - [1, 4+C, A] anchor columns of cx, cy, w, h followed by C class scores
//
// When labels are known, a middle dimension of 4+len(labels) selects the anchor
// layout even if A happens to be 6.
func decodeOutput(data []float32, shape []int64, conf, iou float64, labels []string) ([]RawDetection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unsupported detector output shape %v", shape)
	}
	rows, cols := int(shape[1]), int(shape[2])
	if len(data) < rows*cols {
		return nil, fmt.Errorf("detector output has %d values, shape %v needs %d", len(data), shape, rows*cols)
	}

	anchors := len(labels) > 0 && rows == 4+len(labels)
	switch {
	case !anchors && cols == 6:
		return decodeEndToEnd(data, rows, conf, labels), nil
	case anchors || rows > 4:
		dets := decodeAnchors(data, rows-4, cols, conf, labels)
		return nonMaxSuppression(dets, iou), nil
	default:
		return nil, fmt.Errorf("unsupported detector output shape %v", shape)
	}
}

func decodeEndToEnd(data []float32, n int, conf float64, labels []string) []RawDetection {
	var out []RawDetection
	for i := range n {
		row := data[i*6 : i*6+6]
		score := float64(row[4])
		if score < conf {
			continue
		}
		cls := int(row[5])
		out = append(out, RawDetection{
			Box:        utils.NewBox(float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])),
			ClassID:    cls,
			Label:      labelFor(cls, labels),
			Confidence: score,
		})
	}
	sortByConfidence(out)
	return out
}

func decodeAnchors(data []float32, classes, anchors int, conf float64, labels []string) []RawDetection {
	var out []RawDetection
	for a := range anchors {
		best, bestScore := -1, float32(0)
		for c := range classes {
			if s := data[(4+c)*anchors+a]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < conf {
			continue
		}
		cx, cy := float64(data[a]), float64(data[anchors+a])
		w, h := float64(data[2*anchors+a]), float64(data[3*anchors+a])
		out = append(out, RawDetection{
			Box:        utils.NewBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2),
			ClassID:    best,
			Label:      labelFor(best, labels),
			Confidence: float64(bestScore),
		})
	}
	return out
}

func labelFor(cls int, labels []string) string {
	if cls >= 0 && cls < len(labels) && labels[cls] != "" {
		return labels[cls]
	}
	return fmt.Sprintf("class_%d", cls)
}

func sortByConfidence(dets []RawDetection) {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Confidence > dets[j].Confidence })
}

// nonMaxSuppression keeps the highest-confidence box of every overlapping group,
// regardless of class: one physical document gets a single label.
func nonMaxSuppression(dets []RawDetection, iouThreshold float64) []RawDetection {
	sortByConfidence(dets)
	if len(dets) <= 1 {
		return dets
	}
	suppressed := make([]bool, len(dets))
	kept := make([]RawDetection, 0, len(dets))
	for a := range dets {
		if suppressed[a] {
			continue
		}
		kept = append(kept, dets[a])
		for b := a + 1; b < len(dets); b++ {
			if !suppressed[b] && dets[a].Box.IoU(dets[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}
