package support

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// Paper boxes of the default synthetic document in 640×640 letterboxed frame space.
var (
	fullPaper  = utils.NewBox(96, 152, 544, 488)
	leftPaper  = utils.NewBox(96, 152, 318, 488)
	rightPaper = utils.NewBox(322, 152, 544, 488)
)

// ScriptedDetector returns whatever detections the current scenario configured.
type ScriptedDetector struct {
	mu   sync.Mutex
	dets []locator.RawDetection
	err  error
}

// Detect implements locator.Detector.
func (d *ScriptedDetector) Detect(context.Context, image.Image) ([]locator.RawDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]locator.RawDetection(nil), d.dets...), nil
}

func (d *ScriptedDetector) set(err error, dets ...locator.RawDetection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dets, d.err = dets, err
}

// ScriptedEngine reads every document as two lines at a fixed confidence. A malformed
// engine reports more regions than lines, which the extractor treats as a transient
// mismatch and retries.
type ScriptedEngine struct {
	mu         sync.Mutex
	confidence float64
	malformed  bool
	calls      int
}

// Engine adapts s to ocrquality.Engine.
func (s *ScriptedEngine) Engine() ocrquality.Engine {
	return ocrquality.EngineFunc(func(context.Context, image.Image, string) (*ocrquality.Recognition, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls++
		rec := &ocrquality.Recognition{
			Regions: []image.Rectangle{image.Rect(0, 0, 100, 20), image.Rect(0, 30, 100, 50)},
			Lines: []ocrquality.Line{
				{Text: "PASSPORT", Confidence: s.confidence},
				{Text: "IVANOV", Confidence: s.confidence},
			},
		}
		if s.malformed {
			rec.Lines = rec.Lines[:1]
		}
		return rec, nil
	})
}

func (s *ScriptedEngine) set(confidence float64, malformed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confidence, s.malformed = confidence, malformed
}

// Calls reports how many recognitions ran.
func (s *ScriptedEngine) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errModelUnavailable = errors.New("model session unavailable")
