// Package locator finds document regions in an image and crops them out.
package locator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/scanqa/internal/utils"
)

var (
	// ErrNoDocumentDetected marks the valid empty outcome.
	ErrNoDocumentDetected = errors.New("no document detected")
	// ErrDetectionFailed wraps failures of the detection capability itself.
	ErrDetectionFailed = errors.New("document detection failed")
)

// DefaultInputSize is the side of the square inference frame.
const DefaultInputSize = 640

// Detector finds labelled boxes in a letterboxed frame. Boxes are in frame coordinates.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]RawDetection, error)
}

// Saver persists crop artifacts and returns a stable handle for them.
type Saver interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// RawDetection is a detector box before remapping.
type RawDetection struct {
	Box        utils.Box
	ClassID    int
	Label      string
	Confidence float64
}

// Detection is a document box in original-image pixel space.
type Detection struct {
	Box        utils.Box `json:"box"`
	DocType    string    `json:"doc_type"`
	Confidence float64   `json:"confidence"`
}

// Region is a cropped document with its provenance.
type Region struct {
	Detection
	Image    image.Image
	Artifact string
}

// Mode selects how many documents Locate returns.
type Mode int

const (
	// ModeSingle keeps only the highest-confidence document.
	ModeSingle Mode = iota
	// ModeMulti keeps every valid document.
	ModeMulti
)

func (m Mode) String() string {
	if m == ModeMulti {
		return "multi"
	}
	return "single"
}

// Status tags an Outcome.
type Status int

const (
	StatusDetected Status = iota
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDetected:
		return "detected"
	case StatusEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Outcome is the tagged result of Locate: Detected carries Regions, Failed carries Cause,
// Empty carries neither.
type Outcome struct {
	Status  Status
	Regions []Region
	Cause   error
}

// Err maps the outcome to an error for callers that only need success/failure.
func (o Outcome) Err() error {
	switch o.Status {
	case StatusEmpty:
		return ErrNoDocumentDetected
	case StatusFailed:
		return o.Cause
	default:
		return nil
	}
}

func failed(err error) Outcome { return Outcome{Status: StatusFailed, Cause: err} }

// Localizer letterboxes an image, runs the detector, and crops the detected documents.
type Localizer struct {
	detector  Detector
	saver     Saver
	inputSize int
}

// NewLocalizer creates a localizer. saver may be nil, in which case crops are not persisted.
func NewLocalizer(detector Detector, saver Saver, inputSize int) *Localizer {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	return &Localizer{detector: detector, saver: saver, inputSize: inputSize}
}

// Locate detects documents in img. name is used to derive artifact names.
func (l *Localizer) Locate(ctx context.Context, img image.Image, name string, mode Mode) Outcome {
	if img == nil {
		return failed(&utils.ImageProcessingError{Operation: "locate", Err: errors.New("input image is nil")})
	}

	frame, lb, err := utils.LetterboxImage(img, l.inputSize, utils.LetterboxFill)
	if err != nil {
		return failed(err)
	}

	raw, err := l.detector.Detect(ctx, frame)
	if err != nil {
		return failed(fmt.Errorf("%w: %w", ErrDetectionFailed, err))
	}
	if len(raw) == 0 {
		slog.Debug("no documents detected", "name", name)
		return Outcome{Status: StatusEmpty}
	}

	b := img.Bounds()
	dets := make([]Detection, 0, len(raw))
	for _, r := range raw {
		box, ok := Remap(r.Box, lb, b.Dx(), b.Dy())
		if !ok {
			slog.Debug("dropping detection outside image", "name", name, "label", r.Label)
			continue
		}
		dets = append(dets, Detection{Box: box, DocType: r.Label, Confidence: r.Confidence})
	}
	if len(dets) == 0 {
		return Outcome{Status: StatusEmpty}
	}

	sortDetections(dets)
	if mode == ModeSingle {
		dets = dets[:1]
	}

	regions := make([]Region, 0, len(dets))
	for i, d := range dets {
		// Detections are relative to the image origin; shift into the image's bounds.
		shifted := utils.Box{
			MinX: d.Box.MinX + float64(b.Min.X),
			MinY: d.Box.MinY + float64(b.Min.Y),
			MaxX: d.Box.MaxX + float64(b.Min.X),
			MaxY: d.Box.MaxY + float64(b.Min.Y),
		}
		crop := utils.CropImageBox(img, shifted)
		if crop.Bounds().Empty() {
			continue
		}
		region := Region{Detection: d, Image: crop}
		if l.saver != nil {
			handle, err := l.persist(ctx, crop, cropName(name, i))
			if err != nil {
				return failed(err)
			}
			region.Artifact = handle
		}
		regions = append(regions, region)
	}
	if len(regions) == 0 {
		return Outcome{Status: StatusEmpty}
	}

	slog.Debug("documents located", "name", name, "mode", mode.String(), "count", len(regions))
	return Outcome{Status: StatusDetected, Regions: regions}
}

func (l *Localizer) persist(ctx context.Context, img image.Image, name string) (string, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return "", err
	}
	handle, err := l.saver.Save(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("persist crop: %w", err)
	}
	return handle, nil
}

func sortDetections(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Confidence > dets[j].Confidence })
}

func cropName(name string, idx int) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "document"
	}
	return fmt.Sprintf("%s_crop%d.png", base, idx+1)
}
