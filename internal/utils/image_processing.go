package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// LetterboxFill is the constant mid-gray used to pad letterboxed frames.
var LetterboxFill = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox records how an original image was fitted into a square inference frame.
type Letterbox struct {
	Size    int
	Scale   float64
	PadLeft float64
	PadTop  float64
}

// Forward maps a box from original-image space into frame space.
func (l Letterbox) Forward(b Box) Box {
	return Box{
		MinX: b.MinX*l.Scale + l.PadLeft,
		MinY: b.MinY*l.Scale + l.PadTop,
		MaxX: b.MaxX*l.Scale + l.PadLeft,
		MaxY: b.MaxY*l.Scale + l.PadTop,
	}
}

// LetterboxImage resizes img to fit a size×size square preserving aspect ratio and pads
// the remainder with fill. Padding is split evenly with the odd pixel on the right/bottom.
func LetterboxImage(img image.Image, size int, fill color.Color) (image.Image, Letterbox, error) {
	if img == nil {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("input image is nil")}
	}
	if size <= 0 {
		return nil, Letterbox{}, &ImageProcessingError{
			Operation: "letterbox",
			Err:       fmt.Errorf("invalid frame size: %d", size),
		}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, Letterbox{}, &ImageProcessingError{
			Operation: "letterbox",
			Err:       fmt.Errorf("invalid image dimensions: %dx%d", w, h),
		}
	}

	scale := float64(size) / float64(max(w, h))
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))
	left := (size - newW) / 2
	top := (size - newH) / 2

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	frame := imaging.New(size, size, fill)
	frame = imaging.Paste(frame, resized, image.Pt(left, top))

	return frame, Letterbox{
		Size:    size,
		Scale:   scale,
		PadLeft: float64(left),
		PadTop:  float64(top),
	}, nil
}

// NormalizeImage converts an image to an NCHW float32 RGB tensor scaled to [0,1].
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	width := nrgba.Rect.Dx()
	height := nrgba.Rect.Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}

	plane := width * height
	tensor := make([]float32, 3*plane)
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			idx := y*width + x
			p := row[x*4:]
			tensor[idx] = float32(p[0]) / 255.0
			tensor[plane+idx] = float32(p[1]) / 255.0
			tensor[2*plane+idx] = float32(p[2]) / 255.0
		}
	}

	return tensor, width, height, nil
}
