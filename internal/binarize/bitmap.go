// Package binarize turns document crops into strict black/white bitmaps and measures how
// much of the result is covered by black.
package binarize

import (
	"image"
	"image/color"
)

// Bitmap is a single-channel image whose pixels are either 0 (black) or 255 (white).
type Bitmap struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewBitmap allocates a white bitmap.
func NewBitmap(w, h int) *Bitmap {
	b := &Bitmap{Pix: make([]uint8, w*h), Width: w, Height: h}
	for i := range b.Pix {
		b.Pix[i] = 255
	}
	return b
}

// ColorModel implements image.Image.
func (b *Bitmap) ColorModel() color.Model { return color.GrayModel }

// Bounds implements image.Image.
func (b *Bitmap) Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }

// At implements image.Image.
func (b *Bitmap) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.Gray{}
	}
	return color.Gray{Y: b.Pix[y*b.Width+x]}
}

// Set paints a pixel black (0) or white (255). Out-of-range coordinates are ignored.
func (b *Bitmap) Set(x, y int, black bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	if black {
		b.Pix[y*b.Width+x] = 0
	} else {
		b.Pix[y*b.Width+x] = 255
	}
}

// CountNonZero returns the number of white pixels.
func (b *Bitmap) CountNonZero() int {
	n := 0
	for _, p := range b.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// Gray returns a copy as *image.Gray.
func (b *Bitmap) Gray() *image.Gray {
	g := image.NewGray(b.Bounds())
	copy(g.Pix, b.Pix)
	return g
}

// FromGray binarizes g around 128, for re-reading persisted bitmaps.
func FromGray(g *image.Gray) *Bitmap {
	r := g.Bounds()
	b := &Bitmap{Pix: make([]uint8, r.Dx()*r.Dy()), Width: r.Dx(), Height: r.Dy()}
	for y := range b.Height {
		row := g.Pix[y*g.Stride:]
		for x := range b.Width {
			if row[x] >= 128 {
				b.Pix[y*b.Width+x] = 255
			}
		}
	}
	return b
}
