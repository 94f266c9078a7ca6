package binarize

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/scanqa/internal/mempool"
)

// Denoise names a noise-reduction strategy applied before thresholding.
type Denoise string

const (
	// DenoiseGaussian is a 3×3 Gaussian blur with the binomial kernel [1 2 1]/4.
	DenoiseGaussian Denoise = "gaussian"
	// DenoiseNLMeans is a non-local means filter (7×7 patch, 21×21 search window).
	DenoiseNLMeans Denoise = "nlmeans"
)

// ParseDenoise validates a strategy name. An empty name selects the default.
func ParseDenoise(s string) (Denoise, error) {
	switch Denoise(s) {
	case "":
		return DenoiseGaussian, nil
	case DenoiseGaussian, DenoiseNLMeans:
		return Denoise(s), nil
	default:
		return "", fmt.Errorf("unknown denoise strategy %q (want %q or %q)", s, DenoiseGaussian, DenoiseNLMeans)
	}
}

// gaussian3 is the kernel OpenCV derives for a 3-tap Gaussian when sigma is left at 0.
var gaussian3 = [3]float64{0.25, 0.5, 0.25}

// Non-local means radii.
const (
	nlmTemplate = 3
	nlmSearch   = 10
)

// reflect101 mirrors an out-of-range index without repeating the edge pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// gaussianBlur3 applies a separable 3×3 Gaussian with reflected borders.
func gaussianBlur3(src *image.Gray) *image.Gray {
	r := src.Bounds()
	w, h := r.Dx(), r.Dy()
	k := gaussian3

	tmp := mempool.Float64s.Get(w * h)
	defer mempool.Float64s.Put(tmp)
	for y := range h {
		row := src.Pix[y*src.Stride:]
		for x := range w {
			tmp[y*w+x] = k[0]*float64(row[reflect101(x-1, w)]) +
				k[1]*float64(row[x]) +
				k[2]*float64(row[reflect101(x+1, w)])
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		up, down := reflect101(y-1, h), reflect101(y+1, h)
		for x := range w {
			v := k[0]*tmp[up*w+x] + k[1]*tmp[y*w+x] + k[2]*tmp[down*w+x]
			dst.Pix[y*dst.Stride+x] = clampByte(v)
		}
	}
	return dst
}

// nlMeans replaces every pixel by the average of its search window, weighted by how
// similar each candidate's 7×7 neighbourhood is to its own. Patch distances for one
// offset are box sums over an integral image of squared differences.
func nlMeans(src *image.Gray, strength float64) *image.Gray {
	r := src.Bounds()
	w, h := r.Dx(), r.Dy()
	h2 := strength * strength
	if h2 <= 0 {
		h2 = 1
	}
	const side = 2*nlmTemplate + 1
	patchArea := float64(side * side)

	pad := nlmSearch + nlmTemplate
	pw, ph := w+2*pad, h+2*pad
	padded := mempool.Float64s.Get(pw * ph)
	defer mempool.Float64s.Put(padded)
	for y := range ph {
		row := src.Pix[reflect101(y-pad, h)*src.Stride:]
		for x := range pw {
			padded[y*pw+x] = float64(row[reflect101(x-pad, w)])
		}
	}

	sumW := mempool.Float64s.Get(w * h)
	defer mempool.Float64s.Put(sumW)
	sumV := mempool.Float64s.Get(w * h)
	defer mempool.Float64s.Put(sumV)

	// integral has a zero first row and column; cell (y+1, x+1) sums rows 0..y, cols 0..x
	// of the squared-difference plane, whose origin is pixel (-nlmTemplate, -nlmTemplate).
	iw, ih := w+side, h+side
	integral := mempool.Float64s.Get(iw * ih)
	defer mempool.Float64s.Put(integral)

	for dy := -nlmSearch; dy <= nlmSearch; dy++ {
		for dx := -nlmSearch; dx <= nlmSearch; dx++ {
			shift := dy*pw + dx
			for y := range ih - 1 {
				base := (y-nlmTemplate+pad)*pw - nlmTemplate + pad
				rowSum := 0.0
				for x := range iw - 1 {
					d := padded[base+x] - padded[base+x+shift]
					rowSum += d * d
					integral[(y+1)*iw+x+1] = integral[y*iw+x+1] + rowSum
				}
			}
			for y := range h {
				for x := range w {
					d2 := integral[(y+side)*iw+x+side] - integral[y*iw+x+side] -
						integral[(y+side)*iw+x] + integral[y*iw+x]
					wt := math.Exp(-(d2 / patchArea) / h2)
					i := y*w + x
					sumW[i] += wt
					sumV[i] += wt * padded[(y+pad)*pw+x+pad+shift]
				}
			}
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			i := y*w + x
			dst.Pix[y*dst.Stride+x] = clampByte(sumV[i] / sumW[i])
		}
	}
	return dst
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
