package binarize

import "image"

// OtsuThreshold returns the threshold that maximizes between-class variance of g's histogram.
func OtsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	r := g.Bounds()
	total := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.Pix[(y-r.Min.Y)*g.Stride : (y-r.Min.Y)*g.Stride+r.Dx()]
		for _, v := range row {
			hist[v]++
		}
		total += r.Dx()
	}
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var (
		sumB    float64
		wB      int
		best    float64
		bestIdx int
	)
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			bestIdx = t
		}
	}
	return uint8(bestIdx)
}

// Threshold maps pixels above t to 255 and the rest to 0.
func Threshold(g *image.Gray, t uint8) *Bitmap {
	r := g.Bounds()
	b := &Bitmap{Pix: make([]uint8, r.Dx()*r.Dy()), Width: r.Dx(), Height: r.Dy()}
	for y := range b.Height {
		row := g.Pix[y*g.Stride:]
		for x := range b.Width {
			if row[x] > t {
				b.Pix[y*b.Width+x] = 255
			}
		}
	}
	return b
}
