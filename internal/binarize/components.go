package binarize

import "github.com/MeKo-Tech/scanqa/internal/mempool"

// component holds the area and bounding box of one connected component.
type component struct {
	area int
	minX int
	minY int
	maxX int
	maxY int
}

var neighbors8 = [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

// connectedComponents labels the 8-connected components of the true cells of mask.
// labels holds 0 for background and 1..len(comps) for components; it comes from
// mempool.Int32s and may be returned there once the caller is done with it.
func connectedComponents(mask []bool, w, h int) ([]component, []int32) {
	labels := mempool.Int32s.Get(w * h)
	var comps []component
	queue := make([]int, 0, 64)
	var label int32

	for start, on := range mask {
		if !on || labels[start] != 0 {
			continue
		}
		label++
		sx, sy := start%w, start/w
		c := component{minX: sx, minY: sy, maxX: sx, maxY: sy}
		labels[start] = label
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			ci := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := ci%w, ci/w
			c.area++
			c.minX, c.maxX = min(c.minX, cx), max(c.maxX, cx)
			c.minY, c.maxY = min(c.minY, cy), max(c.maxY, cy)

			for _, d := range neighbors8 {
				nx, ny := cx+d[0], cy+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && labels[ni] == 0 {
					labels[ni] = label
					queue = append(queue, ni)
				}
			}
		}
		comps = append(comps, c)
	}
	return comps, labels
}
