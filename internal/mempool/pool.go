// Package mempool provides size-classed buffer pools for the per-pixel scratch space of the
// binarization and region-analysis passes.
package mempool

import "sync"

const step = 1024

// sizeClass rounds n up to the next multiple of 1024 so neighbouring sizes share a pool.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// Pool hands out zeroed slices of T bucketed by size class.
type Pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool
}

func (p *Pool[T]) pool(cls int) *sync.Pool {
	if sp, ok := p.classes.Load(cls); ok {
		return sp.(*sync.Pool)
	}
	sp, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return sp.(*sync.Pool)
}

// Get returns a zeroed slice of length n. Release it with Put when done.
func (p *Pool[T]) Get(n int) []T {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	bp := p.pool(cls).Get().(*[]T)
	buf := *bp
	if cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put returns buf to its size class. Slices whose capacity is not a size class are dropped.
func (p *Pool[T]) Put(buf []T) {
	c := cap(buf)
	if c == 0 || c != sizeClass(c) {
		return
	}
	buf = buf[:c]
	p.pool(c).Put(&buf)
}

var (
	// Bools backs foreground masks.
	Bools Pool[bool]
	// Int32s backs component label planes.
	Int32s Pool[int32]
	// Float64s backs separable filter intermediates.
	Float64s Pool[float64]
)
