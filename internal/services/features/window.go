package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// window is a fixed-capacity circular buffer over the trailing observations
// of one partition. Nulls (NaN) occupy a slot but are skipped by the
// statistics, so a window is usable as soon as it holds one valid value.
type window struct {
	buf     []float64
	next    int
	size    int
	scratch []float64
}

func newWindow(capacity int) *window {
	return &window{
		buf:     make([]float64, capacity),
		scratch: make([]float64, 0, capacity),
	}
}

func (w *window) push(v float64) {
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

func (w *window) reset() {
	w.next = 0
	w.size = 0
}

func (w *window) valid() []float64 {
	w.scratch = w.scratch[:0]
	for i := 0; i < w.size; i++ {
		if v := w.buf[i]; !math.IsNaN(v) {
			w.scratch = append(w.scratch, v)
		}
	}
	return w.scratch
}

// mean of the valid values; NaN when there are none.
func (w *window) mean() float64 {
	vals := w.valid()
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// std is the sample standard deviation (n-1) of the valid values; NaN below two.
func (w *window) std() float64 {
	vals := w.valid()
	if len(vals) < 2 {
		return math.NaN()
	}
	return stat.StdDev(vals, nil)
}
