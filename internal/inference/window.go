// Package inference runs a trained classifier on live frames: it keeps the
// rolling window of recent feature vectors, gates predictions on
// confidence and drives the capture loop.
package inference

import "github.com/ayusman/mudra/internal/feature"

// Window is a bounded FIFO of the most recent vectors. Once full, each push
// drops the oldest entry.
type Window struct {
	buf  []feature.Vector
	size int
}

// NewWindow creates a window holding up to size vectors. Sizes below one
// are treated as one.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		buf:  make([]feature.Vector, 0, size),
		size: size,
	}
}

// Push appends v, evicting the oldest vector when the window is full.
func (w *Window) Push(v feature.Vector) {
	if len(w.buf) < w.size {
		w.buf = append(w.buf, v)
		return
	}
	copy(w.buf, w.buf[1:])
	w.buf[len(w.buf)-1] = v
}

// Full reports whether the window holds size vectors.
func (w *Window) Full() bool {
	return len(w.buf) == w.size
}

// Len returns the number of vectors held.
func (w *Window) Len() int {
	return len(w.buf)
}

// Size returns the capacity.
func (w *Window) Size() int {
	return w.size
}

// Snapshot returns the held vectors, oldest first, as rows that do not
// alias the window.
func (w *Window) Snapshot() [][]float64 {
	rows := make([][]float64, len(w.buf))
	for i, v := range w.buf {
		rows[i] = v.Clone()
	}
	return rows
}

// Reset empties the window.
func (w *Window) Reset() {
	w.buf = w.buf[:0]
}
