// Package history keeps the bounded series of snapshots behind the level chart.
package history

import "github.com/vnykmshr/bucketwatch/pkg/model"

// DefaultSize is the number of points kept for the chart.
const DefaultSize = 30

// Buffer is an ordered, bounded sequence of history points.
//
// Buffer is a value: Append and Clear return a new Buffer and never touch the
// receiver's backing array, so a Buffer held by a reader is stable while a
// writer builds the next one. The zero value is an empty buffer of DefaultSize.
type Buffer struct {
	points []model.HistoryPoint
	max    int
}

// New returns an empty buffer holding at most size points.
// A non-positive size selects DefaultSize.
func New(size int) Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return Buffer{max: size}
}

// Append returns a buffer with p added at the end, evicting the oldest
// point when the buffer is full.
func (b Buffer) Append(p model.HistoryPoint) Buffer {
	keep := b.points
	if len(keep) >= b.Cap() {
		keep = keep[len(keep)-b.Cap()+1:]
	}

	next := make([]model.HistoryPoint, len(keep), len(keep)+1)
	copy(next, keep)
	next = append(next, p)

	return Buffer{points: next, max: b.max}
}

// Clear returns an empty buffer with the same capacity.
func (b Buffer) Clear() Buffer {
	return Buffer{max: b.max}
}

// Len returns the number of points held.
func (b Buffer) Len() int {
	return len(b.points)
}

// Cap returns the maximum number of points held.
func (b Buffer) Cap() int {
	if b.max <= 0 {
		return DefaultSize
	}
	return b.max
}

// Points returns a copy of the points, oldest first.
func (b Buffer) Points() []model.HistoryPoint {
	out := make([]model.HistoryPoint, len(b.points))
	copy(out, b.points)
	return out
}

// Last returns the newest point.
func (b Buffer) Last() (model.HistoryPoint, bool) {
	if len(b.points) == 0 {
		return model.HistoryPoint{}, false
	}
	return b.points[len(b.points)-1], true
}

// Levels returns the current_level series, oldest first.
func (b Buffer) Levels() []float64 {
	out := make([]float64, len(b.points))
	for i, p := range b.points {
		out[i] = float64(p.CurrentLevel)
	}
	return out
}
