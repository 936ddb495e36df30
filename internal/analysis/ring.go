// SPDX-License-Identifier: MIT
package analysis

// RingBuffer keeps the most recent Len() mono samples. It is allocated once
// per configuration and is not safe for concurrent use.
type RingBuffer struct {
	data   []float64
	cursor int // next write position, in [0, len(data))
}

// NewRingBuffer allocates a zeroed ring of size samples. size must be
// positive.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		panic("analysis: ring buffer size must be positive")
	}
	return &RingBuffer{data: make([]float64, size)}
}

// Write overwrites the oldest sample with x.
func (r *RingBuffer) Write(x float64) {
	r.data[r.cursor] = x
	r.cursor++
	if r.cursor == len(r.data) {
		r.cursor = 0
	}
}

// Len returns the ring capacity.
func (r *RingBuffer) Len() int { return len(r.data) }

// Cursor returns the next write position.
func (r *RingBuffer) Cursor() int { return r.cursor }

// Snapshot linearizes the ring into dst in chronological order: the oldest
// Len()-Cursor() samples, then the Cursor() newest, then zeros up to
// len(dst). A dst shorter than Len() is replaced by a new slice of Len().
func (r *RingBuffer) Snapshot(dst []float64) []float64 {
	if len(dst) < len(r.data) {
		dst = make([]float64, len(r.data))
	}

	n := copy(dst, r.data[r.cursor:])
	copy(dst[n:], r.data[:r.cursor])
	clear(dst[len(r.data):])

	return dst
}

// Reset zeroes the contents and rewinds the cursor.
func (r *RingBuffer) Reset() {
	clear(r.data)
	r.cursor = 0
}
