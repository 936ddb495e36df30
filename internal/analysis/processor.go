// SPDX-License-Identifier: MIT
package analysis

import "time"

// Processor is implemented by anything that consumes raw interleaved PCM
// chunks. It is called from the capture thread, once per device buffer, so
// implementations must be quick and must not block.
type Processor interface {
	Process(buf []byte, offset, count int)
}

// Frame is one emitted band vector. Values is owned by the receiver and is
// never touched by the pipeline after emission.
type Frame struct {
	Seq     uint64        // 1-based emission counter
	Values  []float64     // Bands values, or the raw spectrum when banding is off
	Elapsed time.Duration // processing time of the chunk that produced it
}

// Len returns the number of values.
func (f Frame) Len() int { return len(f.Values) }

// ElapsedMs returns Elapsed in fractional milliseconds.
func (f Frame) ElapsedMs() float64 {
	return float64(f.Elapsed) / float64(time.Millisecond)
}

// Observer receives frames synchronously on the processing thread. Work that
// can block belongs on another goroutine.
type Observer interface {
	OnFrame(Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Frame)

// OnFrame calls f(frame).
func (f ObserverFunc) OnFrame(frame Frame) { f(frame) }

// Stats counts pipeline outcomes. Ignored chunks are those that decoded to
// nothing (malformed, empty or arriving before Apply); dropped frames are
// those whose processing panicked.
type Stats struct {
	Frames  uint64
	Dropped uint64
	Ignored uint64
}
