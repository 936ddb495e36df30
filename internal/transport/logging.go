// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strings"
	"sync/atomic"

	"rtspectrum/internal/analysis"
	"rtspectrum/internal/log"
)

// LoggingTransport writes a one-line summary of every Nth frame at debug
// level. It is meant for checking a capture setup without a consumer.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
	log   log.Logger
}

var _ Transport = (*LoggingTransport)(nil)

// NewLoggingTransport logs one frame out of every. Values below 1 log every
// frame.
func NewLoggingTransport(every int) *LoggingTransport {
	return &LoggingTransport{
		every: uint64(max(1, every)),
		log:   log.Named("Frames"),
	}
}

// Send logs data if it is the Nth item. Frames get a bar summary, anything
// else is printed with %v.
func (t *LoggingTransport) Send(data any) error {
	n := t.count.Add(1)
	if (n-1)%t.every != 0 || !t.log.Enabled(log.LevelDebug) {
		return nil
	}

	if frame, ok := data.(analysis.Frame); ok {
		t.log.Debugf("%s", Summarize(frame))
		return nil
	}
	t.log.Debugf("%v", data)
	return nil
}

// Close is a no-op.
func (t *LoggingTransport) Close() error { return nil }

// Summarize renders a frame as "#seq n=len peak=value@index t=ms |bars|".
// The bar string has one glyph per value, at most 64, sampled evenly.
func Summarize(frame analysis.Frame) string {
	const glyphs = " ▁▂▃▄▅▆▇█"
	levels := []rune(glyphs)

	peak, at := 0.0, -1
	for i, v := range frame.Values {
		if at < 0 || v > peak {
			peak, at = v, i
		}
	}

	width := min(len(frame.Values), 64)
	var bars strings.Builder
	for i := range width {
		v := frame.Values[i*len(frame.Values)/width]
		idx := int(v * float64(len(levels)-1))
		idx = max(0, min(idx, len(levels)-1))
		bars.WriteRune(levels[idx])
	}

	return fmt.Sprintf("#%d n=%d peak=%.3f@%d t=%.3fms |%s|",
		frame.Seq, frame.Len(), peak, at, frame.ElapsedMs(), bars.String())
}
