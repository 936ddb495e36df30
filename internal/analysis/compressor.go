// SPDX-License-Identifier: MIT
package analysis

import "math"

// Compressor maps band energy onto a bounded visual intensity with a log
// curve:
//
//	out = max(0, s*log10(clamp(x, 0, 1)) + 1),  s = 10/max(1, sensitivity)
//
// Input at or below 0 (and NaN) maps to exactly 0 without evaluating the
// logarithm. Output is always in [0, 1].
type Compressor struct {
	s float64
}

// NewCompressor stores the inverted form of the user-facing sensitivity.
func NewCompressor(sensitivity float64) Compressor {
	return Compressor{s: 10 / math.Max(1, sensitivity)}
}

// Sensitivity returns the inverted, internal sensitivity.
func (c Compressor) Sensitivity() float64 { return c.s }

// Compress maps a single value.
func (c Compressor) Compress(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		x = 1
	}
	return math.Max(0, c.s*math.Log10(x)+1)
}

// Apply compresses values in place.
func (c Compressor) Apply(values []float64) {
	for i, x := range values {
		values[i] = c.Compress(x)
	}
}
