// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestCompressorSensitivity(t *testing.T) {
	tests := []struct {
		user float64
		want float64
	}{
		{46.81, 10 / 46.81},
		{10, 1},
		{1, 10},
		{0.25, 10}, // below 1 is treated as 1
	}

	for _, tt := range tests {
		if got := NewCompressor(tt.user).Sensitivity(); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NewCompressor(%v).Sensitivity() = %v, want %v", tt.user, got, tt.want)
		}
	}
}

func TestCompress(t *testing.T) {
	c := NewCompressor(10) // s = 1

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"Zero floor", 0, 0},
		{"Negative", -0.5, 0},
		{"NaN", math.NaN(), 0},
		{"Unity", 1, 1},
		{"Above unity clamps", 7, 1},
		{"Tenth", 0.1, 0},
		{"Half", 0.5, 1 + math.Log10(0.5)},
		{"Tiny", 1e-9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Compress(tt.in)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Compress(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got < 0 || got > 1 || math.IsNaN(got) {
				t.Errorf("Compress(%v) = %v outside [0, 1]", tt.in, got)
			}
		})
	}
}

func TestCompressorApply(t *testing.T) {
	c := NewCompressor(46.81)
	values := []float64{0, 1e-3, 0.5, 2}
	c.Apply(values)

	if values[0] != 0 {
		t.Errorf("values[0] = %v, want 0", values[0])
	}
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			t.Errorf("compression not monotonic: %v", values)
		}
	}
	if values[3] != 1 {
		t.Errorf("values[3] = %v, want 1", values[3])
	}
}
