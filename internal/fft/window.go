// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the weighting applied to the sample block before it is
// transformed.
type WindowFunc int

// Available window functions.
const (
	WindowNone WindowFunc = iota
	WindowHamming
	WindowHann
	WindowBlackmanHarris
)

func (w WindowFunc) String() string {
	switch w {
	case WindowNone:
		return "none"
	case WindowHamming:
		return "hamming"
	case WindowHann:
		return "hann"
	case WindowBlackmanHarris:
		return "blackmanharris"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Valid reports whether w names a known window.
func (w WindowFunc) Valid() bool {
	return w >= WindowNone && w <= WindowBlackmanHarris
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names are rejected.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "rectangular", "":
		return WindowNone, nil
	case "hamming":
		return WindowHamming, nil
	case "hann", "hanning":
		return WindowHann, nil
	case "blackmanharris", "blackman-harris":
		return WindowBlackmanHarris, nil
	default:
		return WindowNone, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// WindowTable holds precomputed window coefficients. A nil table is the
// rectangular window and Apply leaves the block untouched.
type WindowTable []float64

// NewWindowTable computes size coefficients for kind. WindowNone returns a nil
// table.
//
// The Hamming table is 0.5*(1-cos(2*pi*i/(size+1))) with index 0 forced to 0.
// That is a raised cosine over size+1 points, not the textbook 0.54/0.46
// Hamming window. The band scaling was tuned against it.
func NewWindowTable(kind WindowFunc, size int) (WindowTable, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	switch kind {
	case WindowNone:
		return nil, nil
	case WindowHamming:
		table := make(WindowTable, size)
		for i := 1; i < size; i++ {
			table[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size+1)))
		}
		return table, nil
	case WindowHann, WindowBlackmanHarris:
		// gonum multiplies in place, so start from the rectangular window.
		table := make(WindowTable, size)
		for i := range table {
			table[i] = 1.0
		}
		if size == 1 {
			return table, nil
		}
		if kind == WindowHann {
			window.Hann(table)
		} else {
			window.BlackmanHarris(table)
		}
		return table, nil
	default:
		return nil, fmt.Errorf("unknown window function %v", kind)
	}
}

// Apply multiplies block by the table in place. Only the first
// min(len(block), len(t)) samples are weighted.
func (t WindowTable) Apply(block []float64) {
	if t == nil {
		return
	}
	n := min(len(block), len(t))
	for i := range n {
		block[i] *= t[i]
	}
}
