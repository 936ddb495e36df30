// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"slices"
)

// BandMapper folds a linear spectrum into logarithmically spaced bands.
// Each bin contributes to a band in proportion to the frequency overlap
// between them, so a bin straddling a band edge is split rather than
// snapped to one side.
//
// Band k covers (bound[k-1], bound[k]] with
//
//	step     = log2(freqMax/freqMin) / bands
//	bound[0] = freqMin * 2^(step/2)
//	bound[k] = bound[k-1] * 2^step
//
// so the top edge is freqMax * 2^(-step/2), half a step below freqMax.
type BandMapper struct {
	bounds     []float64
	df         float64 // bin width in Hz
	freqMin    float64
	bandScalar float64
	startBin   int
	lastBin    int // bufferSize/2
}

// NewBandMapper precomputes the band table for a transform of bufferSize
// points at sampleRate.
func NewBandMapper(sampleRate, bufferSize, bands int, freqMin, freqMax float64) (*BandMapper, error) {
	if bands < 1 {
		return nil, fmt.Errorf("band count must be positive, got %d", bands)
	}
	if sampleRate <= 0 || bufferSize < 1 {
		return nil, fmt.Errorf("invalid transform: %d Hz, %d points", sampleRate, bufferSize)
	}
	if !(freqMin > 0 && freqMin < freqMax) {
		return nil, fmt.Errorf("invalid band range [%g, %g] Hz", freqMin, freqMax)
	}

	step := math.Log2(freqMax/freqMin) / float64(bands)
	bounds := make([]float64, bands)
	bounds[0] = freqMin * math.Pow(2, step/2)
	grow := math.Pow(2, step)
	for k := 1; k < bands; k++ {
		bounds[k] = bounds[k-1] * grow
	}

	df := float64(sampleRate) / float64(bufferSize)

	return &BandMapper{
		bounds:     bounds,
		df:         df,
		freqMin:    freqMin,
		bandScalar: 2 / float64(sampleRate),
		startBin:   max(0, int(math.Floor(freqMin/df-0.5))),
		lastBin:    bufferSize / 2,
	}, nil
}

// Bands returns the number of output bands.
func (m *BandMapper) Bands() int { return len(m.bounds) }

// Boundaries returns a copy of the upper band edges in Hz.
func (m *BandMapper) Boundaries() []float64 { return slices.Clone(m.bounds) }

// Map accumulates spectrum into dst and returns dst[:Bands()]. spectrum is
// treated as nonnegative per-bin energy; its convention (power or magnitude)
// only changes the scale of the output.
//
// The walk merges the ascending bin edges (i+0.5)*df with the band edges,
// always advancing whichever comes first. On a tie the bin advances. It stops
// when either sequence runs out; bands it never reaches stay 0.
func (m *BandMapper) Map(dst, spectrum []float64) []float64 {
	bands := len(m.bounds)
	if cap(dst) < bands {
		dst = make([]float64, bands)
	}
	dst = dst[:bands]
	clear(dst)

	last := min(m.lastBin, len(spectrum)-1)
	iBin, iBand := m.startBin, 0
	f0 := m.freqMin

	for iBin <= last && iBand < bands {
		fLin := (float64(iBin) + 0.5) * m.df
		fLog := m.bounds[iBand]

		if fLin <= fLog {
			dst[iBand] += (fLin - f0) * spectrum[iBin] * m.bandScalar
			f0 = fLin
			iBin++
		} else {
			dst[iBand] += (fLog - f0) * spectrum[iBin] * m.bandScalar
			f0 = fLog
			iBand++
		}
	}

	return dst
}

// BlockAverage is the banding used without a transform: samples is cut into
// len(dst) contiguous segments whose lengths differ by at most one (the
// first len(samples)%len(dst) are longer) and each segment is averaged.
// Segments left empty because there are more bands than samples are 0.
func BlockAverage(dst, samples []float64) {
	bands := len(dst)
	if bands == 0 {
		return
	}

	per, extra := len(samples)/bands, len(samples)%bands
	pos := 0
	for i := range dst {
		n := per
		if i < extra {
			n++
		}
		if n == 0 {
			dst[i] = 0
			continue
		}

		var sum float64
		for _, x := range samples[pos : pos+n] {
			sum += x
		}
		dst[i] = sum / float64(n)
		pos += n
	}
}
