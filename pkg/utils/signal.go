// SPDX-License-Identifier: MIT
package utils

import (
	"encoding/binary"
	"math"
)

const fullScale = math.MaxInt16

// GenerateSineWave returns size 16-bit samples of a sine at 90% of full
// scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []int16 {
	return GenerateTone(size, sampleRate, frequency, 0.9)
}

// GenerateTone returns size 16-bit samples of a sine with the given
// amplitude, 1.0 being full scale.
func GenerateTone(size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * fullScale * amplitude)
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int16(signal * fullScale * 0.9)
	}
	return buffer
}

// EncodePCM16 writes samples as little-endian 16-bit PCM, copying each sample
// into every one of channels interleaved slots.
func EncodePCM16(samples []int16, channels int) []byte {
	out := make([]byte, len(samples)*channels*2)
	pos := 0
	for _, s := range samples {
		for range channels {
			binary.LittleEndian.PutUint16(out[pos:], uint16(s))
			pos += 2
		}
	}
	return out
}

// InterleavePCM16 writes one slice per channel as interleaved little-endian
// 16-bit PCM. The shortest channel sets the frame count.
func InterleavePCM16(channels ...[]int16) []byte {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	for _, ch := range channels[1:] {
		frames = min(frames, len(ch))
	}

	out := make([]byte, frames*len(channels)*2)
	pos := 0
	for f := range frames {
		for _, ch := range channels {
			binary.LittleEndian.PutUint16(out[pos:], uint16(ch[f]))
			pos += 2
		}
	}
	return out
}

// EncodeFloat32 writes samples as little-endian IEEE float PCM in [-1, 1],
// copying each sample into every channel.
func EncodeFloat32(samples []int16, channels int) []byte {
	out := make([]byte, len(samples)*channels*4)
	pos := 0
	for _, s := range samples {
		bits := math.Float32bits(float32(s) / fullScale)
		for range channels {
			binary.LittleEndian.PutUint32(out[pos:], bits)
			pos += 4
		}
	}
	return out
}

// FindPeakBin returns the index of the largest value in
// values[startBin:endBin+1], with the range clipped to the slice.
func FindPeakBin(values []float64, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(values) {
		endBin = len(values) - 1
	}

	peakBin := startBin
	peakValue := values[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}

	return peakBin
}
