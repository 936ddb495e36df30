// SPDX-License-Identifier: MIT
package analysis

import (
	"encoding/binary"
	"math"

	"rtspectrum/internal/fft"
)

// sampleFunc decodes one little-endian sample from the start of b into the
// 16-bit full-scale range.
type sampleFunc func(b []byte) float64

func decodePCM16(b []byte) float64 {
	return float64(int16(binary.LittleEndian.Uint16(b)))
}

func decodeFloat32(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) * fft.FullScale
}

// frameDecoder deinterleaves raw chunks into a RingBuffer, reducing every
// frame to a single sample.
type frameDecoder struct {
	sample         sampleFunc
	bytesPerSample int
	frameBytes     int
	channelOffset  int // byte offset of the selected channel in a frame
	mix            bool
	stereo         bool // mix has a second channel to average
}

func newFrameDecoder(cfg Config) frameDecoder {
	d := frameDecoder{
		sample:         decodePCM16,
		bytesPerSample: cfg.BytesPerSample(),
		frameBytes:     cfg.FrameBytes(),
		mix:            cfg.Mix(),
		stereo:         cfg.Channels > 1,
	}
	if cfg.BitsPerSample == 32 {
		d.sample = decodeFloat32
	}
	if !d.mix {
		d.channelOffset = cfg.Channel * d.bytesPerSample
	}
	return d
}

// valid reports whether buf[offset:offset+count] is a well-formed chunk.
func (d *frameDecoder) valid(buf []byte, offset, count int) bool {
	return offset >= 0 && count >= 0 &&
		offset <= len(buf) && count <= len(buf)-offset &&
		count%d.bytesPerSample == 0
}

// feed writes every whole frame of chunk into ring and returns the number of
// frames written. A trailing partial frame is ignored.
func (d *frameDecoder) feed(ring *RingBuffer, chunk []byte) int {
	frames := len(chunk) / d.frameBytes

	for f := range frames {
		frame := chunk[f*d.frameBytes:]

		switch {
		case !d.mix:
			ring.Write(d.sample(frame[d.channelOffset:]))
		case d.stereo:
			l := d.sample(frame)
			r := d.sample(frame[d.bytesPerSample:])
			ring.Write((l + r) / 2)
		default:
			ring.Write(d.sample(frame))
		}
	}

	return frames
}
