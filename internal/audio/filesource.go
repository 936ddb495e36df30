// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"rtspectrum/internal/analysis"
	"rtspectrum/internal/config"
)

// MinPacketDuration is the shortest span of audio handed to the processor in
// one call.
const MinPacketDuration = 10 * time.Millisecond

// FileSource reads an integer PCM WAV file and delivers it to a Processor as
// 16-bit little-endian packets of at least MinPacketDuration.
type FileSource struct {
	file        *os.File
	decoder     *wav.Decoder
	format      config.Format
	srcBitDepth int

	packetFrames int
	buf          *audio.IntBuffer
	chunk        []byte

	realtime bool
}

// OpenFile opens path and reads its header.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: invalid WAV file", path)
	}
	if dec.WavAudioFormat != 1 {
		f.Close()
		return nil, fmt.Errorf("%s: unsupported WAV encoding %d, only integer PCM is supported", path, dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: reading WAV PCM data: %w", path, err)
	}

	sampleRate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("%s: unsupported bit depth %d", path, bitDepth)
	}
	if sampleRate <= 0 || channels <= 0 {
		f.Close()
		return nil, fmt.Errorf("%s: invalid format %d Hz, %d channels", path, sampleRate, channels)
	}

	packetFrames := max(1, int(MinPacketDuration.Seconds()*float64(sampleRate)))

	return &FileSource{
		file:        f,
		decoder:     dec,
		srcBitDepth: bitDepth,
		format: config.Format{
			SampleRate:    sampleRate,
			Channels:      channels,
			BitsPerSample: 16,
		},
		packetFrames: packetFrames,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:   make([]int, packetFrames*channels),
		},
		chunk: make([]byte, 2*packetFrames*channels),
	}, nil
}

// Format is the wave format of the packets Run delivers.
func (s *FileSource) Format() config.Format { return s.format }

// PacketDuration is the audio span of one full packet.
func (s *FileSource) PacketDuration() time.Duration {
	return time.Duration(s.packetFrames) * time.Second / time.Duration(s.format.SampleRate)
}

// SetRealtime paces Run at the file's sample rate instead of delivering
// packets as fast as they decode.
func (s *FileSource) SetRealtime(realtime bool) { s.realtime = realtime }

// Run decodes the file into sink until EOF or ctx is done and returns the
// number of frames delivered.
func (s *FileSource) Run(ctx context.Context, sink analysis.Processor) (int, error) {
	var tick <-chan time.Time
	if s.realtime {
		ticker := time.NewTicker(s.PacketDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	channels := s.format.Channels
	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		n, err := s.decoder.PCMBuffer(s.buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return frames, fmt.Errorf("decoding WAV data: %w", err)
		}
		n -= n % channels
		if n == 0 {
			return frames, nil
		}

		size := s.encode(s.buf.Data[:n])

		if tick != nil {
			select {
			case <-ctx.Done():
				return frames, ctx.Err()
			case <-tick:
			}
		}

		sink.Process(s.chunk, 0, size)
		frames += n / channels
	}
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.file.Close()
}

// encode converts decoded samples to 16-bit little-endian PCM in s.chunk.
func (s *FileSource) encode(samples []int) int {
	for i, v := range samples {
		switch s.srcBitDepth {
		case 8:
			// 8-bit WAV is unsigned
			v = (v - 128) << 8
		case 24:
			v >>= 8
		case 32:
			v >>= 16
		}
		v = max(-32768, min(v, 32767))
		binary.LittleEndian.PutUint16(s.chunk[2*i:], uint16(int16(v)))
	}
	return 2 * len(samples)
}

// TrimTrailingZeros drops the zero padding some hosts append to a frame
// buffer. The result is rounded up to a multiple of blockAlign so the last
// partially-zero frame survives intact. A buffer of zeros trims to empty.
func TrimTrailingZeros(buf []byte, blockAlign int) []byte {
	end := len(buf)
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	if end == 0 {
		return buf[:0]
	}
	if blockAlign > 1 {
		if rem := end % blockAlign; rem != 0 {
			end = min(len(buf), end+blockAlign-rem)
		}
	}
	return buf[:end]
}
