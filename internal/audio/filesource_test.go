// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"rtspectrum/pkg/utils"
)

// packetRecorder is an analysis.Processor that keeps copies of every packet.
type packetRecorder struct {
	packets [][]byte
}

func (p *packetRecorder) Process(buf []byte, offset, count int) {
	p.packets = append(p.packets, bytes.Clone(buf[offset:offset+count]))
}

func (p *packetRecorder) joined() []byte {
	return bytes.Join(p.packets, nil)
}

func writeWAV(t *testing.T, sampleRate, bitDepth, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("writing WAV: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing WAV: %v", err)
	}
	return path
}

func toInts(samples []int16, shift int) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(s) << shift
	}
	return out
}

func TestFileSourcePackets(t *testing.T) {
	samples := utils.GenerateSineWave(1000, testSampleRate, 440)
	path := writeWAV(t, testSampleRate, 16, 1, toInts(samples, 0))

	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer src.Close()

	format := src.Format()
	if format.SampleRate != testSampleRate || format.Channels != 1 || format.BitsPerSample != 16 {
		t.Errorf("Format() = %+v", format)
	}
	if src.PacketDuration() != MinPacketDuration {
		t.Errorf("PacketDuration() = %v, want %v", src.PacketDuration(), MinPacketDuration)
	}

	sink := &packetRecorder{}
	frames, err := src.Run(context.Background(), sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if frames != len(samples) {
		t.Errorf("Run() = %d frames, want %d", frames, len(samples))
	}

	// 80 frames per 10ms packet: 12 full packets and a 40 frame tail.
	if len(sink.packets) != 13 {
		t.Fatalf("got %d packets, want 13", len(sink.packets))
	}
	if len(sink.packets[0]) != 160 || len(sink.packets[12]) != 80 {
		t.Errorf("packet sizes %d and %d, want 160 and 80", len(sink.packets[0]), len(sink.packets[12]))
	}
	if !bytes.Equal(sink.joined(), utils.EncodePCM16(samples, 1)) {
		t.Error("delivered PCM differs from the file contents")
	}
}

func TestFileSourceConvertsBitDepth(t *testing.T) {
	left := utils.GenerateSineWave(200, testSampleRate, 300)
	right := utils.GenerateSineWave(200, testSampleRate, 700)
	want := utils.InterleavePCM16(left, right)

	interleaved := make([]int16, 0, 400)
	for i := range left {
		interleaved = append(interleaved, left[i], right[i])
	}

	tests := []struct {
		name     string
		bitDepth int
		shift    int
	}{
		{"16 bit", 16, 0},
		{"24 bit", 24, 8},
		{"32 bit", 32, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWAV(t, testSampleRate, tt.bitDepth, 2, toInts(interleaved, tt.shift))
			src, err := OpenFile(path)
			if err != nil {
				t.Fatalf("OpenFile() error = %v", err)
			}
			defer src.Close()

			sink := &packetRecorder{}
			if _, err := src.Run(context.Background(), sink); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !bytes.Equal(sink.joined(), want) {
				t.Error("converted PCM differs from the 16-bit source")
			}
		})
	}
}

func TestFileSourceRealtime(t *testing.T) {
	path := writeWAV(t, testSampleRate, 16, 1, make([]int, 240))
	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer src.Close()
	src.SetRealtime(true)

	start := time.Now()
	if _, err := src.Run(context.Background(), &packetRecorder{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Three 10ms packets, each waiting for a tick.
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("realtime Run() took %v, want >= 30ms", elapsed)
	}
}

func TestFileSourceCancel(t *testing.T) {
	path := writeWAV(t, testSampleRate, 16, 1, make([]int, 800))
	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer src.Close()
	src.SetRealtime(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &packetRecorder{}
	if _, err := src.Run(ctx, sink); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(sink.packets) != 0 {
		t.Errorf("cancelled Run() delivered %d packets", len(sink.packets))
	}
}

func TestOpenFileErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not a RIFF file"), 0o644); err != nil {
		t.Fatal(err)
	}

	for name, path := range map[string]string{
		"missing": filepath.Join(dir, "missing.wav"),
		"garbage": garbage,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := OpenFile(path); err == nil {
				t.Error("OpenFile() expected error")
			}
		})
	}
}

func TestTrimTrailingZeros(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		blockAlign int
		want       int
	}{
		{"no padding", []byte{1, 2, 3, 4}, 2, 4},
		{"padded frames", []byte{1, 2, 3, 4, 0, 0, 0, 0}, 2, 4},
		{"zero inside last frame", []byte{1, 2, 3, 0, 0, 0}, 2, 4},
		{"stereo 16-bit", []byte{1, 0, 2, 0, 5, 0, 0, 0, 0, 0, 0, 0}, 4, 8},
		{"all zeros", []byte{0, 0, 0, 0}, 4, 0},
		{"empty", nil, 4, 0},
		{"unaligned tail kept", []byte{1, 2, 3}, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimTrailingZeros(tt.buf, tt.blockAlign); len(got) != tt.want {
				t.Errorf("TrimTrailingZeros() length = %d, want %d", len(got), tt.want)
			}
		})
	}
}
