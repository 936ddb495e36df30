// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"rtspectrum/internal/config"
)

// ErrAlreadyRecording is returned by Start while a recording is open.
var ErrAlreadyRecording = errors.New("already recording")

// Recorder writes 16-bit PCM samples to a WAV file.
type Recorder struct {
	format     config.Format
	maxSamples int // 0 for unlimited

	recording atomic.Bool
	mu        sync.Mutex // protects everything below
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
	written   int
	path      string
}

// NewRecorder creates a recorder for interleaved 16-bit samples in format.
// A maxDuration of 0 records without limit; samples beyond the limit are
// discarded.
func NewRecorder(format config.Format, maxDuration time.Duration) *Recorder {
	r := &Recorder{format: format}
	if maxDuration > 0 {
		r.maxSamples = int(maxDuration.Seconds()*float64(format.SampleRate)) * format.Channels
	}
	return r
}

// RecordingFilename returns a timestamped WAV path inside dir.
func RecordingFilename(dir string, t time.Time) string {
	return filepath.Join(dir, "recording_"+t.Format("20060102_150405")+".wav")
}

// Recording reports whether a recording is open.
func (r *Recorder) Recording() bool { return r.recording.Load() }

// Path returns the file currently or last recorded to.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Start creates filename (and its directory) and begins accepting samples.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording.Load() {
		return ErrAlreadyRecording
	}

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	r.file = file
	r.path = filename
	r.written = 0
	r.encoder = wav.NewEncoder(file, r.format.SampleRate, 16, r.format.Channels, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: r.format.Channels,
			SampleRate:  r.format.SampleRate,
		},
		SourceBitDepth: 16,
	}

	r.recording.Store(true)
	logger.Infof("recording to %s", filename)
	return nil
}

// Write appends samples. It is a no-op when no recording is open.
func (r *Recorder) Write(samples []int16) error {
	if !r.recording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return nil
	}
	if r.maxSamples > 0 {
		samples = samples[:min(len(samples), max(0, r.maxSamples-r.written))]
		if len(samples) == 0 {
			return nil
		}
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, sample := range samples {
		r.sampleBuf.Data[i] = int(sample)
	}

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return err
	}
	r.written += len(samples)
	return nil
}

// Stop finalizes the WAV header and closes the file. Stopping while idle
// is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording.Swap(false) {
		return nil
	}

	var errs []error
	if r.encoder != nil {
		errs = append(errs, r.encoder.Close())
		r.encoder = nil
	}
	if r.file != nil {
		errs = append(errs, r.file.Close())
		r.file = nil
	}

	logger.Infof("recording stopped: %s (%d samples)", r.path, r.written)
	return errors.Join(errs...)
}
