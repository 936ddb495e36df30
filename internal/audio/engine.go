// SPDX-License-Identifier: MIT
/*
Package audio connects PCM sources to an analysis.Processor:
- Live capture from a PortAudio input device
- Paced playback of WAV files
- WAV recording of captured input

Thread Safety:
- The capture callback runs on a locked OS thread
- Buffers are pre-allocated so the callback does not allocate
- Recording state is switched atomically
*/
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"rtspectrum/internal/analysis"
	"rtspectrum/internal/config"
	"rtspectrum/internal/log"
)

var logger = log.Named("Audio")

// Engine captures 16-bit PCM from an input device and hands every callback
// buffer to a Processor as little-endian bytes.
type Engine struct {
	config    *config.Config
	processor analysis.Processor

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	chunk     []byte // Little-endian copy of the callback buffer.
	callbacks atomic.Uint64

	recorder *Recorder
}

// NewEngine resolves the configured input device. Initialize must have been
// called.
func NewEngine(cfg *config.Config, processor analysis.Processor) (*Engine, error) {
	if processor == nil {
		return nil, errors.New("audio engine: processor cannot be nil")
	}

	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	if cfg.Audio.InputChannels > inputDevice.MaxInputChannels {
		return nil, fmt.Errorf("device %s supports %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.Audio.InputChannels)
	}

	e := &Engine{
		config:      cfg,
		processor:   processor,
		inputDevice: inputDevice,
		chunk:       make([]byte, 2*cfg.Audio.FramesPerBuffer*cfg.Audio.InputChannels),
	}
	e.recorder = NewRecorder(e.Format(), time.Duration(cfg.Recording.MaxDuration)*time.Second)

	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	return e, nil
}

// Format is the wave format of the buffers handed to the processor.
func (e *Engine) Format() config.Format {
	return config.Format{
		SampleRate:    int(e.config.Audio.SampleRate),
		Channels:      e.config.Audio.InputChannels,
		BitsPerSample: 16,
	}
}

// Device returns the resolved input device.
func (e *Engine) Device() *portaudio.DeviceInfo { return e.inputDevice }

// Callbacks returns the number of capture callbacks served.
func (e *Engine) Callbacks() uint64 { return e.callbacks.Load() }

// StartInputStream opens and starts the capture stream.
func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Audio.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	logger.Infof("capturing from %s: %d ch @ %.0f Hz, %d frames per buffer, latency %s",
		e.inputDevice.Name, e.config.Audio.InputChannels, e.config.Audio.SampleRate,
		e.config.Audio.FramesPerBuffer, e.inputLatency)
	return nil
}

// StopInputStream stops and closes the capture stream if it is open.
func (e *Engine) StopInputStream() error {
	if e.inputStream == nil {
		return nil
	}

	if err := e.inputStream.Stop(); err != nil {
		return err
	}
	if err := e.inputStream.Close(); err != nil {
		return err
	}
	e.inputStream = nil

	return nil
}

// StartRecording starts writing captured input to filename.
func (e *Engine) StartRecording(filename string) error {
	return e.recorder.Start(filename)
}

// StopRecording finalizes the current recording, if any.
func (e *Engine) StopRecording() error {
	return e.recorder.Stop()
}

// Close stops recording and capture.
func (e *Engine) Close() error {
	return errors.Join(e.recorder.Stop(), e.StopInputStream())
}

// processInputStream is the capture callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - Never returns errors to PortAudio; failures are logged
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.callbacks.Add(1)

	n := encodePCM16(e.chunk, in)
	e.processor.Process(e.chunk, 0, n)

	if e.recorder.Recording() {
		if err := e.recorder.Write(in); err != nil {
			logger.Errorf("error writing to WAV file: %v", err)
		}
	}
}

// encodePCM16 writes samples to dst as little-endian 16-bit PCM and returns
// the number of bytes written. dst must hold 2*len(samples) bytes.
func encodePCM16(dst []byte, samples []int16) int {
	n := min(len(samples), len(dst)/2)
	for i, s := range samples[:n] {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
	}
	return 2 * n
}
