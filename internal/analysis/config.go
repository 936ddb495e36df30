// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"rtspectrum/internal/fft"
	"rtspectrum/pkg/bitint"
)

// Frequency bounds accepted for FreqMin and FreqMax, in Hz.
const (
	MinFrequency = 20.0
	MaxFrequency = 20000.0
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// ConfigError describes a rejected configuration field.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfig) true.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func invalid(field string, value any, format string, args ...any) error {
	return &ConfigError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// Config is the full set of pipeline parameters. A Config is copied into
// the Pipeline by Apply and never mutated afterwards.
type Config struct {
	// Wave format of the incoming chunks.
	SampleRate    int
	Channels      int
	BitsPerSample int // 16 (signed integer) or 32 (IEEE float)

	// Channel selects the analyzed channel. Channel == Channels averages
	// channels 0 and 1.
	Channel int

	FFTSize       int // ring capacity in samples
	FFTBufferSize int // zero-padded transform length, power of two >= FFTSize
	Bands         int // 0 disables banding

	FreqMin float64
	FreqMax float64

	AttackMs float64
	DecayMs  float64

	// Sensitivity is the user-facing value; the compressor inverts it.
	Sensitivity float64

	Window  fft.WindowFunc
	Backend fft.Kind

	UseFFT      bool
	UseLogScale bool
}

// DefaultConfig returns the stock visualizer setup: 48 kHz stereo mixed to
// mono, a 8192 sample ring padded to 32768, 50 bands between 20 and 500 Hz.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		Channels:      2,
		BitsPerSample: 16,
		Channel:       2,
		FFTSize:       8192,
		FFTBufferSize: 32768,
		Bands:         50,
		FreqMin:       20,
		FreqMax:       500,
		AttackMs:      0,
		DecayMs:       65,
		Sensitivity:   46.81,
		Window:        fft.WindowHamming,
		Backend:       fft.Real,
		UseFFT:        true,
		UseLogScale:   false,
	}
}

// Mix reports whether the config averages channels instead of selecting one.
func (c Config) Mix() bool {
	return c.Channel == c.Channels
}

// BytesPerSample is the size of one sample of one channel.
func (c Config) BytesPerSample() int {
	return c.BitsPerSample / 8
}

// FrameBytes is the size of one interleaved frame.
func (c Config) FrameBytes() int {
	return c.BytesPerSample() * c.Channels
}

// BackendKind is the backend the pipeline actually runs. UseFFT=false selects
// the bypass regardless of Backend.
func (c Config) BackendKind() fft.Kind {
	if !c.UseFFT {
		return fft.Identity
	}
	return c.Backend
}

// OutputLen is the length of every emitted frame.
func (c Config) OutputLen() int {
	if c.Bands > 0 {
		return c.Bands
	}
	switch c.BackendKind() {
	case fft.Identity, fft.Complex:
		return c.FFTBufferSize
	default:
		return c.FFTBufferSize/2 + 1
	}
}

// SetFreqMin sets the lower band edge. Values outside [20, 20000] are
// rejected, not clamped.
func (c *Config) SetFreqMin(hz float64) error {
	if err := checkFrequency("FreqMin", hz); err != nil {
		return err
	}
	c.FreqMin = hz
	return nil
}

// SetFreqMax sets the upper band edge. Values outside [20, 20000] are
// rejected, not clamped.
func (c *Config) SetFreqMax(hz float64) error {
	if err := checkFrequency("FreqMax", hz); err != nil {
		return err
	}
	c.FreqMax = hz
	return nil
}

// SetSensitivity sets the user-facing sensitivity, which must be positive.
func (c *Config) SetSensitivity(v float64) error {
	if !(v > 0) {
		return invalid("Sensitivity", v, "must be > 0")
	}
	c.Sensitivity = v
	return nil
}

func checkFrequency(field string, hz float64) error {
	if !(hz >= MinFrequency && hz <= MaxFrequency) {
		return invalid(field, hz, "must be in [%g, %g] Hz", MinFrequency, MaxFrequency)
	}
	return nil
}

// Validate checks every field and returns the first violation as a
// *ConfigError.
func (c Config) Validate() error {
	// --- Wave format ---
	if c.SampleRate <= 0 {
		return invalid("SampleRate", c.SampleRate, "must be positive")
	}
	if c.Channels < 1 {
		return invalid("Channels", c.Channels, "must be at least 1")
	}
	if c.BitsPerSample != 16 && c.BitsPerSample != 32 {
		return invalid("BitsPerSample", c.BitsPerSample, "only 16-bit integer and 32-bit float PCM are supported")
	}
	if c.Channel < 0 || c.Channel > c.Channels {
		return invalid("Channel", c.Channel, "must be in [0, %d]", c.Channels)
	}

	// --- Transform sizes ---
	if c.FFTSize < 1 {
		return invalid("FFTSize", c.FFTSize, "must be positive")
	}
	if !bitint.IsPowerOfTwo(c.FFTBufferSize) {
		return invalid("FFTBufferSize", c.FFTBufferSize, "must be a power of 2")
	}
	if c.FFTBufferSize < c.FFTSize {
		return invalid("FFTBufferSize", c.FFTBufferSize, "must be >= FFTSize (%d)", c.FFTSize)
	}
	if c.Bands < 0 {
		return invalid("Bands", c.Bands, "must not be negative")
	}

	// --- Band range ---
	if err := checkFrequency("FreqMin", c.FreqMin); err != nil {
		return err
	}
	if err := checkFrequency("FreqMax", c.FreqMax); err != nil {
		return err
	}
	if c.FreqMin >= c.FreqMax {
		return invalid("FreqMin", c.FreqMin, "must be below FreqMax (%g)", c.FreqMax)
	}

	// --- Dynamics ---
	if c.AttackMs < 0 {
		return invalid("AttackMs", c.AttackMs, "must not be negative")
	}
	if c.DecayMs < 0 {
		return invalid("DecayMs", c.DecayMs, "must not be negative")
	}
	if !(c.Sensitivity > 0) {
		return invalid("Sensitivity", c.Sensitivity, "must be > 0")
	}

	if !c.Window.Valid() {
		return invalid("Window", c.Window, "unknown window function")
	}
	if !c.Backend.Valid() {
		return invalid("Backend", c.Backend, "unknown fft backend")
	}

	return nil
}

// configChanges records which stages a new Config invalidates.
type configChanges struct {
	Format    bool // decoder
	Ring      bool // ring buffer contents
	Window    bool
	Backend   bool // backend and spectrum workspace
	Bands     bool // band table
	Smoothing bool // attack/decay coefficients
	Output    bool // emitted frame length, smoother history
}

func (c configChanges) any() bool {
	return c.Format || c.Ring || c.Window || c.Backend || c.Bands || c.Smoothing || c.Output
}

// diffConfig compares the applied config with the next one.
func diffConfig(prev, next Config) configChanges {
	format := prev.SampleRate != next.SampleRate ||
		prev.Channels != next.Channels ||
		prev.BitsPerSample != next.BitsPerSample ||
		prev.Channel != next.Channel

	return configChanges{
		Format:  format,
		Ring:    format || prev.FFTSize != next.FFTSize,
		Window:  prev.FFTSize != next.FFTSize || prev.Window != next.Window,
		Backend: prev.BackendKind() != next.BackendKind() || prev.FFTSize != next.FFTSize || prev.FFTBufferSize != next.FFTBufferSize,
		Bands: prev.Bands != next.Bands ||
			prev.FreqMin != next.FreqMin ||
			prev.FreqMax != next.FreqMax ||
			prev.SampleRate != next.SampleRate ||
			prev.FFTBufferSize != next.FFTBufferSize,
		Smoothing: prev.AttackMs != next.AttackMs || prev.DecayMs != next.DecayMs || prev.SampleRate != next.SampleRate,
		Output:    prev.OutputLen() != next.OutputLen(),
	}
}

// allChanges is the diff against an empty pipeline.
var allChanges = configChanges{true, true, true, true, true, true, true}
