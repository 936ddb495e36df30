// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rtspectrum/internal/analysis"
	"rtspectrum/internal/fft"
	"rtspectrum/internal/log"
)

// MixChannels in AudioConfig.Channel averages the first two channels.
const MixChannels = -1

var logger = log.Named("Config")

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces log level debug.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Audio     AudioConfig     `yaml:"audio"`
	Spectrum  SpectrumConfig  `yaml:"spectrum"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture callback.
	LowLatency      bool    `yaml:"low_latency"`       // Use the device's low input latency.
	InputChannels   int     `yaml:"input_channels"`    // Captured channels.
	Channel         int     `yaml:"channel"`           // Analyzed channel, MixChannels to average.
}

// SpectrumConfig holds the analysis pipeline parameters.
type SpectrumConfig struct {
	FFTSize       int     `yaml:"fft_size"`        // Samples kept in the ring.
	FFTBufferSize int     `yaml:"fft_buffer_size"` // Zero-padded transform length.
	Bands         int     `yaml:"bands"`           // 0 emits the raw spectrum.
	FreqMin       float64 `yaml:"freq_min"`
	FreqMax       float64 `yaml:"freq_max"`
	AttackMs      float64 `yaml:"attack_ms"`
	DecayMs       float64 `yaml:"decay_ms"`
	Sensitivity   float64 `yaml:"sensitivity"`
	Window        string  `yaml:"window"`  // none, hamming, hann, blackmanharris
	Backend       string  `yaml:"backend"` // real, complex, reference
	UseFFT        bool    `yaml:"use_fft"`
	UseLogScale   bool    `yaml:"use_log_scale"`
}

// RecordingConfig holds settings for recording captured input.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutputDir   string `yaml:"output_dir"`
	MaxDuration int    `yaml:"max_duration_seconds"` // 0 for unlimited.
}

// TransportConfig holds settings for frame consumers.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090"
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddr           string        `yaml:"ws_addr"`    // e.g. "127.0.0.1:8080"
	LogFrames        int           `yaml:"log_frames"` // Log every Nth frame, 0 disables.
}

// Format describes the PCM stream the pipeline will receive.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Default returns the built-in configuration.
func Default() Config {
	p := analysis.DefaultConfig()
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     -1,
			SampleRate:      float64(p.SampleRate),
			FramesPerBuffer: 1024,
			InputChannels:   p.Channels,
			Channel:         MixChannels,
		},
		Spectrum: SpectrumConfig{
			FFTSize:       p.FFTSize,
			FFTBufferSize: p.FFTBufferSize,
			Bands:         p.Bands,
			FreqMin:       p.FreqMin,
			FreqMax:       p.FreqMax,
			AttackMs:      p.AttackMs,
			DecayMs:       p.DecayMs,
			Sensitivity:   p.Sensitivity,
			Window:        p.Window.String(),
			Backend:       p.Backend.String(),
			UseFFT:        p.UseFFT,
			UseLogScale:   p.UseLogScale,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
		Transport: TransportConfig{
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond,
			WSAddr:           "127.0.0.1:8080",
		},
	}
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, "config.yaml" in the working directory is used when present and
// the built-in defaults otherwise. Environment overrides are applied after
// the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Level returns the configured log level. Debug wins over LogLevel.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// Validate checks the logging, transport and spectrum sections.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %g", c.Audio.SampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio.frames_per_buffer must be positive, got %d", c.Audio.FramesPerBuffer)
	}

	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return errors.New("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WSEnabled && !strings.Contains(c.Transport.WSAddr, ":") {
		return fmt.Errorf("transport.ws_addr '%s' appears invalid (missing port?)", c.Transport.WSAddr)
	}

	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		return errors.New("recording.output_dir must be set when recording is enabled")
	}

	format := Format{
		SampleRate:    int(c.Audio.SampleRate),
		Channels:      c.Audio.InputChannels,
		BitsPerSample: 16,
	}
	if _, err := c.Pipeline(format); err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}
	return nil
}

// Pipeline converts the spectrum section into a validated analysis.Config
// for a stream of the given format.
func (c *Config) Pipeline(format Format) (analysis.Config, error) {
	window, err := fft.ParseWindowFunc(c.Spectrum.Window)
	if err != nil {
		return analysis.Config{}, err
	}
	backend, err := fft.ParseKind(c.Spectrum.Backend)
	if err != nil {
		return analysis.Config{}, err
	}

	channel := c.Audio.Channel
	switch {
	case format.Channels == 1:
		channel = 0
	case channel == MixChannels:
		channel = format.Channels
	}

	cfg := analysis.Config{
		SampleRate:    format.SampleRate,
		Channels:      format.Channels,
		BitsPerSample: format.BitsPerSample,
		Channel:       channel,
		FFTSize:       c.Spectrum.FFTSize,
		FFTBufferSize: c.Spectrum.FFTBufferSize,
		Bands:         c.Spectrum.Bands,
		FreqMin:       c.Spectrum.FreqMin,
		FreqMax:       c.Spectrum.FreqMax,
		AttackMs:      c.Spectrum.AttackMs,
		DecayMs:       c.Spectrum.DecayMs,
		Sensitivity:   c.Spectrum.Sensitivity,
		Window:        window,
		Backend:       backend,
		UseFFT:        c.Spectrum.UseFFT,
		UseLogScale:   c.Spectrum.UseLogScale,
	}
	if err := cfg.Validate(); err != nil {
		return analysis.Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparsable values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			logger.Infof("overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("overriding log_level from env: %s", val)
	}

	// ENV_UDP_{...}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			logger.Infof("overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			logger.Infof("overriding transport.udp_send_interval from env: %s", dur)
		}
	}

	// ENV_WS_{...}

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WSEnabled = bVal
			logger.Infof("overriding transport.ws_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		c.Transport.WSAddr = val
		logger.Infof("overriding transport.ws_addr from env: %s", val)
	}
}
