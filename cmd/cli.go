// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rtspectrum/internal/audio"
	"rtspectrum/internal/config"
	"rtspectrum/pkg/build"
)

// Commands selected on the command line.
const (
	CommandCapture = "capture"
	CommandAnalyze = "analyze"
)

// Options is the parsed command line merged into the loaded configuration.
type Options struct {
	Command string // empty when only help or version was printed
	Config  *config.Config

	InputFile string // analyze only
	Realtime  bool   // analyze only

	Record     bool
	OutputFile string
}

// flagValues receives every flag. Only flags the user set are copied over
// the loaded configuration.
type flagValues struct {
	configPath string

	device          int
	sampleRate      float64
	channels        int
	channel         int
	framesPerBuffer int
	lowLatency      bool

	fftSize       int
	fftBufferSize int
	bands         int
	freqMin       float64
	freqMax       float64
	attack        float64
	decay         float64
	sensitivity   float64
	window        string
	backend       string
	noFFT         bool
	logScale      bool

	record bool
	output string

	ws        bool
	wsAddr    string
	udp       bool
	udpAddr   string
	logFrames int

	verbose bool
}

// ParseArgs parses os.Args and loads the configuration they point at.
func ParseArgs() (*Options, error) {
	return parse(os.Args[1:], os.Stdout, time.Now())
}

func parse(args []string, out io.Writer, now time.Time) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	defaults := config.Default()
	values := &flagValues{}
	options := &Options{}

	var executed *cobra.Command

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time audio spectrum analyzer",
		Long:          "Captures PCM audio and emits log-spaced, smoothed and compressed band levels.",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandCapture
			executed = cmd
			return nil
		},
	}
	rootCmd.SetOut(out)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Run a WAV file through the analyzer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandAnalyze
			options.InputFile = args[0]
			executed = cmd
			return nil
		},
	}
	analyzeCmd.Flags().BoolVar(&options.Realtime, "realtime", false,
		"Pace packets at the file's sample rate")
	rootCmd.AddCommand(analyzeCmd)

	flags := rootCmd.PersistentFlags()

	flags.StringVar(&values.configPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml when present)")

	// Audio Device Configuration
	flags.IntVarP(&values.device, "device", "d", defaults.Audio.InputDevice,
		"Input device ID (-1 for the default device)")
	flags.Float64VarP(&values.sampleRate, "sample-rate", "s", defaults.Audio.SampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&values.channels, "channels", "c", defaults.Audio.InputChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	flags.IntVar(&values.channel, "channel", defaults.Audio.Channel,
		"Analyzed channel, -1 to average the first two")
	flags.IntVarP(&values.framesPerBuffer, "frames-per-buffer", "b", defaults.Audio.FramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&values.lowLatency, "low-latency", "l", defaults.Audio.LowLatency,
		"Use the device's low input latency")

	// Spectrum Configuration
	flags.IntVar(&values.fftSize, "fft-size", defaults.Spectrum.FFTSize,
		"Samples analyzed per frame")
	flags.IntVar(&values.fftBufferSize, "fft-buffer-size", defaults.Spectrum.FFTBufferSize,
		"Zero-padded transform length (power of 2)")
	flags.IntVar(&values.bands, "bands", defaults.Spectrum.Bands,
		"Number of output bands, 0 for the raw spectrum")
	flags.Float64Var(&values.freqMin, "freq-min", defaults.Spectrum.FreqMin,
		"Lowest band frequency in Hz")
	flags.Float64Var(&values.freqMax, "freq-max", defaults.Spectrum.FreqMax,
		"Highest band frequency in Hz")
	flags.Float64Var(&values.attack, "attack", defaults.Spectrum.AttackMs,
		"Attack time in ms, applied while levels fall")
	flags.Float64Var(&values.decay, "decay", defaults.Spectrum.DecayMs,
		"Decay time in ms, applied while levels rise")
	flags.Float64Var(&values.sensitivity, "sensitivity", defaults.Spectrum.Sensitivity,
		"Compressor sensitivity, higher is louder")
	flags.StringVar(&values.window, "window", defaults.Spectrum.Window,
		"Window function: none, hamming, hann, blackmanharris")
	flags.StringVar(&values.backend, "backend", defaults.Spectrum.Backend,
		"Transform backend: real, complex, reference")
	flags.BoolVar(&values.noFFT, "no-fft", !defaults.Spectrum.UseFFT,
		"Bypass the transform and emit block averages")
	flags.BoolVar(&values.logScale, "log-scale", defaults.Spectrum.UseLogScale,
		"Compress the raw spectrum when bands is 0")

	// Recording Configuration
	flags.BoolVarP(&values.record, "record", "r", defaults.Recording.Enabled,
		"Record the captured input to a WAV file")
	flags.StringVarP(&values.output, "output", "o", "",
		"Recording file name (default: recording_YYYYMMDD_HHMMSS.wav in the output dir)")

	// Transport Configuration
	flags.BoolVar(&values.ws, "ws", defaults.Transport.WSEnabled,
		"Broadcast frames over WebSocket")
	flags.StringVar(&values.wsAddr, "ws-addr", defaults.Transport.WSAddr,
		"WebSocket listen address")
	flags.BoolVar(&values.udp, "udp", defaults.Transport.UDPEnabled,
		"Publish frames over UDP")
	flags.StringVar(&values.udpAddr, "udp-addr", defaults.Transport.UDPTargetAddress,
		"UDP target address")
	flags.IntVar(&values.logFrames, "log-frames", defaults.Transport.LogFrames,
		"Log every Nth frame at debug level, 0 disables")

	// Debug Configuration
	flags.BoolVarP(&values.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if executed == nil {
		// Help or version only.
		return options, nil
	}

	cfg, err := config.LoadConfig(values.configPath)
	if err != nil {
		return nil, err
	}
	values.apply(executed.Flags().Changed, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command line: %w", err)
	}
	options.Config = cfg

	// Recording only applies to live capture.
	options.Record = cfg.Recording.Enabled && options.Command == CommandCapture
	options.OutputFile = values.output
	if options.Record && options.OutputFile == "" {
		options.OutputFile = audio.RecordingFilename(cfg.Recording.OutputDir, now.UTC())
	}

	return options, nil
}

// apply copies every changed flag into cfg.
func (v *flagValues) apply(changed func(name string) bool, cfg *config.Config) {
	if changed("device") {
		cfg.Audio.InputDevice = v.device
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = v.sampleRate
	}
	if changed("channels") {
		cfg.Audio.InputChannels = v.channels
	}
	if changed("channel") {
		cfg.Audio.Channel = v.channel
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = v.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = v.lowLatency
	}

	if changed("fft-size") {
		cfg.Spectrum.FFTSize = v.fftSize
	}
	if changed("fft-buffer-size") {
		cfg.Spectrum.FFTBufferSize = v.fftBufferSize
	}
	if changed("bands") {
		cfg.Spectrum.Bands = v.bands
	}
	if changed("freq-min") {
		cfg.Spectrum.FreqMin = v.freqMin
	}
	if changed("freq-max") {
		cfg.Spectrum.FreqMax = v.freqMax
	}
	if changed("attack") {
		cfg.Spectrum.AttackMs = v.attack
	}
	if changed("decay") {
		cfg.Spectrum.DecayMs = v.decay
	}
	if changed("sensitivity") {
		cfg.Spectrum.Sensitivity = v.sensitivity
	}
	if changed("window") {
		cfg.Spectrum.Window = v.window
	}
	if changed("backend") {
		cfg.Spectrum.Backend = v.backend
	}
	if changed("no-fft") {
		cfg.Spectrum.UseFFT = !v.noFFT
	}
	if changed("log-scale") {
		cfg.Spectrum.UseLogScale = v.logScale
	}

	if changed("record") {
		cfg.Recording.Enabled = v.record
	}

	if changed("ws") {
		cfg.Transport.WSEnabled = v.ws
	}
	if changed("ws-addr") {
		cfg.Transport.WSAddr = v.wsAddr
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = v.udp
	}
	if changed("udp-addr") {
		cfg.Transport.UDPTargetAddress = v.udpAddr
	}
	if changed("log-frames") {
		cfg.Transport.LogFrames = v.logFrames
	}

	if changed("verbose") && v.verbose {
		cfg.Debug = true
	}
}
