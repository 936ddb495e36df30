// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func TestParseHelpAndVersion(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"--version"}, {"analyze", "--help"}} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			var out bytes.Buffer
			opts, err := parse(args, &out, testNow)
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if opts.Command != "" || opts.Config != nil {
				t.Errorf("help/version should not select a command, got %+v", opts)
			}
			if out.Len() == 0 {
				t.Error("nothing printed")
			}
		})
	}
}

func TestParseCapture(t *testing.T) {
	opts, err := parse([]string{"--bands", "24", "--freq-max", "8000", "--window", "hann", "-v"}, &bytes.Buffer{}, testNow)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if opts.Command != CommandCapture {
		t.Errorf("Command = %q, want %q", opts.Command, CommandCapture)
	}
	cfg := opts.Config
	if cfg.Spectrum.Bands != 24 || cfg.Spectrum.FreqMax != 8000 || cfg.Spectrum.Window != "hann" {
		t.Errorf("spectrum = %+v", cfg.Spectrum)
	}
	if !cfg.Debug {
		t.Error("--verbose did not enable debug")
	}
	// Untouched flags keep the defaults.
	if cfg.Spectrum.FFTSize != 8192 || cfg.Audio.InputDevice != -1 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if opts.Record {
		t.Error("Record should be off by default")
	}
}

func TestParseAnalyze(t *testing.T) {
	opts, err := parse([]string{"analyze", "song.wav", "--realtime", "--no-fft", "--record"}, &bytes.Buffer{}, testNow)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if opts.Command != CommandAnalyze || opts.InputFile != "song.wav" || !opts.Realtime {
		t.Errorf("options = %+v", opts)
	}
	if opts.Config.Spectrum.UseFFT {
		t.Error("--no-fft did not disable the transform")
	}
	if opts.Record {
		t.Error("recording must stay off while analyzing a file")
	}
}

func TestParseRecordDefaultName(t *testing.T) {
	opts, err := parse([]string{"--record"}, &bytes.Buffer{}, testNow)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	want := filepath.Join("recordings", "recording_20240305_140709.wav")
	if !opts.Record || opts.OutputFile != want {
		t.Errorf("Record = %v OutputFile = %q, want %q", opts.Record, opts.OutputFile, want)
	}

	opts, err = parse([]string{"-r", "-o", "take1.wav"}, &bytes.Buffer{}, testNow)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if opts.OutputFile != "take1.wav" {
		t.Errorf("OutputFile = %q, want take1.wav", opts.OutputFile)
	}
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "spectrum:\n  bands: 12\n  decay_ms: 100\ntransport:\n  ws_enabled: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := parse([]string{"--config", path, "--bands", "30"}, &bytes.Buffer{}, testNow)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	cfg := opts.Config
	if cfg.Spectrum.Bands != 30 {
		t.Errorf("Bands = %d, want the flag value 30", cfg.Spectrum.Bands)
	}
	if cfg.Spectrum.DecayMs != 100 || !cfg.Transport.WSEnabled {
		t.Errorf("file values lost: decay %v ws %v", cfg.Spectrum.DecayMs, cfg.Transport.WSEnabled)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--loud"}},
		{"bad value", []string{"--bands", "many"}},
		{"out of range", []string{"--freq-min", "5"}},
		{"unknown window", []string{"--window", "kaiser"}},
		{"analyze without file", []string{"analyze"}},
		{"stray argument", []string{"extra"}},
		{"missing config", []string{"--config", "does-not-exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(tt.args, &bytes.Buffer{}, testNow); err == nil {
				t.Error("parse() expected error")
			}
		})
	}
}
