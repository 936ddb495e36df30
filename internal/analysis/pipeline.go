// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync/atomic"
	"time"

	"rtspectrum/internal/fft"
	"rtspectrum/internal/log"
)

var logger = log.Named("Analysis")

// Pipeline turns raw PCM chunks into smoothed, compressed band vectors.
//
// Per chunk: decode -> ring buffer -> snapshot -> window -> backend ->
// band map (or block average, or raw spectrum) -> smoother -> compressor,
// then one Frame per chunk goes to every observer.
//
// A Pipeline has a single writer. Process, Write and Apply must not be called
// concurrently with each other; the Pipeline holds no locks and does not
// detect misuse. Stats may be read from any goroutine.
type Pipeline struct {
	cfg     Config
	applied bool

	observers []Observer

	// --- Stages, rebuilt by Apply ---
	decoder    frameDecoder
	ring       *RingBuffer
	window     fft.WindowTable
	backend    fft.Backend
	bands      *BandMapper // nil when Bands == 0
	smoother   *Smoother
	compressor Compressor

	// --- Workspaces ---
	block    []float64 // snapshot, FFTBufferSize
	spectrum []float64 // backend output

	frames  atomic.Uint64
	dropped atomic.Uint64
	ignored atomic.Uint64

	now func() time.Time
}

// Compile-time checks for interface implementations.
var _ Processor = (*Pipeline)(nil)

// NewPipeline returns an unconfigured pipeline. Chunks are ignored until
// Apply succeeds.
func NewPipeline() *Pipeline {
	return &Pipeline{
		smoother: &Smoother{},
		now:      time.Now,
	}
}

// Subscribe registers an observer. Register observers before processing
// starts.
func (p *Pipeline) Subscribe(o Observer) {
	p.observers = append(p.observers, o)
}

// Config returns the applied configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Stats returns the outcome counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:  p.frames.Load(),
		Dropped: p.dropped.Load(),
		Ignored: p.ignored.Load(),
	}
}

// Apply validates cfg and rebuilds the stages it affects. Everything that can
// fail is built before anything is replaced, so on error the previous
// configuration stays live.
//
// The ring buffer is reset when the wave format or FFTSize changes; the
// smoother history is discarded whenever the ring, the backend or the output
// length changes.
func (p *Pipeline) Apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if p.applied && p.cfg == cfg {
		return nil
	}

	changes := allChanges
	if p.applied {
		changes = diffConfig(p.cfg, cfg)
	}

	// --- 1. Build ---
	var (
		window  = p.window
		backend = p.backend
		bands   = p.bands
		err     error
	)

	if changes.Window {
		if window, err = fft.NewWindowTable(cfg.Window, cfg.FFTSize); err != nil {
			return fmt.Errorf("window table: %w", err)
		}
	}
	if changes.Backend {
		if backend, err = fft.New(cfg.BackendKind(), cfg.FFTBufferSize, cfg.FFTSize); err != nil {
			return fmt.Errorf("fft backend: %w", err)
		}
	}
	if changes.Bands {
		bands = nil
		if cfg.Bands > 0 {
			bands, err = NewBandMapper(cfg.SampleRate, cfg.FFTBufferSize, cfg.Bands, cfg.FreqMin, cfg.FreqMax)
			if err != nil {
				return fmt.Errorf("band table: %w", err)
			}
		}
	}

	// --- 2. Commit ---
	p.decoder = newFrameDecoder(cfg)
	if changes.Ring {
		if p.ring != nil && p.ring.Len() == cfg.FFTSize {
			p.ring.Reset()
		} else {
			p.ring = NewRingBuffer(cfg.FFTSize)
		}
	}
	p.window = window
	if changes.Backend {
		p.backend = backend
		p.block = make([]float64, cfg.FFTBufferSize)
		p.spectrum = make([]float64, backend.OutputLen())
	}
	p.bands = bands
	if changes.Smoothing {
		p.smoother.SetTimes(cfg.SampleRate, cfg.AttackMs, cfg.DecayMs)
	}
	if changes.Ring || changes.Backend || changes.Output {
		p.smoother.Reset()
	}
	p.compressor = NewCompressor(cfg.Sensitivity)

	p.cfg = cfg
	p.applied = true

	logger.Debugf("applied config (%d Hz, %d ch, %d-bit, fft %d/%d, %d bands, %v, %v)",
		cfg.SampleRate, cfg.Channels, cfg.BitsPerSample, cfg.FFTSize, cfg.FFTBufferSize,
		cfg.Bands, cfg.Window, cfg.BackendKind())

	return nil
}

// Write processes buf as one chunk. It always reports len(buf) consumed, so
// a Pipeline can sit behind io.Copy with a buffer of one device period.
func (p *Pipeline) Write(buf []byte) (int, error) {
	p.Process(buf, 0, len(buf))
	return len(buf), nil
}

// Process ingests buf[offset:offset+count] and emits at most one frame.
// Malformed chunks and chunks that hold no whole frame are ignored. A panic
// while processing drops the frame; it never reaches the caller.
func (p *Pipeline) Process(buf []byte, offset, count int) {
	if !p.applied || !p.decoder.valid(buf, offset, count) {
		p.ignored.Add(1)
		return
	}

	start := p.now()

	if p.decoder.feed(p.ring, buf[offset:offset+count]) == 0 {
		p.ignored.Add(1)
		return
	}

	values, ok := p.compute()
	if !ok {
		return
	}

	frame := Frame{
		Seq:     p.frames.Add(1),
		Values:  values,
		Elapsed: p.now().Sub(start),
	}
	p.emit(frame)
}

// compute runs snapshot through compression and returns a new slice.
func (p *Pipeline) compute() (values []float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.dropped.Add(1)
			if logger.Enabled(log.LevelDebug) {
				logger.Debugf("dropped frame: %v", r)
			}
			values, ok = nil, false
		}
	}()

	cfg := &p.cfg

	// --- 1. Linearize and window ---
	block := p.ring.Snapshot(p.block)
	p.window.Apply(block[:cfg.FFTSize])

	// --- 2. Transform ---
	spectrum := p.backend.Transform(p.spectrum, block)

	// --- 3. Band ---
	switch {
	case cfg.Bands == 0:
		values = make([]float64, len(spectrum))
		copy(values, spectrum)
	case p.backend.Kind() == fft.Identity:
		values = make([]float64, cfg.Bands)
		BlockAverage(values, spectrum[:cfg.FFTSize])
	default:
		values = p.bands.Map(make([]float64, cfg.Bands), spectrum)
	}

	// --- 4. Smooth and compress ---
	p.smoother.Smooth(values)
	if cfg.Bands > 0 || cfg.UseLogScale {
		p.compressor.Apply(values)
	}

	return values, true
}

func (p *Pipeline) emit(frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			p.dropped.Add(1)
			logger.Errorf("observer panicked on frame %d: %v", frame.Seq, r)
		}
	}()

	for _, o := range p.observers {
		o.OnFrame(frame)
	}
}
