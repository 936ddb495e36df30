// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"rtspectrum/cmd"
	"rtspectrum/internal/analysis"
	"rtspectrum/internal/audio"
	"rtspectrum/internal/config"
	"rtspectrum/internal/log"
	"rtspectrum/internal/transport"
	"rtspectrum/internal/transport/udp"
	"rtspectrum/pkg/build"
)

// main is the entry point for the spectrum analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Build the pipeline and its consumers
//
// 2. Concurrent Phase (Hot Path):
//   - Capture from the input device, or play a WAV file
//   - Emit one frame per chunk to every consumer
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Initialize build information including version, commit hash, and build time
	if err := build.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}

	// Parse command line arguments and build configuration
	options, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if options.Command == "" {
		return
	}

	log.SetLevel(options.Config.Level())
	log.Infof("%s", build.GetBuildFlags())

	// One thread for the capture callback, one for transports and I/O.
	runtime.GOMAXPROCS(2)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := analysis.NewPipeline()
	consumers, err := newConsumers(options.Config)
	if err != nil {
		log.Fatalf("%v", err)
	}
	for _, o := range consumers.observers {
		pipeline.Subscribe(o)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	switch options.Command {
	case cmd.CommandAnalyze:
		err = analyzeFile(ctx, options, pipeline)
	default:
		err = capture(ctx, options, pipeline)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stats := pipeline.Stats()
	log.Infof("frames: %d emitted, %d dropped, %d chunks ignored", stats.Frames, stats.Dropped, stats.Ignored)

	if cerr := consumers.Close(); cerr != nil {
		log.Errorf("error closing transports: %v", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%v", err)
	}
}

// consumers holds the frame observers built from the transport section.
type consumers struct {
	observers []analysis.Observer
	fanout    *transport.Fanout
	publisher *udp.Publisher
}

func newConsumers(cfg *config.Config) (*consumers, error) {
	c := &consumers{fanout: transport.NewFanout()}

	if cfg.Transport.LogFrames > 0 {
		c.fanout.Add(transport.NewLoggingTransport(cfg.Transport.LogFrames))
	}

	if cfg.Transport.WSEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WSAddr)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.fanout.Add(ws)
	}

	if c.fanout.Len() > 0 {
		c.observers = append(c.observers, c.fanout)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			c.Close()
			return nil, err
		}
		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			c.Close()
			return nil, err
		}
		publisher.Start()
		c.publisher = publisher
		c.observers = append(c.observers, publisher)
	}

	return c, nil
}

func (c *consumers) Close() error {
	var errs []error
	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}
	errs = append(errs, c.fanout.Close())
	return errors.Join(errs...)
}

// capture runs live capture until ctx is cancelled.
func capture(ctx context.Context, options *cmd.Options, pipeline *analysis.Pipeline) error {
	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(options.Config, pipeline)
	if err != nil {
		return err
	}

	pcfg, err := options.Config.Pipeline(engine.Format())
	if err != nil {
		return err
	}
	if err := pipeline.Apply(pcfg); err != nil {
		return err
	}

	// CRITICAL: Start of real-time audio processing
	// The first call to StartInputStream triggers PortAudio to begin
	// calling the callback function, marking the start of the hot path
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	// Start recording if enabled in configuration
	if options.Record {
		if err := engine.StartRecording(options.OutputFile); err != nil {
			engine.Close()
			return err
		}
	}

	// Block until termination signal is received
	<-ctx.Done()
	log.Infof("shutting down after %d callbacks", engine.Callbacks())

	// Clean up audio engine resources
	if err := engine.Close(); err != nil {
		log.Errorf("error closing audio engine: %v", err)
	}
	if options.Record {
		log.Infof("recording saved to: %s", options.OutputFile)
	}
	return ctx.Err()
}

// analyzeFile plays a WAV file through the pipeline.
func analyzeFile(ctx context.Context, options *cmd.Options, pipeline *analysis.Pipeline) error {
	src, err := audio.OpenFile(options.InputFile)
	if err != nil {
		return err
	}
	defer src.Close()
	src.SetRealtime(options.Realtime)

	pcfg, err := options.Config.Pipeline(src.Format())
	if err != nil {
		return err
	}
	if err := pipeline.Apply(pcfg); err != nil {
		return err
	}

	format := src.Format()
	log.Infof("analyzing %s: %d ch @ %d Hz, %s packets", options.InputFile, format.Channels, format.SampleRate, src.PacketDuration())

	frames, err := src.Run(ctx, pipeline)
	log.Infof("delivered %d frames", frames)
	return err
}
