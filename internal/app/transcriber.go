package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/app/wiring"
	"github.com/emmett/voxcode/internal/audio/device"
	"github.com/emmett/voxcode/internal/capture"
	"github.com/emmett/voxcode/internal/config"
	"github.com/emmett/voxcode/internal/earcon/playback"
	"github.com/emmett/voxcode/internal/metrics"
	"github.com/emmett/voxcode/internal/output"
	grpcserver "github.com/emmett/voxcode/internal/server/grpc"
)

// runtime is everything a CLI session owns
type runtime struct {
	engine  *capture.Engine
	sink    *output.Sink
	status  *output.ConsoleOutput
	player  *playback.SpeakerPlayer
	health  *grpcserver.Server
	metrics *http.Server
	log     zerolog.Logger
}

// newRuntime builds the engine and its outputs from cfg
func newRuntime(cfg *config.Config, log zerolog.Logger) (*runtime, error) {
	rt := &runtime{log: log}

	// status lines stay off stdout so transcripts can be piped
	rt.status = output.NewConsoleOutput(output.ConsoleConfig{Writer: os.Stderr, ShowTimestamp: true})

	formatter, err := output.NewFormatter(cfg.Output.Format, os.Stdout)
	if err != nil {
		return nil, err
	}
	rt.sink, err = output.NewSink(output.SinkConfig{
		Formatter: formatter,
		File:      cfg.Output.File,
		Clipboard: cfg.Output.Clipboard,
		Notify:    cfg.Output.Notify,
		Session:   uuid.NewString(),
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	listeners := capture.Listeners{rt.sink}
	if cfg.Server.GRPCPort > 0 {
		rt.health = grpcserver.NewServer(grpcserver.Config{Port: cfg.Server.GRPCPort, Logger: log})
		listeners = append(listeners, rt.health)
	}

	mic, err := device.NewChain(cfg.Capture.Providers, wiring.CaptureConfig(cfg), log)
	if err != nil {
		rt.close()
		return nil, err
	}

	backends := wiring.Backends{Microphone: mic}
	if cfg.Earcons.Enabled {
		rt.player = playback.NewSpeakerPlayer(cfg.Capture.SampleRate, log)
		backends.Player = rt.player
	}

	rt.engine, err = wiring.NewEngine(cfg, backends, listeners, log)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to create capture engine: %w", err)
	}

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		rt.metrics = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	return rt, nil
}

// serve starts the optional health and metrics servers
func (rt *runtime) serve() {
	if rt.health != nil {
		go func() {
			if err := rt.health.Start(); err != nil {
				rt.log.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}
	if rt.metrics != nil {
		go func() {
			rt.log.Info().Str("addr", rt.metrics.Addr).Msg("metrics endpoint listening")
			if err := rt.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}
}

// finish disposes the engine, which delivers queued transcripts to the sink,
// and reports the session total
func (rt *runtime) finish() {
	if err := rt.engine.Dispose(); err != nil {
		rt.log.Warn().Err(err).Msg("engine shutdown incomplete")
	}
	rt.status.Info(fmt.Sprintf("Total transcriptions: %d", rt.sink.Count()))
}

// close disposes the engine and stops everything else. The sink closes last
// so events delivered during Dispose still reach it.
func (rt *runtime) close() {
	if rt.engine != nil {
		if err := rt.engine.Dispose(); err != nil {
			rt.log.Warn().Err(err).Msg("engine shutdown incomplete")
		}
	}
	if rt.health != nil {
		rt.health.Stop()
	}
	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = rt.metrics.Shutdown(ctx)
		cancel()
	}
	if rt.player != nil {
		rt.player.Close()
	}
	if rt.sink != nil {
		_ = rt.sink.Close()
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Transcriber runs streaming dictation: the microphone stays open and audio
// is transcribed every flush interval until interrupted
type Transcriber struct {
	config *config.Config
	log    zerolog.Logger
}

// NewTranscriber creates a new Transcriber instance
func NewTranscriber(cfg *config.Config, log zerolog.Logger) *Transcriber {
	return &Transcriber{config: cfg, log: log}
}

// Run starts the transcription session
func (t *Transcriber) Run() error {
	rt, err := newRuntime(t.config, t.log)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.serve()

	ctx, cancel := signalContext()
	defer cancel()

	if err := rt.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	rt.status.Info(fmt.Sprintf("Streaming mode: transcribing every %s. Press Ctrl+C to stop.", t.config.Capture.FlushInterval))

	<-ctx.Done()
	rt.status.Info("Stopping...")

	// transcribe whatever is still buffered
	stopCtx, stopCancel := context.WithTimeout(context.Background(), t.config.Transcription.Timeout)
	defer stopCancel()
	if _, err := rt.engine.Stop(stopCtx); err != nil && !errors.Is(err, capture.ErrNotRecording) {
		t.log.Warn().Err(err).Msg("final transcription failed")
	}

	rt.finish()
	return nil
}
