package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/capture"
	"github.com/emmett/voxcode/internal/config"
	"github.com/emmett/voxcode/internal/input"
)

// PTTTranscriber runs push-to-talk dictation driven by a global hotkey
type PTTTranscriber struct {
	config *config.Config
	log    zerolog.Logger
}

// NewPTTTranscriber creates a new PTTTranscriber
func NewPTTTranscriber(cfg *config.Config, log zerolog.Logger) *PTTTranscriber {
	return &PTTTranscriber{config: cfg, log: log}
}

// Run registers the hotkey and records while it is toggled on or held
func (p *PTTTranscriber) Run() error {
	rt, err := newRuntime(p.config, p.log)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.serve()

	ctx, cancel := signalContext()
	defer cancel()

	recorder := input.RecorderFuncs{
		StartFunc: rt.engine.Start,
		StopFunc: func(ctx context.Context) error {
			_, err := rt.engine.Stop(ctx)
			return err
		},
	}

	behavior := input.Behavior(p.config.Hotkey.Behavior)
	trigger := input.NewHotkeyTrigger(recorder, behavior, p.log)
	if err := trigger.Start(ctx, p.config.Hotkey.Key); err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}
	defer trigger.Stop()

	verb := "toggle"
	if behavior == input.BehaviorHold {
		verb = "hold"
	}
	rt.status.Info(fmt.Sprintf("Push-to-talk mode. Press %s to %s recording. Press Ctrl+C to exit.", p.config.Hotkey.Key, verb))

	<-ctx.Done()
	rt.status.Info("Exiting...")

	if rt.engine.State() != capture.StateIdle {
		if _, err := rt.engine.Stop(context.Background()); err != nil && !errors.Is(err, capture.ErrNotRecording) {
			p.log.Warn().Err(err).Msg("final transcription failed")
		}
	}

	rt.finish()
	return nil
}

// Run picks the runner for the configured mode
func Run(cfg *config.Config, log zerolog.Logger) error {
	mode, err := capture.ParseMode(cfg.Capture.Mode)
	if err != nil {
		return err
	}
	if mode == capture.ModeStreaming {
		return NewTranscriber(cfg, log).Run()
	}
	return NewPTTTranscriber(cfg, log).Run()
}
