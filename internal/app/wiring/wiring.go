// Package wiring turns a loaded configuration into capture components.
// Hardware backends are passed in so the package stays free of cgo.
package wiring

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/audio"
	"github.com/emmett/voxcode/internal/capture"
	"github.com/emmett/voxcode/internal/config"
	"github.com/emmett/voxcode/internal/earcon"
	"github.com/emmett/voxcode/internal/filter"
	"github.com/emmett/voxcode/internal/stt"
)

// EngineConfig maps the capture and transcription settings
func EngineConfig(cfg *config.Config, log zerolog.Logger) (capture.Config, error) {
	mode, err := capture.ParseMode(cfg.Capture.Mode)
	if err != nil {
		return capture.Config{}, err
	}

	maxChunks := cfg.Capture.PushToTalkMaxChunks
	if mode == capture.ModeStreaming {
		maxChunks = cfg.Capture.StreamingMaxChunks
	}

	return capture.Config{
		Mode:          mode,
		SampleRate:    cfg.Capture.SampleRate,
		FlushInterval: cfg.Capture.FlushInterval,
		MaxChunks:     maxChunks,
		Transcription: stt.Options{
			Language:    cfg.Transcription.Language,
			Temperature: cfg.Transcription.Temperature,
			Model:       cfg.Transcription.Model,
		},
		Logger: log,
	}, nil
}

// CaptureConfig maps the device settings for the microphone backends
func CaptureConfig(cfg *config.Config) audio.CaptureConfig {
	c := audio.DefaultCaptureConfig()
	c.DeviceName = cfg.Capture.Device
	// one period is 30ms at any rate
	c.BufferFrames = uint32(cfg.Capture.SampleRate * 30 / 1000)
	return c
}

// ClientConfig maps the transcription service settings
func ClientConfig(cfg *config.Config, log zerolog.Logger) stt.ClientConfig {
	c := stt.DefaultClientConfig()
	c.Endpoint = cfg.Transcription.Endpoint
	c.APIKey = cfg.Transcription.APIKey
	c.Timeout = cfg.Transcription.Timeout
	c.EnableHTTP2 = cfg.Transcription.HTTP2
	c.Logger = log
	return c
}

// FilterConfig maps the filter settings. Configured phrases and patterns
// extend the built-in deny-list.
func FilterConfig(cfg *config.Config, log zerolog.Logger) filter.Config {
	c := filter.DefaultConfig()
	c.Phrases = append(c.Phrases, cfg.Filter.Phrases...)
	c.Patterns = append(c.Patterns, cfg.Filter.Patterns...)
	c.SimilarityThreshold = cfg.Filter.SimilarityThreshold
	c.MaxSymbolRatio = cfg.Filter.MaxSymbolRatio
	c.Logger = log
	return c
}

// Earcons returns the earcon cache, or nil when earcons are disabled.
// Clips are read from the configured directory with synthesized tones for
// anything missing, and the engine's clips are loaded up front.
func Earcons(cfg *config.Config, log zerolog.Logger) *earcon.Cache {
	if !cfg.Earcons.Enabled {
		return nil
	}

	var loader earcon.Loader = earcon.NewToneLoader(cfg.Capture.SampleRate)
	if cfg.Earcons.Dir != "" {
		loader = &earcon.FileLoader{
			Dir:        cfg.Earcons.Dir,
			SampleRate: cfg.Capture.SampleRate,
			Fallback:   loader,
		}
	}

	cache := earcon.NewCache(earcon.Config{
		MaxBytes: cfg.Earcons.MaxBytes,
		Loader:   loader,
		Logger:   log,
	})
	// the engine plays these while holding its lock
	if err := cache.Preload(earcon.KeyRecordingStart, earcon.KeyRecordingStop, earcon.KeyError); err != nil {
		log.Warn().Err(err).Msg("failed to preload earcons")
	}
	return cache
}

// Backends are the hardware-facing collaborators supplied by the caller
type Backends struct {
	Microphone audio.Microphone
	Player     capture.EarconPlayer

	// Transcriber overrides the HTTP client built from the config
	Transcriber stt.Transcriber
}

// NewEngine builds a capture engine from cfg
func NewEngine(cfg *config.Config, backends Backends, listener capture.Listener, log zerolog.Logger) (*capture.Engine, error) {
	engineCfg, err := EngineConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	f, err := filter.New(FilterConfig(cfg, log))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript filter: %w", err)
	}

	transcriber := backends.Transcriber
	if transcriber == nil {
		transcriber = stt.NewClient(ClientConfig(cfg, log))
	}

	deps := capture.Dependencies{
		Microphone:  backends.Microphone,
		Transcriber: transcriber,
		Filter:      f,
		Listener:    listener,
	}
	if cache := Earcons(cfg, log); cache != nil && backends.Player != nil {
		deps.Earcons = cache
		deps.Player = backends.Player
	}

	return capture.New(engineCfg, deps)
}
