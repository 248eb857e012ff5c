package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/audio"
	"github.com/emmett/voxcode/internal/earcon"
	"github.com/emmett/voxcode/internal/filter"
	"github.com/emmett/voxcode/internal/logging"
	"github.com/emmett/voxcode/internal/metrics"
	"github.com/emmett/voxcode/internal/stt"
)

const defaultDrainTimeout = 2 * time.Second

// Config holds configuration for the capture engine
type Config struct {
	Mode       Mode
	SampleRate int

	// FlushInterval is how often streaming mode transcribes buffered audio
	FlushInterval time.Duration

	// MaxChunks bounds buffered audio. Zero picks a default for the mode.
	MaxChunks int

	// DrainTimeout bounds how long Dispose waits for queued listener events
	DrainTimeout time.Duration

	Transcription stt.Options
	Logger        zerolog.Logger
}

// DefaultConfig returns a push-to-talk configuration at 16kHz
func DefaultConfig() Config {
	return Config{
		Mode:          ModePushToTalk,
		SampleRate:    16000,
		FlushInterval: 2 * time.Second,
		DrainTimeout:  defaultDrainTimeout,
		Logger:        zerolog.Nop(),
	}
}

// EarconSource provides feedback clips as 16-bit mono PCM
type EarconSource interface {
	Get(key string) ([]byte, error)
}

// EarconPlayer plays a clip without blocking
type EarconPlayer interface {
	Play(pcm []byte)
}

// Dependencies are the collaborators of an Engine. Microphone and
// Transcriber are required.
type Dependencies struct {
	Microphone  audio.Microphone
	Transcriber stt.Transcriber
	Filter      *filter.Filter
	Listener    Listener
	Earcons     EarconSource
	Player      EarconPlayer
}

type session struct {
	id        string
	startedAt time.Time
	stream    audio.Stream // nil once the microphone is detached
	acc       *audio.Accumulator
	stopFlush chan struct{}
	log       zerolog.Logger
}

// Engine turns microphone audio into filtered transcripts. It owns at most
// one session at a time and reports progress to its Listener.
type Engine struct {
	config      Config
	mic         audio.Microphone
	transcriber stt.Transcriber
	filter      *filter.Filter
	listener    Listener
	earcons     EarconSource
	player      EarconPlayer
	events      *dispatcher
	log         zerolog.Logger

	mu      sync.Mutex
	state   State
	session *session

	// procMu serializes pipeline runs
	procMu sync.Mutex
}

// New creates an idle engine
func New(config Config, deps Dependencies) (*Engine, error) {
	if deps.Microphone == nil {
		return nil, fmt.Errorf("capture engine requires a microphone")
	}
	if deps.Transcriber == nil {
		return nil, fmt.Errorf("capture engine requires a transcriber")
	}
	if config.Mode == "" {
		config.Mode = ModePushToTalk
	}
	if config.Mode != ModeStreaming && config.Mode != ModePushToTalk {
		return nil, fmt.Errorf("unknown capture mode %q", config.Mode)
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 2 * time.Second
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaultDrainTimeout
	}
	if config.MaxChunks <= 0 {
		config.MaxChunks = audio.DefaultPushToTalkMaxChunks
		if config.Mode == ModeStreaming {
			config.MaxChunks = audio.DefaultStreamingMaxChunks
		}
	}

	if deps.Filter == nil {
		f, err := filter.New(filter.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create transcript filter: %w", err)
		}
		deps.Filter = f
	}
	if deps.Listener == nil {
		deps.Listener = NopListener{}
	}

	log := config.Logger.With().Str("component", "capture").Str("mode", string(config.Mode)).Logger()
	return &Engine{
		config:      config,
		mic:         deps.Microphone,
		transcriber: deps.Transcriber,
		filter:      deps.Filter,
		listener:    deps.Listener,
		earcons:     deps.Earcons,
		player:      deps.Player,
		events:      newDispatcher(log),
		log:         log,
		state:       StateIdle,
	}, nil
}

// Start opens the microphone and begins a new session. An active session is
// discarded first.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDisposed {
		return ErrDisposed
	}
	if err := e.transcriber.Ready(); err != nil {
		e.reportError(ErrorKindPrecondition, err)
		return err
	}

	if e.session != nil {
		e.session.log.Warn().Str("state", e.state.String()).Msg("discarding active session for restart")
		e.forceCleanupLocked()
	}

	stream, err := e.mic.Open(ctx, e.config.SampleRate, 1)
	if err != nil {
		e.reportError(ErrorKindDevice, err)
		return fmt.Errorf("failed to open microphone: %w", err)
	}

	id := uuid.NewString()
	s := &session{
		id:        id,
		startedAt: time.Now(),
		stream:    stream,
		stopFlush: make(chan struct{}),
		log:       logging.WithSession(e.log, id),
	}
	s.acc = audio.NewAccumulator(e.config.MaxChunks, s.log)
	e.session = s

	e.setStateLocked(StateRecording)
	metrics.RecordSessionStart(string(e.config.Mode))
	e.events.post(e.listener.OnRecordingStart)
	e.playEarcon(earcon.KeyRecordingStart)
	s.log.Info().Str("microphone", e.mic.Name()).Msg("recording started")

	go e.collect(s, stream)
	if e.config.Mode == ModeStreaming {
		go e.flushLoop(s)
	}
	return nil
}

// Stop detaches the microphone and transcribes whatever audio the session
// still holds. It returns ErrBusy if the previous Stop is still processing.
func (e *Engine) Stop(ctx context.Context) (Result, error) {
	e.mu.Lock()
	switch e.state {
	case StateDisposed:
		e.mu.Unlock()
		return Result{}, ErrDisposed
	case StateIdle:
		e.mu.Unlock()
		return Result{}, ErrNotRecording
	}
	s := e.session
	if s == nil || s.stream == nil {
		e.mu.Unlock()
		return Result{}, ErrBusy
	}

	e.detachLocked(s)
	e.setStateLocked(StateProcessing)
	e.events.post(e.listener.OnRecordingStop)
	e.playEarcon(earcon.KeyRecordingStop)
	s.log.Info().Dur("duration", time.Since(s.startedAt)).Int("chunks", s.acc.Len()).Msg("recording stopped")
	e.mu.Unlock()

	// a streaming flush may still be running
	e.procMu.Lock()
	defer e.procMu.Unlock()

	e.mu.Lock()
	if e.session != s {
		e.mu.Unlock()
		return Result{}, ErrSessionAborted
	}
	pcm := s.acc.Drain()
	e.mu.Unlock()

	res, err := e.process(ctx, s.log, audio.BytesToSamples(pcm), e.config.SampleRate)
	s.acc.Clear()

	e.mu.Lock()
	if e.session == s {
		e.session = nil
		e.setStateLocked(StateIdle)
	}
	e.mu.Unlock()
	return res, err
}

// Dispose releases the microphone and stops event delivery. Listener events
// queued before the call are delivered before it returns, up to
// DrainTimeout. Further calls are no-ops.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	if e.state == StateDisposed {
		e.mu.Unlock()
		return nil
	}
	e.forceCleanupLocked()
	e.setStateLocked(StateDisposed)
	e.mu.Unlock()

	e.events.close()
	if !e.events.wait(e.config.DrainTimeout) {
		e.log.Warn().Dur("timeout", e.config.DrainTimeout).Msg("listener events still pending after dispose")
		return fmt.Errorf("%w after %s", ErrEventsPending, e.config.DrainTimeout)
	}
	e.log.Debug().Msg("engine disposed")
	return nil
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Mode returns the configured mode
func (e *Engine) Mode() Mode {
	return e.config.Mode
}

// BufferedChunks returns the number of chunks held by the active session
func (e *Engine) BufferedChunks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return 0
	}
	return e.session.acc.Len()
}

// Status returns a snapshot of the engine
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{State: e.state, Mode: e.config.Mode}
	if s := e.session; s != nil {
		st.SessionID = s.id
		st.StartedAt = s.startedAt
		st.BufferedChunks = s.acc.Len()
	}
	return st
}

// collect moves chunks from the stream into the session's accumulator
func (e *Engine) collect(s *session, stream audio.Stream) {
	for ev := range stream.Events() {
		switch ev.Kind {
		case audio.EventChunk:
			e.mu.Lock()
			if e.session == s && s.stream != nil {
				s.acc.Push(ev.Chunk)
			}
			e.mu.Unlock()
		case audio.EventError, audio.EventClosed:
			e.streamEnded(s, ev.Err)
			return
		}
	}
	e.streamEnded(s, nil)
}

// streamEnded force-stops the session if its stream ended on its own
func (e *Engine) streamEnded(s *session, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != s || s.stream == nil {
		return
	}
	if err == nil {
		err = errStreamEnded
	}
	e.reportError(ErrorKindStream, err)
	e.forceCleanupLocked()
}

func (e *Engine) flushLoop(s *session) {
	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopFlush:
			return
		case <-ticker.C:
			e.flush(s)
		}
	}
}

// flush transcribes the audio buffered so far without closing the microphone
func (e *Engine) flush(s *session) {
	if !e.procMu.TryLock() {
		s.log.Debug().Msg("previous flush still running, skipping tick")
		return
	}
	defer e.procMu.Unlock()

	e.mu.Lock()
	if e.session != s || e.state != StateRecording || s.stream == nil {
		e.mu.Unlock()
		return
	}
	pcm := s.acc.Drain()
	if len(pcm) == 0 {
		e.mu.Unlock()
		return
	}
	s.acc.Clear()
	e.setStateLocked(StateProcessing)
	e.mu.Unlock()

	e.process(context.Background(), s.log, audio.BytesToSamples(pcm), e.config.SampleRate)

	e.mu.Lock()
	if e.session == s && s.stream != nil && e.state == StateProcessing {
		e.setStateLocked(StateRecording)
	}
	e.mu.Unlock()
}

// TranscribeSamples runs an existing recording through the same pipeline as
// captured audio. It does not touch the microphone or the engine state, but
// waits for any pipeline run in progress.
func (e *Engine) TranscribeSamples(ctx context.Context, samples []int16, sampleRate int) (Result, error) {
	if e.State() == StateDisposed {
		return Result{}, ErrDisposed
	}
	if sampleRate <= 0 {
		sampleRate = e.config.SampleRate
	}
	if err := e.transcriber.Ready(); err != nil {
		e.reportError(ErrorKindPrecondition, err)
		return Result{}, err
	}

	e.procMu.Lock()
	defer e.procMu.Unlock()

	log := logging.WithSession(e.log, uuid.NewString())
	log.Debug().Int("samples", len(samples)).Int("sample_rate", sampleRate).Msg("transcribing supplied audio")
	return e.process(ctx, log, samples, sampleRate)
}

// process runs preprocessing, encoding, transcription and filtering on one
// batch of audio and dispatches the transcript if it survives
func (e *Engine) process(ctx context.Context, log zerolog.Logger, samples []int16, sampleRate int) (Result, error) {
	ts := time.Now()
	metrics.ObserveBufferLevel(audio.RMS(samples))

	// SafePreprocess logs its own failure and hands back the raw samples
	processed, _ := audio.SafePreprocess(samples, log)
	wav := audio.EncodeWAV(audio.TrimSilence(processed), sampleRate)

	text, err := e.transcriber.Transcribe(ctx, wav, e.config.Transcription)
	switch {
	case errors.Is(err, stt.ErrEmptyAudio):
		log.Debug().Int("samples", len(samples)).Msg("no audio left after preprocessing, skipped transcription")
		return e.outcome(Result{Timestamp: ts, Outcome: OutcomeEmptyAudio}), nil
	case err != nil:
		kind := ErrorKindService
		if stt.IsPrecondition(err) {
			kind = ErrorKindPrecondition
		}
		e.reportError(kind, err)
		return e.outcome(Result{Timestamp: ts, Outcome: OutcomeFailed}), err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		log.Debug().Msg("service returned no transcription")
		return e.outcome(Result{Timestamp: ts, Outcome: OutcomeNoSpeech}), nil
	}

	cleaned, verdict := e.filter.Apply(text)
	switch verdict {
	case filter.OutcomeAccepted:
		log.Info().Str("text", cleaned).Dur("audio", time.Duration(audio.Duration(len(samples), sampleRate)*float64(time.Second))).Msg("transcription dispatched")
		e.events.post(func() { e.listener.OnTranscription(cleaned, ts) })
		return e.outcome(Result{Text: cleaned, Timestamp: ts, Outcome: OutcomeDispatched}), nil
	case filter.OutcomeHallucination:
		return e.outcome(Result{Timestamp: ts, Outcome: OutcomeHallucination}), nil
	case filter.OutcomeDuplicate:
		return e.outcome(Result{Timestamp: ts, Outcome: OutcomeDuplicate}), nil
	default:
		return e.outcome(Result{Timestamp: ts, Outcome: OutcomeNoSpeech}), nil
	}
}

func (e *Engine) outcome(r Result) Result {
	metrics.RecordOutcome(string(r.Outcome))
	return r
}

// detachLocked closes the session's microphone and stops its flush ticker
func (e *Engine) detachLocked(s *session) {
	if s.stream == nil {
		return
	}
	stream := s.stream
	s.stream = nil
	close(s.stopFlush)

	if err := stream.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close microphone")
	}
}

// forceCleanupLocked discards the active session: the microphone is
// closed, buffered audio dropped and the duplicate filter reset
func (e *Engine) forceCleanupLocked() {
	s := e.session
	if s == nil {
		return
	}
	e.detachLocked(s)
	s.acc.Clear()
	e.session = nil
	e.filter.Reset()

	if e.state != StateDisposed {
		e.setStateLocked(StateIdle)
	}
	s.log.Debug().Msg("session cleaned up")
}

func (e *Engine) setStateLocked(state State) {
	if e.state == state {
		return
	}
	e.log.Debug().Str("from", e.state.String()).Str("to", state.String()).Msg("state change")
	e.state = state
	metrics.SetEngineState(int(state))

	if sl, ok := e.listener.(StateListener); ok {
		e.events.post(func() { sl.OnStateChange(state) })
	}
}

// reportError logs err once and forwards it to the listener
func (e *Engine) reportError(kind ErrorKind, err error) {
	metrics.RecordError(string(kind))
	e.log.Error().Err(err).Str("kind", string(kind)).Msg("capture error")

	msg := err.Error()
	e.events.post(func() { e.listener.OnError(kind, msg) })
	e.playEarcon(earcon.KeyError)
}

func (e *Engine) playEarcon(key string) {
	if e.earcons == nil || e.player == nil {
		return
	}
	pcm, err := e.earcons.Get(key)
	if err != nil {
		e.log.Debug().Err(err).Str("earcon", key).Msg("earcon unavailable")
		return
	}
	e.player.Play(pcm)
}
