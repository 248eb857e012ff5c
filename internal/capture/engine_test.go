package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emmett/voxcode/internal/audio"
	"github.com/emmett/voxcode/internal/stt"
)

// eventLog is shared by the fakes so tests can check ordering across them
type eventLog struct {
	mu      sync.Mutex
	entries []string
	states  []State
}

func (l *eventLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *eventLog) stateSnapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func (l *eventLog) has(entry string) bool {
	for _, e := range l.snapshot() {
		if e == entry {
			return true
		}
	}
	return false
}

func (l *eventLog) OnTranscription(text string, _ time.Time) { l.add("transcription:" + text) }
func (l *eventLog) OnError(kind ErrorKind, _ string)         { l.add("error:" + string(kind)) }
func (l *eventLog) OnRecordingStart()                        { l.add("start") }
func (l *eventLog) OnRecordingStop()                         { l.add("stop") }

func (l *eventLog) OnStateChange(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

type fakeStream struct {
	name   string
	log    *eventLog
	mu     sync.Mutex
	events chan audio.StreamEvent
	closed bool
	closes int
	next   uint64
}

func (s *fakeStream) Events() <-chan audio.StreamEvent {
	return s.events
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.add("close:" + s.name)
	close(s.events)
	return nil
}

func (s *fakeStream) send(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- audio.StreamEvent{Kind: audio.EventChunk, Chunk: audio.AudioChunk{Data: data, Index: s.next}}
	s.next++
}

func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.events <- audio.StreamEvent{Kind: audio.EventError, Err: err}
	close(s.events)
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeMic struct {
	log     *eventLog
	err     error
	mu      sync.Mutex
	streams []*fakeStream
}

func (m *fakeMic) Name() string { return "fake" }

func (m *fakeMic) Open(ctx context.Context, sampleRate, channels int) (audio.Stream, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &fakeStream{
		name:   fmt.Sprintf("stream%d", len(m.streams)+1),
		log:    m.log,
		events: make(chan audio.StreamEvent, 64),
	}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMic) stream(i int) *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[i]
}

func (m *fakeMic) opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

type fakeTranscriber struct {
	mu       sync.Mutex
	texts    []string
	err      error
	ready    error
	block    chan struct{}
	entered  chan struct{}
	calls    int
	lastSize int
}

func (f *fakeTranscriber) Ready() error { return f.ready }

func (f *fakeTranscriber) Transcribe(ctx context.Context, wav []byte, opts stt.Options) (string, error) {
	if len(wav) <= audio.WAVHeaderSize {
		return "", stt.ErrEmptyAudio
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSize = len(wav)
	if f.err != nil {
		return "", f.err
	}
	if len(f.texts) == 0 {
		return "", nil
	}
	text := f.texts[0]
	if len(f.texts) > 1 {
		f.texts = f.texts[1:]
	}
	return text, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func speech() []byte {
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = int16((i%40 - 20) * 500)
	}
	return audio.SamplesToBytes(samples)
}

func newTestEngine(t *testing.T, cfg Config, tr stt.Transcriber) (*Engine, *fakeMic, *eventLog) {
	t.Helper()
	log := &eventLog{}
	mic := &fakeMic{log: log}
	e, err := New(cfg, Dependencies{Microphone: mic, Transcriber: tr, Listener: log})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Dispose() })
	return e, mic, log
}

// shutdown disposes e, which returns once every queued event is delivered
func shutdown(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// expectEntries compares listener events, ignoring stream closes whose
// timing relative to asynchronous callbacks is not fixed
func expectEntries(t *testing.T, entries []string, want ...string) {
	t.Helper()
	var got []string
	for _, e := range entries {
		if !strings.HasPrefix(e, "close:") {
			got = append(got, e)
		}
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected events %v, got %v", want, got)
	}
}

func TestSilentRecordingSkipsTranscription(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"text":"Thank you."}`))
	}))
	defer srv.Close()

	clientCfg := stt.DefaultClientConfig()
	clientCfg.Endpoint = srv.URL
	clientCfg.APIKey = "test-key"

	e, mic, log := newTestEngine(t, DefaultConfig(), stt.NewClient(clientCfg))

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		mic.stream(0).send(make([]byte, 1000))
	}
	waitFor(t, "chunks buffered", func() bool { return e.BufferedChunks() == 3 })

	res, err := e.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if res.Outcome != OutcomeEmptyAudio {
		t.Errorf("Expected empty audio outcome, got %s", res.Outcome)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("Expected no network calls, got %d", n)
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle, got %s", e.State())
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "start", "stop")
}

func TestStopDispatchesTranscription(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{" open the file "}}
	e, mic, log := newTestEngine(t, DefaultConfig(), tr)

	e.Start(context.Background())
	mic.stream(0).send(speech())
	mic.stream(0).send(speech())
	waitFor(t, "chunks buffered", func() bool { return e.BufferedChunks() == 2 })

	res, err := e.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if res.Outcome != OutcomeDispatched || res.Text != "open the file" {
		t.Errorf("Unexpected result %+v", res)
	}
	if tr.lastSize != audio.WAVHeaderSize+2*480*2 {
		t.Errorf("Expected WAV of %d bytes, got %d", audio.WAVHeaderSize+2*480*2, tr.lastSize)
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "start", "stop", "transcription:open the file")

	states := log.stateSnapshot()
	want := []State{StateRecording, StateProcessing, StateIdle, StateDisposed}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("Expected states %v, got %v", want, states)
	}
}

func TestStartWhileRecordingCleansUpFirst(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"second"}}
	e, mic, log := newTestEngine(t, DefaultConfig(), tr)

	e.Start(context.Background())
	mic.stream(0).send(speech())
	waitFor(t, "chunk buffered", func() bool { return e.BufferedChunks() == 1 })

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if mic.stream(0).closeCount() != 1 {
		t.Errorf("Expected first stream closed once, got %d", mic.stream(0).closeCount())
	}
	if e.BufferedChunks() != 0 {
		t.Errorf("Expected no audio carried into the new session, got %d chunks", e.BufferedChunks())
	}
	if e.State() != StateRecording {
		t.Errorf("Expected recording, got %s", e.State())
	}

	mic.stream(1).send(speech())
	waitFor(t, "chunk buffered", func() bool { return e.BufferedChunks() == 1 })
	res, err := e.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if tr.lastSize != audio.WAVHeaderSize+480*2 {
		t.Errorf("Expected only the second session's audio, got %d bytes", tr.lastSize)
	}
	if res.Text != "second" {
		t.Errorf("Expected 'second', got %q", res.Text)
	}

	shutdown(t, e)
	entries := log.snapshot()
	closeAt, secondStartAt := -1, -1
	for i, entry := range entries {
		switch entry {
		case "close:stream1":
			closeAt = i
		case "start":
			secondStartAt = i
		}
	}
	if closeAt < 0 || closeAt > secondStartAt {
		t.Errorf("Expected first stream closed before the new session started, got %v", entries)
	}
}

// slowListener delays OnRecordingStop so later events sit in the queue
type slowListener struct {
	*eventLog
	delay   time.Duration
	release chan struct{}
}

func (l *slowListener) OnRecordingStop() {
	if l.release != nil {
		<-l.release
	}
	time.Sleep(l.delay)
	l.eventLog.OnRecordingStop()
}

func TestDisposeDeliversQueuedTranscription(t *testing.T) {
	log := &eventLog{}
	listener := &slowListener{eventLog: log, delay: 100 * time.Millisecond}
	mic := &fakeMic{log: log}
	tr := &fakeTranscriber{texts: []string{"final words"}}
	e, err := New(DefaultConfig(), Dependencies{Microphone: mic, Transcriber: tr, Listener: listener})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	e.Start(context.Background())
	mic.stream(0).send(speech())
	waitFor(t, "chunk buffered", func() bool { return e.BufferedChunks() == 1 })

	if _, err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}

	if !log.has("transcription:final words") {
		t.Errorf("Expected final transcript delivered before Dispose returned, got %v", log.snapshot())
	}
	expectEntries(t, log.snapshot(), "start", "stop", "transcription:final words")
}

func TestDisposeGivesUpOnStuckListener(t *testing.T) {
	log := &eventLog{}
	listener := &slowListener{eventLog: log, release: make(chan struct{})}
	defer close(listener.release)

	mic := &fakeMic{log: log}
	cfg := DefaultConfig()
	cfg.DrainTimeout = 50 * time.Millisecond
	e, err := New(cfg, Dependencies{Microphone: mic, Transcriber: &fakeTranscriber{}, Listener: listener})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	e.Start(context.Background())
	e.Stop(context.Background())

	begin := time.Now()
	err = e.Dispose()
	if !errors.Is(err, ErrEventsPending) {
		t.Fatalf("Expected ErrEventsPending, got %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Errorf("Dispose waited %s, expected about the drain timeout", elapsed)
	}
	if e.State() != StateDisposed {
		t.Errorf("Expected disposed, got %s", e.State())
	}
}

func TestDisposeTwiceClosesDeviceOnce(t *testing.T) {
	e, mic, _ := newTestEngine(t, DefaultConfig(), &fakeTranscriber{})

	e.Start(context.Background())
	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if err := e.Dispose(); err != nil {
		t.Fatalf("second Dispose failed: %v", err)
	}

	if n := mic.stream(0).closeCount(); n != 1 {
		t.Errorf("Expected device closed once, got %d", n)
	}
	if e.State() != StateDisposed {
		t.Errorf("Expected disposed, got %s", e.State())
	}
	if err := e.Start(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("Expected ErrDisposed from Start, got %v", err)
	}
	if _, err := e.Stop(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("Expected ErrDisposed from Stop, got %v", err)
	}
}

func TestStopWhenIdle(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig(), &fakeTranscriber{})

	if _, err := e.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording, got %v", err)
	}
}

func TestStartWithoutCredential(t *testing.T) {
	tr := &fakeTranscriber{ready: &stt.PreconditionError{Reason: "no API key"}}
	e, mic, log := newTestEngine(t, DefaultConfig(), tr)

	err := e.Start(context.Background())
	if !stt.IsPrecondition(err) {
		t.Fatalf("Expected precondition error, got %v", err)
	}
	if mic.opens() != 0 {
		t.Error("Microphone must not be opened without a credential")
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle, got %s", e.State())
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "error:precondition")
}

func TestStartDeviceFailure(t *testing.T) {
	log := &eventLog{}
	chain := audio.Chain{
		&fakeMic{log: log, err: errors.New("no capture device")},
		&fakeMic{log: log, err: errors.New("portaudio unavailable")},
	}
	e, err := New(DefaultConfig(), Dependencies{Microphone: chain, Transcriber: &fakeTranscriber{}, Listener: log})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = e.Start(context.Background())
	if !audio.IsInitError(err) {
		t.Fatalf("Expected InitError, got %v", err)
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle, got %s", e.State())
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "error:device")
}

func TestStreamErrorForcesStop(t *testing.T) {
	e, mic, log := newTestEngine(t, DefaultConfig(), &fakeTranscriber{})

	e.Start(context.Background())
	mic.stream(0).fail(errors.New("device unplugged"))

	waitFor(t, "engine idle", func() bool { return e.State() == StateIdle })
	if _, err := e.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording after stream failure, got %v", err)
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "start", "error:stream")
}

func TestServiceErrorReturnsToIdle(t *testing.T) {
	tr := &fakeTranscriber{err: &stt.ServiceError{Status: 500, Body: "boom"}}
	e, mic, log := newTestEngine(t, DefaultConfig(), tr)

	e.Start(context.Background())
	mic.stream(0).send(speech())
	waitFor(t, "chunk buffered", func() bool { return e.BufferedChunks() == 1 })

	res, err := e.Stop(context.Background())
	var se *stt.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("Expected service error, got %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("Expected failed outcome, got %s", res.Outcome)
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle, got %s", e.State())
	}
	if err := e.Start(context.Background()); err != nil {
		t.Errorf("Expected next session to start cleanly, got %v", err)
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "start", "stop", "error:service", "start")
}

func TestSecondStopWhileProcessingIsBusy(t *testing.T) {
	tr := &fakeTranscriber{
		texts:   []string{"hello"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	e, mic, _ := newTestEngine(t, DefaultConfig(), tr)

	e.Start(context.Background())
	mic.stream(0).send(speech())
	waitFor(t, "chunk buffered", func() bool { return e.BufferedChunks() == 1 })

	done := make(chan error, 1)
	go func() {
		_, err := e.Stop(context.Background())
		done <- err
	}()
	<-tr.entered

	if e.State() != StateProcessing {
		t.Errorf("Expected processing, got %s", e.State())
	}
	if mic.stream(0).closeCount() != 1 {
		t.Error("Expected microphone released while processing")
	}
	if _, err := e.Stop(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	close(tr.block)
	if err := <-done; err != nil {
		t.Errorf("first Stop failed: %v", err)
	}
	if tr.callCount() != 1 {
		t.Errorf("Expected one transcription, got %d", tr.callCount())
	}
}

func TestStreamingFlushKeepsMicrophoneOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeStreaming
	cfg.FlushInterval = 20 * time.Millisecond

	tr := &fakeTranscriber{texts: []string{"create a branch"}}
	e, mic, log := newTestEngine(t, cfg, tr)

	e.Start(context.Background())
	mic.stream(0).send(speech())

	waitFor(t, "flushed transcription", func() bool { return log.has("transcription:create a branch") })
	waitFor(t, "back to recording", func() bool { return e.State() == StateRecording })
	if n := mic.stream(0).closeCount(); n != 0 {
		t.Errorf("Expected microphone to stay open, closed %d times", n)
	}

	res, err := e.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if res.Outcome != OutcomeEmptyAudio {
		t.Errorf("Expected nothing left to transcribe, got %s", res.Outcome)
	}

	shutdown(t, e)
	states := log.stateSnapshot()
	if len(states) < 3 || states[0] != StateRecording || states[1] != StateProcessing || states[2] != StateRecording {
		t.Errorf("Expected recording, processing, recording, got %v", states)
	}
}

func TestHallucinationIsNotDispatched(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"Thank you for watching."}}
	e, mic, log := newTestEngine(t, DefaultConfig(), tr)

	e.Start(context.Background())
	mic.stream(0).send(speech())
	waitFor(t, "chunk buffered", func() bool { return e.BufferedChunks() == 1 })

	res, err := e.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if res.Outcome != OutcomeHallucination {
		t.Errorf("Expected hallucination outcome, got %s", res.Outcome)
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "start", "stop")
}

func TestDuplicateAcrossSessionsIsSuppressed(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"open the file", "Open the file."}}
	e, mic, _ := newTestEngine(t, DefaultConfig(), tr)

	var outcomes []Outcome
	for i := 0; i < 2; i++ {
		e.Start(context.Background())
		mic.stream(i).send(speech())
		waitFor(t, "chunk buffered", func() bool { return e.BufferedChunks() == 1 })
		res, err := e.Stop(context.Background())
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
		outcomes = append(outcomes, res.Outcome)
	}

	if outcomes[0] != OutcomeDispatched || outcomes[1] != OutcomeDuplicate {
		t.Errorf("Expected dispatched then duplicate, got %v", outcomes)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(DefaultConfig(), Dependencies{Transcriber: &fakeTranscriber{}}); err == nil {
		t.Error("Expected error without microphone")
	}
	if _, err := New(DefaultConfig(), Dependencies{Microphone: &fakeMic{}}); err == nil {
		t.Error("Expected error without transcriber")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"streaming", ModeStreaming, false},
		{"PTT", ModePushToTalk, false},
		{"push-to-talk", ModePushToTalk, false},
		{"", ModePushToTalk, false},
		{"continuous", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseMode(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTranscribeSamplesUsesPipelineWithoutMicrophone(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"from a file"}}
	e, mic, log := newTestEngine(t, DefaultConfig(), tr)

	res, err := e.TranscribeSamples(context.Background(), audio.BytesToSamples(speech()), 8000)
	if err != nil {
		t.Fatalf("TranscribeSamples failed: %v", err)
	}
	if res.Outcome != OutcomeDispatched || res.Text != "from a file" {
		t.Errorf("Unexpected result %+v", res)
	}
	if mic.opens() != 0 {
		t.Errorf("Expected microphone untouched, got %d opens", mic.opens())
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle, got %s", e.State())
	}

	silent, err := e.TranscribeSamples(context.Background(), make([]int16, 800), 16000)
	if err != nil {
		t.Fatalf("TranscribeSamples failed: %v", err)
	}
	if silent.Outcome != OutcomeEmptyAudio {
		t.Errorf("Expected empty audio outcome, got %s", silent.Outcome)
	}

	shutdown(t, e)
	expectEntries(t, log.snapshot(), "transcription:from a file")

	if _, err := e.TranscribeSamples(context.Background(), nil, 16000); !errors.Is(err, ErrDisposed) {
		t.Errorf("Expected ErrDisposed, got %v", err)
	}
}
