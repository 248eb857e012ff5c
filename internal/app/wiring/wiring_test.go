package wiring

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/audio"
	"github.com/emmett/voxcode/internal/capture"
	"github.com/emmett/voxcode/internal/config"
	"github.com/emmett/voxcode/internal/earcon"
	"github.com/emmett/voxcode/internal/stt"
)

type nopMic struct{}

func (nopMic) Name() string { return "nop" }

func (nopMic) Open(ctx context.Context, sampleRate, channels int) (audio.Stream, error) {
	return nil, &audio.InitError{}
}

type recordingPlayer struct{ clips [][]byte }

func (p *recordingPlayer) Play(pcm []byte) { p.clips = append(p.clips, pcm) }

type echoTranscriber struct{}

func (echoTranscriber) Ready() error { return nil }

func (echoTranscriber) Transcribe(ctx context.Context, wav []byte, opts stt.Options) (string, error) {
	if len(wav) <= audio.WAVHeaderSize {
		return "", stt.ErrEmptyAudio
	}
	return "hello there", nil
}

func TestEngineConfigFollowsMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Capture.StreamingMaxChunks = 100
	cfg.Capture.PushToTalkMaxChunks = 400
	cfg.Transcription.Language = "ko"

	ec, err := EngineConfig(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("EngineConfig failed: %v", err)
	}
	if ec.Mode != capture.ModePushToTalk || ec.MaxChunks != 400 {
		t.Errorf("Unexpected push-to-talk config %+v", ec)
	}
	if ec.Transcription.Language != "ko" || ec.Transcription.Model != "whisper-1" {
		t.Errorf("Unexpected transcription options %+v", ec.Transcription)
	}

	cfg.Capture.Mode = "streaming"
	ec, err = EngineConfig(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("EngineConfig failed: %v", err)
	}
	if ec.Mode != capture.ModeStreaming || ec.MaxChunks != 100 {
		t.Errorf("Unexpected streaming config %+v", ec)
	}

	cfg.Capture.Mode = "walkie-talkie"
	if _, err := EngineConfig(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestCaptureConfigPeriod(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Capture.Device = "yeti"

	cc := CaptureConfig(cfg)
	if cc.DeviceName != "yeti" || cc.BufferFrames != 480 {
		t.Errorf("Unexpected capture config %+v", cc)
	}
}

func TestFilterConfigExtendsDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	base := len(FilterConfig(cfg, zerolog.Nop()).Phrases)

	cfg.Filter.Phrases = []string{"like and subscribe"}
	fc := FilterConfig(cfg, zerolog.Nop())
	if len(fc.Phrases) != base+1 || fc.Phrases[len(fc.Phrases)-1] != "like and subscribe" {
		t.Errorf("Expected configured phrase appended, got %d phrases", len(fc.Phrases))
	}
}

func TestEarconsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Earcons.Enabled = false
	if Earcons(cfg, zerolog.Nop()) != nil {
		t.Error("Expected no cache when earcons are disabled")
	}
}

func TestEarconsFallBackToTones(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Earcons.Dir = t.TempDir()

	cache := Earcons(cfg, zerolog.Nop())
	pcm, err := cache.Get(earcon.KeyRecordingStart)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(pcm) == 0 {
		t.Error("Expected synthesized clip")
	}
}

func TestEarconsPreloadEngineClips(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Earcons.Dir = t.TempDir()

	cache := Earcons(cfg, zerolog.Nop())
	for _, key := range []string{earcon.KeyRecordingStart, earcon.KeyRecordingStop, earcon.KeyError} {
		if !cache.Contains(key) {
			t.Errorf("Expected %q loaded before first use", key)
		}
	}
}

func TestNewEngineRejectsBadPattern(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Filter.Patterns = []string{"("}

	if _, err := NewEngine(cfg, Backends{Microphone: nopMic{}}, nil, zerolog.Nop()); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestNewEngineTranscribesSamples(t *testing.T) {
	cfg := config.DefaultConfig()
	player := &recordingPlayer{}

	e, err := NewEngine(cfg, Backends{Microphone: nopMic{}, Player: player, Transcriber: echoTranscriber{}}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Dispose()

	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16((i%32 - 16) * 800)
	}
	res, err := e.TranscribeSamples(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("TranscribeSamples failed: %v", err)
	}
	if res.Outcome != capture.OutcomeDispatched || res.Text != "hello there" {
		t.Errorf("Unexpected result %+v", res)
	}

	// a failed start plays the error earcon
	if err := e.Start(context.Background()); err == nil {
		t.Fatal("Expected start to fail")
	}
	if len(player.clips) == 0 {
		t.Error("Expected error earcon to be played")
	}
}
