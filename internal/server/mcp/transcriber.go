package mcp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/emmett/voxcode/internal/audio"
	"github.com/emmett/voxcode/internal/capture"
)

// decodeAudio turns a base64 payload into samples. WAV input carries its
// own rate; anything else is raw PCM at sampleRate.
func decodeAudio(payload string, sampleRate int) ([]int16, int, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid base64 audio: %w", err)
	}

	if bytes.HasPrefix(data, []byte("RIFF")) {
		samples, rate, err := audio.WAVSamples(data)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid WAV audio: %w", err)
		}
		return samples, rate, nil
	}

	if sampleRate <= 0 {
		return nil, 0, fmt.Errorf("audio is not a WAV file and no sample_rate was given")
	}
	if len(data)%2 != 0 {
		return nil, 0, fmt.Errorf("raw PCM must be 16-bit, got %d bytes", len(data))
	}
	return audio.BytesToSamples(data), sampleRate, nil
}

// History is a capture.Listener that remembers the most recent transcripts
// and the last error, for dictation_status
type History struct {
	mu        sync.Mutex
	size      int
	recent    []Transcript
	lastError string
}

// NewHistory keeps up to size transcripts
func NewHistory(size int) *History {
	if size <= 0 {
		size = 20
	}
	return &History{size: size}
}

func (h *History) OnTranscription(text string, timestamp time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent = append(h.recent, Transcript{Text: text, Timestamp: timestamp.Format(time.RFC3339)})
	if len(h.recent) > h.size {
		h.recent = append([]Transcript(nil), h.recent[len(h.recent)-h.size:]...)
	}
}

func (h *History) OnError(kind capture.ErrorKind, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastError = fmt.Sprintf("%s: %s", kind, message)
}

func (h *History) OnRecordingStart() {}
func (h *History) OnRecordingStop()  {}

// Snapshot returns the remembered transcripts and last error
func (h *History) Snapshot() ([]Transcript, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Transcript(nil), h.recent...), h.lastError
}
