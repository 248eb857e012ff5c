package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emmett/voxcode/internal/metrics"
)

// CaptureConfig holds configuration for a capture backend
type CaptureConfig struct {
	// DeviceName selects a capture device by (partial, case-insensitive) name.
	// Empty string = use default device
	DeviceName string

	// BufferFrames is the number of frames per device period
	// Smaller = lower latency, higher CPU usage
	BufferFrames uint32

	// QueueSize is the number of chunks the stream buffers before dropping
	QueueSize int
}

// DefaultCaptureConfig returns a configuration tuned for 16kHz speech capture
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DeviceName:   "",
		BufferFrames: 480, // 30ms at 16kHz
		QueueSize:    64,
	}
}

// AudioChunk is one block of raw little-endian 16-bit PCM as delivered by the
// device, tagged with its arrival order within the stream.
type AudioChunk struct {
	Data      []byte
	Index     uint64
	Timestamp time.Time
}

// EventKind distinguishes stream events
type EventKind int

const (
	EventChunk EventKind = iota
	EventClosed
	EventError
)

// StreamEvent is emitted by a Stream. Chunk is set for EventChunk, Err for
// EventError. EventClosed and EventError are terminal.
type StreamEvent struct {
	Kind  EventKind
	Chunk AudioChunk
	Err   error
}

// Stream is an open capture device.
type Stream interface {
	// Events delivers chunks in arrival order. The channel is closed once the
	// stream has stopped, after any terminal event.
	Events() <-chan StreamEvent

	// Close releases the device. Safe to call more than once.
	Close() error
}

// Microphone opens capture streams.
type Microphone interface {
	Name() string
	Open(ctx context.Context, sampleRate, channels int) (Stream, error)
}

// InitError is returned when no microphone in a Chain could be opened.
type InitError struct {
	Causes []error
}

func (e *InitError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	if len(msgs) == 0 {
		return "no microphone available"
	}
	return "no microphone available: " + strings.Join(msgs, "; ")
}

func (e *InitError) Unwrap() []error {
	return e.Causes
}

// Chain tries each microphone in order and returns the first stream that
// opens.
type Chain []Microphone

// Name returns the provider names joined by "|"
func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, m := range c {
		names = append(names, m.Name())
	}
	return strings.Join(names, "|")
}

// Open opens the first available microphone. If all fail, the returned
// error is an *InitError carrying every cause.
func (c Chain) Open(ctx context.Context, sampleRate, channels int) (Stream, error) {
	initErr := &InitError{}
	for _, m := range c {
		if err := ctx.Err(); err != nil {
			initErr.Causes = append(initErr.Causes, err)
			break
		}
		stream, err := m.Open(ctx, sampleRate, channels)
		if err == nil {
			return stream, nil
		}
		metrics.RecordProviderFailure(m.Name())
		initErr.Causes = append(initErr.Causes, fmt.Errorf("%s: %w", m.Name(), err))
	}
	return nil, initErr
}

// IsInitError reports whether err came from a failed Chain.Open
func IsInitError(err error) bool {
	var initErr *InitError
	return errors.As(err, &initErr)
}
