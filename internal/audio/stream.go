package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrDeviceStopped is reported when a device stops without Close being called
var ErrDeviceStopped = errors.New("capture device stopped unexpectedly")

// DeviceStream adapts a callback-driven device to the Stream interface. The
// backend calls Deliver from its audio thread and Fail when the device dies;
// the release function set with OnRelease tears the device down exactly once.
type DeviceStream struct {
	mu      sync.Mutex
	events  chan StreamEvent
	next    uint64
	closed  bool
	release func() error
	once    sync.Once
	err     error
	log     zerolog.Logger
}

// NewDeviceStream creates a stream buffering up to queueSize chunks
func NewDeviceStream(queueSize int, log zerolog.Logger) *DeviceStream {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &DeviceStream{
		events: make(chan StreamEvent, queueSize),
		log:    log,
	}
}

// OnRelease sets the function that stops the device. It must be set before
// the stream is handed out.
func (s *DeviceStream) OnRelease(release func() error) {
	s.release = release
}

// Deliver copies data and queues it. Never blocks the audio thread: a full
// queue drops the chunk.
func (s *DeviceStream) Deliver(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	chunk := AudioChunk{Data: buf, Index: s.next, Timestamp: time.Now()}
	s.next++

	select {
	case s.events <- StreamEvent{Kind: EventChunk, Chunk: chunk}:
	default:
		s.log.Warn().Uint64("chunk", chunk.Index).Msg("capture queue full, dropping chunk")
	}
}

// Fail emits a terminal error and closes the event channel. The device itself
// is released by Close.
func (s *DeviceStream) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	// the terminal event must not be lost to a full queue
	select {
	case s.events <- StreamEvent{Kind: EventError, Err: err}:
	default:
		select {
		case <-s.events:
		default:
		}
		s.events <- StreamEvent{Kind: EventError, Err: err}
	}
	close(s.events)
}

func (s *DeviceStream) Events() <-chan StreamEvent {
	return s.events
}

func (s *DeviceStream) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		wasClosed := s.closed
		s.closed = true
		s.mu.Unlock()

		if s.release != nil {
			s.err = s.release()
		}

		if !wasClosed {
			s.mu.Lock()
			select {
			case s.events <- StreamEvent{Kind: EventClosed}:
			default:
			}
			close(s.events)
			s.mu.Unlock()
		}
	})
	return s.err
}

// Closing reports whether Close has started, so a device stop callback can
// tell an intentional stop from a failure.
func (s *DeviceStream) Closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
