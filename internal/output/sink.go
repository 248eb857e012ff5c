package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/capture"
)

// SinkConfig configures where engine events end up
type SinkConfig struct {
	// Formatter receives every transcript and event
	Formatter Formatter

	// File, if set, receives accepted transcripts one per line (appended)
	File string

	// Clipboard copies each accepted transcript to the system clipboard
	Clipboard bool

	// Notify raises a desktop notification for errors
	Notify bool

	// Session tags transcripts in formats that carry it
	Session string

	Logger zerolog.Logger
}

// Sink is a capture.Listener that writes transcripts to the configured
// outputs. It is safe for concurrent use.
type Sink struct {
	mu        sync.Mutex
	formatter Formatter
	file      io.WriteCloser
	clipboard bool
	notify    bool
	session   string
	index     int
	log       zerolog.Logger

	// replaced in tests
	copyText func(string) error
	notifyFn func(title, message string) error
}

// NewSink opens the transcript file, if any, and returns a Sink
func NewSink(config SinkConfig) (*Sink, error) {
	if config.Formatter == nil {
		config.Formatter = NewConsoleFormatter(DefaultConsoleOutput())
	}

	s := &Sink{
		formatter: config.Formatter,
		clipboard: config.Clipboard,
		notify:    config.Notify,
		session:   config.Session,
		log:       config.Logger,
		copyText:  clipboard.WriteAll,
		notifyFn: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}

	if config.File != "" {
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open transcript file: %w", err)
		}
		s.file = f
	}

	return s, nil
}

// OnTranscription writes an accepted transcript to every output
func (s *Sink) OnTranscription(text string, timestamp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index++
	t := Transcript{Index: s.index, Text: text, Timestamp: timestamp, Session: s.session}
	if err := s.formatter.WriteTranscript(t); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write transcript")
	}

	if s.file != nil {
		if _, err := fmt.Fprintln(s.file, text); err != nil {
			s.log.Warn().Err(err).Msg("Failed to append transcript to file")
		}
	}

	if s.clipboard {
		if err := s.copyText(text); err != nil {
			s.log.Warn().Err(err).Msg("Failed to copy transcript to clipboard")
		}
	}
}

// OnError writes the error and optionally raises a desktop notification
func (s *Sink) OnError(kind capture.ErrorKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.formatter.WriteEvent("error", fmt.Sprintf("%s: %s", kind, message))
	if s.notify {
		if err := s.notifyFn("voxcode", message); err != nil {
			s.log.Debug().Err(err).Msg("Desktop notification failed")
		}
	}
}

// OnRecordingStart writes a recording event
func (s *Sink) OnRecordingStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.formatter.WriteEvent("recording_start", "Recording...")
}

// OnRecordingStop writes a recording event
func (s *Sink) OnRecordingStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.formatter.WriteEvent("recording_stop", "Processing...")
}

// Count returns how many transcripts have been written
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Close closes the formatter and the transcript file
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.formatter.Close()
	if s.file != nil {
		if cerr := s.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}

var _ capture.Listener = (*Sink)(nil)
