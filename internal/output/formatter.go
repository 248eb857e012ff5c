package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Transcript is one accepted transcription as written by a Formatter
type Transcript struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session,omitempty"`
}

// Event is a non-transcript line: recording start/stop, state, errors
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Formatter writes transcripts and events in one output format
type Formatter interface {
	// WriteTranscript writes an accepted transcript
	WriteTranscript(t Transcript) error

	// WriteEvent writes a system event
	WriteEvent(eventType, message string) error

	// Close releases resources
	Close() error
}

// NewFormatter returns the formatter for format (console, json or text)
func NewFormatter(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "", "console":
		return NewConsoleFormatter(NewConsoleOutput(ConsoleConfig{Writer: w, ShowTimestamp: true})), nil
	case "json":
		return NewJSONFormatter(w), nil
	case "text":
		return NewPlainTextFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSONFormatter writes one JSON object per line
type JSONFormatter struct {
	encoder *json.Encoder
	now     func() time.Time
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	return &JSONFormatter{
		encoder: json.NewEncoder(writer),
		now:     time.Now,
	}
}

// WriteTranscript writes a transcript object
func (j *JSONFormatter) WriteTranscript(t Transcript) error {
	line := struct {
		Type string `json:"type"`
		Transcript
	}{Type: "transcript", Transcript: t}
	return j.encoder.Encode(line)
}

// WriteEvent writes an event object
func (j *JSONFormatter) WriteEvent(eventType, message string) error {
	return j.encoder.Encode(Event{
		Type:      eventType,
		Message:   message,
		Timestamp: j.now(),
	})
}

// Close is a no-op; the encoder writes immediately
func (j *JSONFormatter) Close() error {
	return nil
}

// PlainTextFormatter writes transcripts only, one per line, for piping
type PlainTextFormatter struct {
	writer io.Writer
}

// NewPlainTextFormatter creates a new plain text formatter
func NewPlainTextFormatter(writer io.Writer) *PlainTextFormatter {
	return &PlainTextFormatter{writer: writer}
}

// WriteTranscript writes the bare transcript text
func (p *PlainTextFormatter) WriteTranscript(t Transcript) error {
	_, err := fmt.Fprintln(p.writer, t.Text)
	return err
}

// WriteEvent drops events
func (p *PlainTextFormatter) WriteEvent(eventType, message string) error {
	return nil
}

// Close is a no-op
func (p *PlainTextFormatter) Close() error {
	return nil
}

// ConsoleFormatter writes timestamped, human-oriented lines
type ConsoleFormatter struct {
	console *ConsoleOutput
}

// NewConsoleFormatter wraps a ConsoleOutput
func NewConsoleFormatter(console *ConsoleOutput) *ConsoleFormatter {
	return &ConsoleFormatter{console: console}
}

// WriteTranscript writes the transcript with its timestamp
func (c *ConsoleFormatter) WriteTranscript(t Transcript) error {
	return c.console.WriteAt(t.Timestamp, t.Text)
}

// WriteEvent writes errors to stderr and everything else as an info line
func (c *ConsoleFormatter) WriteEvent(eventType, message string) error {
	if eventType == "error" {
		c.console.Error(message)
		return nil
	}
	if message == "" {
		message = eventType
	}
	c.console.Info(message)
	return nil
}

// Close is a no-op
func (c *ConsoleFormatter) Close() error {
	return nil
}
