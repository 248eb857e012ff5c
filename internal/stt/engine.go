package stt

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyAudio is returned when a WAV payload carries no sample data.
// It is a skip signal, not a failure.
var ErrEmptyAudio = errors.New("no audio to transcribe")

// Options holds per-request transcription parameters
type Options struct {
	// Language constrains recognition (ISO-639-1). Empty lets the service
	// detect the language.
	Language string

	// Temperature is the sampling temperature, 0 for greedy decoding
	Temperature float64

	// Model selects the service-side model
	Model string
}

// Transcriber is the interface for speech-to-text services
type Transcriber interface {
	// Transcribe submits a WAV payload and returns the recognized text. An
	// empty string with a nil error means the service heard nothing.
	Transcribe(ctx context.Context, wav []byte, opts Options) (string, error)

	// Ready reports whether the transcriber can accept requests. It fails
	// with a *PreconditionError when configuration is missing.
	Ready() error
}

// PreconditionError reports configuration that prevents any request from
// being attempted
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "transcription unavailable: " + e.Reason
}

// ServiceError reports a failed exchange with the transcription service.
// Status is 0 when no HTTP response was received.
type ServiceError struct {
	Status int
	Body   string
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transcription request failed: %v", e.Err)
	}
	return fmt.Sprintf("transcription service returned HTTP %d: %s", e.Status, e.Body)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err is a *PreconditionError
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
