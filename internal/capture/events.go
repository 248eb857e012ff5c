package capture

import "time"

// ErrorKind classifies errors reported to a Listener
type ErrorKind string

const (
	ErrorKindPrecondition ErrorKind = "precondition"
	ErrorKindDevice       ErrorKind = "device"
	ErrorKindStream       ErrorKind = "stream"
	ErrorKindService      ErrorKind = "service"
)

// Listener receives engine events. Callbacks run on a dedicated goroutine in
// the order the events happened; the engine never waits for them.
type Listener interface {
	OnTranscription(text string, timestamp time.Time)
	OnError(kind ErrorKind, message string)
	OnRecordingStart()
	OnRecordingStop()
}

// StateListener is implemented by listeners that also want state changes
type StateListener interface {
	OnStateChange(state State)
}

// Listeners fans events out to several listeners in order
type Listeners []Listener

func (ls Listeners) OnTranscription(text string, timestamp time.Time) {
	for _, l := range ls {
		l.OnTranscription(text, timestamp)
	}
}

func (ls Listeners) OnError(kind ErrorKind, message string) {
	for _, l := range ls {
		l.OnError(kind, message)
	}
}

func (ls Listeners) OnRecordingStart() {
	for _, l := range ls {
		l.OnRecordingStart()
	}
}

func (ls Listeners) OnRecordingStop() {
	for _, l := range ls {
		l.OnRecordingStop()
	}
}

func (ls Listeners) OnStateChange(state State) {
	for _, l := range ls {
		if sl, ok := l.(StateListener); ok {
			sl.OnStateChange(state)
		}
	}
}

// NopListener ignores every event
type NopListener struct{}

func (NopListener) OnTranscription(string, time.Time) {}
func (NopListener) OnError(ErrorKind, string)         {}
func (NopListener) OnRecordingStart()                 {}
func (NopListener) OnRecordingStop()                  {}

// Outcome records what happened to one batch of audio
type Outcome string

const (
	OutcomeDispatched    Outcome = "dispatched"
	OutcomeEmptyAudio    Outcome = "empty_audio"
	OutcomeNoSpeech      Outcome = "no_speech"
	OutcomeHallucination Outcome = "hallucination"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeFailed        Outcome = "failed"
)

// Result is the outcome of processing one batch of audio. Text is set only
// when Outcome is OutcomeDispatched.
type Result struct {
	Text      string
	Timestamp time.Time
	Outcome   Outcome
}

// Status is a snapshot of the engine
type Status struct {
	State          State
	Mode           Mode
	SessionID      string
	StartedAt      time.Time
	BufferedChunks int
}
