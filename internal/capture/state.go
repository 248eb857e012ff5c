package capture

import (
	"fmt"
	"strings"
)

// State is the engine lifecycle state
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode selects how captured audio is turned into transcripts
type Mode string

const (
	// ModeStreaming transcribes on a fixed interval while the microphone
	// stays open
	ModeStreaming Mode = "streaming"

	// ModePushToTalk transcribes once per Start/Stop pair
	ModePushToTalk Mode = "push-to-talk"
)

// ParseMode parses a mode name. "ptt" is accepted as push-to-talk.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "streaming", "stream":
		return ModeStreaming, nil
	case "push-to-talk", "ptt", "":
		return ModePushToTalk, nil
	default:
		return "", fmt.Errorf("unknown capture mode %q (use streaming or push-to-talk)", s)
	}
}
