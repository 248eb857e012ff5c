package mcp

// Tool names
const (
	ToolStartDictation  = "start_dictation"
	ToolStopDictation   = "stop_dictation"
	ToolDictationStatus = "dictation_status"
	ToolTranscribeWAV   = "transcribe_wav"
)

// StartArgs takes no arguments
type StartArgs struct{}

// StartResult reports the session that was started
type StartResult struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// StopArgs takes no arguments
type StopArgs struct{}

// TranscriptResult is the outcome of one pipeline run
type TranscriptResult struct {
	Outcome   string `json:"outcome" jsonschema:"dispatched, empty_audio, no_speech, hallucination, duplicate or failed"`
	Text      string `json:"text,omitempty" jsonschema:"the transcript, set only when outcome is dispatched"`
	Timestamp string `json:"timestamp"`
}

// StatusArgs takes no arguments
type StatusArgs struct{}

// StatusResult is a snapshot of the capture engine
type StatusResult struct {
	State          string       `json:"state"`
	Mode           string       `json:"mode"`
	SessionID      string       `json:"session_id,omitempty"`
	StartedAt      string       `json:"started_at,omitempty"`
	BufferedChunks int          `json:"buffered_chunks"`
	Recent         []Transcript `json:"recent,omitempty" jsonschema:"most recent dispatched transcripts, oldest first"`
	LastError      string       `json:"last_error,omitempty"`
}

// Transcript is one dispatched transcription
type Transcript struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// TranscribeWAVArgs carries audio to transcribe
type TranscribeWAVArgs struct {
	Audio      string `json:"audio" jsonschema:"base64-encoded 16-bit mono PCM WAV file, or raw little-endian PCM when sample_rate is set"`
	SampleRate int    `json:"sample_rate,omitempty" jsonschema:"sample rate of raw PCM input; ignored for WAV input"`
}
