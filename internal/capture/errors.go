package capture

import "errors"

var (
	// ErrDisposed is returned by every operation after Dispose
	ErrDisposed = errors.New("capture engine disposed")

	// ErrNotRecording is returned by Stop when no session is active
	ErrNotRecording = errors.New("not recording")

	// ErrBusy is returned by Stop while the previous Stop is still
	// processing its audio
	ErrBusy = errors.New("previous recording still processing")

	// ErrSessionAborted is returned by Stop when Start or Dispose discarded
	// the session before its audio was processed
	ErrSessionAborted = errors.New("recording session aborted")

	// ErrEventsPending is returned by Dispose when queued listener events
	// were not delivered in time
	ErrEventsPending = errors.New("listener events still pending")

	// errStreamEnded is reported when a device closes without being asked to
	errStreamEnded = errors.New("microphone stream ended unexpectedly")
)
