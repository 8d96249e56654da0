package bot

import "errors"

var (
	// ErrInvalidCommand is returned for a control command the current state does not accept
	ErrInvalidCommand = errors.New("invalid command for current state")

	// ErrNoOverlay is returned by Save when no detection has produced an overlay yet
	ErrNoOverlay = errors.New("no overlay available")

	// ErrCanceled is returned when the user declines the start confirmation
	ErrCanceled = errors.New("canceled by user")

	// ErrCaptureCircuitOpen is reported when consecutive capture failures stop the loop
	ErrCaptureCircuitOpen = errors.New("too many consecutive capture failures")
)
