package events

import (
	"image"
	"time"
)

// EventType identifies an intent posted by the automation for the foreground surface
type EventType string

const (
	EventTypeStatusChanged EventType = "status.changed" // Title / state banner update
	EventTypeOverlayReady  EventType = "overlay.ready"  // A detection overlay is available
	EventTypeNotify        EventType = "notify"         // Short user-visible message (toast)
	EventTypeError         EventType = "error"          // Something the user should see; loop may have stopped
)

// Status values carried by status events
const (
	StatusRunning = "running"
	StatusPaused  = "paused"
	StatusStopped = "stopped"
)

// Event is a single intent
type Event struct {
	Type      EventType
	Source    string // Component that emitted the event, e.g. "loop"
	Timestamp time.Time
	Message   string
	Status    string      // For status events
	Overlay   image.Image // For overlay events
	Path      string      // Where the overlay was saved, if it was
	Err       error
}

// EventHandler is a function that applies an intent
type EventHandler func(Event)

// NewStatusEvent creates a status banner update
func NewStatusEvent(source, status, message string) Event {
	return Event{
		Type:      EventTypeStatusChanged,
		Source:    source,
		Timestamp: time.Now(),
		Status:    status,
		Message:   message,
	}
}

// NewOverlayEvent announces a fresh overlay
func NewOverlayEvent(source string, overlay image.Image, path string) Event {
	return Event{
		Type:      EventTypeOverlayReady,
		Source:    source,
		Timestamp: time.Now(),
		Overlay:   overlay,
		Path:      path,
	}
}

// NewNotifyEvent creates a toast-style notification
func NewNotifyEvent(source, message string) Event {
	return Event{
		Type:      EventTypeNotify,
		Source:    source,
		Timestamp: time.Now(),
		Message:   message,
	}
}

// NewErrorEvent reports an error to the user
func NewErrorEvent(source, message string, err error) Event {
	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Message:   message,
		Err:       err,
	}
}
