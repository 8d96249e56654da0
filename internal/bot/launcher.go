package bot

import (
	"context"
	"fmt"

	"jordanella.com/linewatch/internal/events"
)

// Start confirmation texts
const (
	ConfirmTitle   = "Start automation?"
	ConfirmMessage = "Automation will begin in 5 seconds."
	MsgStartingIn  = "Starting in 5 seconds..."
	MsgStarted     = "Automation started."
	MsgCanceled    = "Canceled by user."
)

// Confirmer asks the user a yes/no question and blocks for the answer
type Confirmer interface {
	Confirm(title, message string) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(title, message string) bool

// Confirm calls f
func (f ConfirmFunc) Confirm(title, message string) bool {
	return f(title, message)
}

// StartAfterConfirm asks once for confirmation, waits the start delay, then starts the loop.
// Must not be called on a UI thread; it blocks for the confirmation and the delay.
func StartAfterConfirm(ctx context.Context, l *Loop, confirmer Confirmer) error {
	if !confirmer.Confirm(ConfirmTitle, ConfirmMessage) {
		l.logger.Info("Start declined")
		l.post(events.NewNotifyEvent(eventSource, MsgCanceled))
		return ErrCanceled
	}

	l.post(events.NewNotifyEvent(eventSource, MsgStartingIn))
	if err := l.deps.Sleeper.Sleep(ctx, l.config.StartDelay()); err != nil {
		return fmt.Errorf("start delay interrupted: %w", err)
	}

	if err := l.Start(); err != nil {
		return err
	}
	l.post(events.NewNotifyEvent(eventSource, MsgStarted))
	return nil
}
