package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Queue carries intents from the background automation to the foreground.
// Producers Post without blocking; the foreground drains and applies them on
// its own thread, so core code never touches UI objects.
type Queue struct {
	events   chan Event
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
	dropped  atomic.Int64
	logger   *zap.Logger
}

// NewQueue creates a queue with the given buffer size
func NewQueue(bufferSize int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		events:   make(chan Event, bufferSize),
		handlers: make(map[EventType][]EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for a specific event type
func (q *Queue) Subscribe(eventType EventType, handler EventHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[eventType] = append(q.handlers[eventType], handler)
}

// Post enqueues an event; it returns false and drops the event when the buffer is full
func (q *Queue) Post(event Event) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case q.events <- event:
		return true
	default:
		q.dropped.Add(1)
		q.logger.Warn("Intent queue full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("source", event.Source))
		return false
	}
}

// Drain applies every pending event to its handlers and returns how many were processed
func (q *Queue) Drain() int {
	processed := 0
	for {
		select {
		case event := <-q.events:
			q.dispatch(event)
			processed++
		default:
			return processed
		}
	}
}

// Run drains on a ticker until ctx is done, then drains once more.
// apply wraps each drain so the caller can hop onto its UI thread.
func (q *Queue) Run(ctx context.Context, interval time.Duration, apply func(func())) {
	if apply == nil {
		apply = func(f func()) { f() }
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if len(q.events) > 0 {
				apply(func() { q.Drain() })
			}
		case <-ctx.Done():
			apply(func() { q.Drain() })
			return
		}
	}
}

// Pending returns the number of queued events
func (q *Queue) Pending() int {
	return len(q.events)
}

// Dropped returns how many events were discarded because the buffer was full
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

func (q *Queue) dispatch(event Event) {
	q.mu.RLock()
	handlers := q.handlers[event.Type]
	q.mu.RUnlock()

	for _, handler := range handlers {
		q.safeHandlerCall(handler, event)
	}
}

// safeHandlerCall calls a handler with panic recovery
func (q *Queue) safeHandlerCall(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Intent handler panic",
				zap.String("type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	handler(event)
}
