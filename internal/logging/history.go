package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one retained log line
type Entry struct {
	Timestamp time.Time
	Level     zapcore.Level
	Component string
	Message   string
	Fields    map[string]any
}

// History keeps the most recent log entries in memory for display
type History struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	level   zapcore.LevelEnabler
}

// NewHistory retains up to max entries at or above level
func NewHistory(max int, level zapcore.LevelEnabler) *History {
	if max <= 0 {
		max = 1000
	}
	return &History{max: max, level: level}
}

// Core returns a zap core that writes into the history
func (h *History) Core() zapcore.Core {
	return &historyCore{history: h}
}

// Entries returns a copy of the retained entries, oldest first
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of retained entries
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear drops every entry
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

func (h *History) add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

type historyCore struct {
	history *History
	fields  []zapcore.Field
}

func (c *historyCore) Enabled(l zapcore.Level) bool {
	return c.history.level == nil || c.history.level.Enabled(l)
}

func (c *historyCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &historyCore{history: c.history, fields: merged}
}

func (c *historyCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *historyCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	c.history.add(Entry{
		Timestamp: e.Time,
		Level:     e.Level,
		Component: e.LoggerName,
		Message:   e.Message,
		Fields:    enc.Fields,
	})
	return nil
}

func (c *historyCore) Sync() error {
	return nil
}
