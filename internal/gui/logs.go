package gui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap/zapcore"
	"jordanella.com/linewatch/internal/logging"
)

const filterAll = "All"

// LogPanel lists the retained log history
type LogPanel struct {
	history *logging.History

	// Snapshot shown by the list; only touched on the UI thread
	entries []logging.Entry

	// Widgets
	logList         *widget.List
	filterSelect    *widget.Select
	autoScrollCheck *widget.Check
	clearBtn        *widget.Button
}

// NewLogPanel creates a panel over history
func NewLogPanel(history *logging.History) *LogPanel {
	return &LogPanel{history: history}
}

// Build constructs the log viewer UI
func (l *LogPanel) Build() fyne.CanvasObject {
	l.filterSelect = widget.NewSelect(
		[]string{filterAll, "DEBUG", "INFO", "WARN", "ERROR"},
		func(string) { l.reload() },
	)
	l.filterSelect.SetSelected(filterAll)

	l.autoScrollCheck = widget.NewCheck("Auto-scroll", nil)
	l.autoScrollCheck.SetChecked(true)

	l.clearBtn = widget.NewButton("Clear", func() {
		l.history.Clear()
		l.reload()
	})

	l.logList = widget.NewList(
		func() int {
			return len(l.entries)
		},
		func() fyne.CanvasObject {
			return container.NewHBox(
				widget.NewLabel("00:00:00"),
				widget.NewLabel("[LEVEL]"),
				widget.NewLabel("message"),
			)
		},
		func(id widget.ListItemID, item fyne.CanvasObject) {
			if id < 0 || id >= len(l.entries) {
				return
			}
			entry := l.entries[id]
			box := item.(*fyne.Container)

			box.Objects[0].(*widget.Label).SetText(entry.Timestamp.Format("15:04:05"))

			levelLabel := box.Objects[1].(*widget.Label)
			levelLabel.SetText(fmt.Sprintf("[%s]", entry.Level.CapitalString()))
			levelLabel.Importance = levelImportance(entry.Level)
			levelLabel.Refresh()

			msg := entry.Message
			if entry.Component != "" {
				msg = entry.Component + ": " + msg
			}
			box.Objects[2].(*widget.Label).SetText(msg)
		},
	)

	controls := container.NewHBox(
		widget.NewLabel("Filter:"),
		l.filterSelect,
		l.autoScrollCheck,
		l.clearBtn,
	)
	l.reload()
	return container.NewBorder(controls, nil, nil, nil, l.logList)
}

// Refresh picks up new history entries. Call on the UI thread.
func (l *LogPanel) Refresh() {
	if l.logList == nil {
		return
	}
	l.reload()
}

// Entries returns the rows currently shown
func (l *LogPanel) Entries() []logging.Entry {
	return l.entries
}

func (l *LogPanel) reload() {
	all := l.history.Entries()

	selected := filterAll
	if l.filterSelect != nil && l.filterSelect.Selected != "" {
		selected = l.filterSelect.Selected
	}
	if selected == filterAll {
		l.entries = all
	} else {
		filtered := make([]logging.Entry, 0, len(all))
		for _, e := range all {
			if strings.EqualFold(e.Level.String(), selected) {
				filtered = append(filtered, e)
			}
		}
		l.entries = filtered
	}

	if l.logList != nil {
		l.logList.Refresh()
		if l.autoScrollCheck != nil && l.autoScrollCheck.Checked {
			l.logList.ScrollToBottom()
		}
	}
}

func levelImportance(level zapcore.Level) widget.Importance {
	switch {
	case level >= zapcore.ErrorLevel:
		return widget.DangerImportance
	case level == zapcore.WarnLevel:
		return widget.WarningImportance
	case level == zapcore.DebugLevel:
		return widget.LowImportance
	default:
		return widget.MediumImportance
	}
}
