package gui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"jordanella.com/linewatch/internal/bot"
	"jordanella.com/linewatch/internal/events"
	"jordanella.com/linewatch/internal/logging"
)

const (
	statusError     = "error"
	intentInterval  = 50 * time.Millisecond
	logRefreshEvery = 500 * time.Millisecond
	msgNoOverlay    = "No overlay to save yet."
)

// Backend is the automation the panel drives
type Backend interface {
	Start(ctx context.Context, confirmer bot.Confirmer) error
	Restart() error
	Save() (string, error)
	Stop()
}

// Controller owns the window content. Every widget is touched only on the
// fyne thread: intents reach it through the queue, drained with fyne.Do.
type Controller struct {
	app     fyne.App
	window  fyne.Window
	backend Backend
	queue   *events.Queue
	logger  *zap.Logger

	// Widgets
	statusBar    *canvas.Rectangle
	titleText    *canvas.Text
	messageLabel *widget.Label
	overlayImage *canvas.Image
	restartBtn   *widget.Button
	saveBtn      *widget.Button
	stopBtn      *widget.Button
	logs         *LogPanel

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates the panel and subscribes it to the intent queue
func NewController(app fyne.App, window fyne.Window, backend Backend, queue *events.Queue, history *logging.History, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history == nil {
		history = logging.NewHistory(0, zapcore.InfoLevel)
	}
	c := &Controller{
		app:     app,
		window:  window,
		backend: backend,
		queue:   queue,
		logger:  logger,
		logs:    NewLogPanel(history),
	}
	c.setupEventHandlers()
	return c
}

// BuildUI constructs the status banner, overlay view, log and buttons
func (c *Controller) BuildUI() fyne.CanvasObject {
	c.statusBar = canvas.NewRectangle(ColorIdle)
	c.titleText = canvas.NewText(bot.MsgStopped, ColorBackground)
	c.titleText.TextStyle = fyne.TextStyle{Bold: true}
	c.titleText.TextSize = 20
	c.titleText.Alignment = fyne.TextAlignCenter

	c.messageLabel = widget.NewLabel("")
	c.messageLabel.Wrapping = fyne.TextWrapWord

	c.overlayImage = canvas.NewImageFromImage(nil)
	c.overlayImage.FillMode = canvas.ImageFillContain
	c.overlayImage.SetMinSize(fyne.NewSize(270, 480))

	c.restartBtn = widget.NewButton("Restart", c.onRestart)
	c.restartBtn.Importance = widget.HighImportance
	c.restartBtn.Disable()
	c.saveBtn = widget.NewButton("Save Overlay", c.onSave)
	c.saveBtn.Disable()
	c.stopBtn = widget.NewButton("Stop", c.onStop)
	c.stopBtn.Disable()

	banner := container.NewStack(c.statusBar, container.NewPadded(c.titleText))
	tabs := container.NewAppTabs(
		container.NewTabItem("Overlay", c.overlayImage),
		container.NewTabItem("Log", c.logs.Build()),
	)
	buttons := container.NewGridWithColumns(3, c.restartBtn, c.saveBtn, c.stopBtn)
	top := container.NewVBox(banner, c.messageLabel)

	return container.NewBorder(
		top,     // Top
		buttons, // Bottom
		nil,     // Left
		nil,     // Right
		tabs,    // Center
	)
}

// Start begins draining intents and runs the confirm-then-start sequence
func (c *Controller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(3)
	go func() {
		defer c.wg.Done()
		c.queue.Run(ctx, intentInterval, fyne.Do)
	}()
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(logRefreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fyne.Do(c.logs.Refresh)
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		err := c.backend.Start(ctx, &dialogConfirmer{ctx: ctx, window: c.window})
		if err == nil || errors.Is(err, bot.ErrCanceled) || errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("Failed to start automation", zap.Error(err))
		fyne.Do(func() { dialog.ShowError(err, c.window) })
	}()
}

// Shutdown stops the automation and the background goroutines
func (c *Controller) Shutdown() {
	c.backend.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Controller) setupEventHandlers() {
	c.queue.Subscribe(events.EventTypeStatusChanged, func(e events.Event) {
		c.setStatus(e.Status, e.Message)
	})
	c.queue.Subscribe(events.EventTypeOverlayReady, func(e events.Event) {
		if c.overlayImage == nil {
			return
		}
		c.overlayImage.Image = e.Overlay
		c.overlayImage.Refresh()
		c.saveBtn.Enable()
	})
	c.queue.Subscribe(events.EventTypeNotify, func(e events.Event) {
		if c.messageLabel == nil {
			return
		}
		c.messageLabel.SetText(e.Message)
		if strings.HasPrefix(e.Message, bot.MsgPaused) {
			dialog.ShowInformation(bot.TitlePaused, e.Message, c.window)
		}
	})
	c.queue.Subscribe(events.EventTypeError, func(e events.Event) {
		msg := e.Message
		if e.Err != nil {
			msg += "\n" + e.Err.Error()
		}
		c.setStatus(statusError, e.Message)
		if c.messageLabel != nil {
			c.messageLabel.SetText(msg)
		}
	})
}

func (c *Controller) setStatus(status, title string) {
	if c.titleText == nil {
		return
	}
	c.titleText.Text = title
	c.titleText.Refresh()
	c.statusBar.FillColor = statusColor(status)
	c.statusBar.Refresh()

	if status == events.StatusPaused {
		c.restartBtn.Enable()
	} else {
		c.restartBtn.Disable()
	}
	if status == events.StatusRunning {
		c.stopBtn.Enable()
	} else {
		c.stopBtn.Disable()
	}
}

func (c *Controller) onRestart() {
	if err := c.backend.Restart(); err != nil {
		c.logger.Debug("Restart rejected", zap.Error(err))
	}
}

func (c *Controller) onSave() {
	if _, err := c.backend.Save(); err != nil {
		if errors.Is(err, bot.ErrNoOverlay) {
			c.messageLabel.SetText(msgNoOverlay)
			return
		}
		c.logger.Warn("Failed to save overlay", zap.Error(err))
		dialog.ShowError(err, c.window)
	}
}

func (c *Controller) onStop() {
	c.backend.Stop()
}

// dialogConfirmer shows a confirm dialog and blocks the calling goroutine for the answer
type dialogConfirmer struct {
	ctx    context.Context
	window fyne.Window
}

func (d *dialogConfirmer) Confirm(title, message string) bool {
	answer := make(chan bool, 1)
	fyne.Do(func() {
		dialog.ShowConfirm(title, message, func(ok bool) { answer <- ok }, d.window)
	})
	select {
	case ok := <-answer:
		return ok
	case <-d.ctx.Done():
		return false
	}
}
