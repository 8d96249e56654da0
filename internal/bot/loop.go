package bot

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"jordanella.com/linewatch/internal/clock"
	"jordanella.com/linewatch/internal/cv"
	"jordanella.com/linewatch/internal/events"
	"jordanella.com/linewatch/internal/monitor"
	"jordanella.com/linewatch/internal/overlay"
)

const eventSource = "loop"

// User-visible messages posted by the loop
const (
	TitlePaused        = "Paused: 3 Green Lines Found"
	MsgRunning         = "Running"
	MsgStopped         = "Stopped"
	MsgPaused          = "Paused: 3 green lines detected."
	MsgPausedSaved     = "Paused: 3 green lines detected.\nOverlay saved."
	MsgPausedNotSaved  = "Paused: 3 green lines detected.\nOverlay could not be saved."
	MsgAlreadyRunning  = "Already running..."
	MsgNotPaused       = "Nothing to restart."
	MsgRestarting      = "Restarting automation..."
	MsgCaptureGaveUp   = "Stopped: screen capture keeps failing."
	MsgOverlaySavedFmt = "Overlay saved to %s"
)

// Run outcomes
const (
	OutcomeDetected       = "detected"
	OutcomeStopped        = "stopped"
	OutcomeCaptureFailure = "capture_failure"
)

// Gestures drives device input for one iteration
type Gestures interface {
	RandomTap(ctx context.Context, region cv.Region) error
	VerticalSwipe(ctx context.Context, distance, durationMs int) error
	NavigateBack(ctx context.Context) error
}

// Capture returns a frame after bounded retries
type Capture interface {
	CaptureWithRetry(ctx context.Context, maxAttempts int, backoff time.Duration) (*image.RGBA, bool)
}

// Detector finds the line trio in a frame
type Detector interface {
	Detect(frame *image.RGBA) cv.Detection
	MinSeparationPx() int
}

// OverlayStore persists overlays; save failures are not retried
type OverlayStore interface {
	Save(img image.Image) (string, error)
}

// DetectionRecord describes one detection event
type DetectionRecord struct {
	RunID           string
	Iteration       int
	Lines           [3]cv.LineCenter
	MinSeparationPx int
	Width           int
	Height          int
	OverlayPath     string // Empty when the overlay was not saved
	Overlay         *image.RGBA
	DetectedAt      time.Time
}

// RunInfo describes a started execution
type RunInfo struct {
	RunID     string
	StartedAt time.Time
	Restart   bool
}

// RunSummary describes a finished execution
type RunSummary struct {
	RunID           string
	StartedAt       time.Time
	EndedAt         time.Time
	Iterations      int
	Outcome         string
	GestureFailures int
	CaptureFailures int
}

// DetectionObserver is told about each detection before the loop pauses.
// Implementations must not block.
type DetectionObserver interface {
	OnDetection(record DetectionRecord)
}

// RunObserver is told when executions start and finish
type RunObserver interface {
	OnRunStarted(info RunInfo)
	OnRunFinished(summary RunSummary)
}

// Deps are the collaborators of a Loop
type Deps struct {
	Gestures  Gestures
	Capture   Capture
	Detector  Detector
	Store     OverlayStore           // Optional
	Queue     *events.Queue          // Optional
	Health    *monitor.CaptureHealth // Optional
	Sleeper   clock.Sleeper          // Defaults to clock.Real
	Logger    *zap.Logger
	Observers []any // DetectionObserver and/or RunObserver
}

// Loop runs the tap/swipe/capture/detect cycle on a background goroutine
type Loop struct {
	config *Config
	layout Layout
	style  overlay.Style
	deps   Deps
	logger *zap.Logger
	state  *StateMachine

	active        atomic.Int32
	overlay       atomic.Pointer[image.RGBA]
	lastDetection atomic.Pointer[DetectionRecord]

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoop creates a stopped loop
func NewLoop(config *Config, layout Layout, deps Deps) (*Loop, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Gestures == nil || deps.Capture == nil || deps.Detector == nil {
		return nil, fmt.Errorf("loop requires gestures, capture and detector")
	}
	if deps.Sleeper == nil {
		deps.Sleeper = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Health == nil {
		deps.Health = monitor.NewCaptureHealth(config.MaxConsecutiveCaptureFailures)
	}

	return &Loop{
		config: config,
		layout: layout,
		style:  config.OverlayStyle(),
		deps:   deps,
		logger: deps.Logger,
		state:  NewStateMachine(),
	}, nil
}

// State returns the current automation state
func (l *Loop) State() AutomationState {
	return l.state.State()
}

// ActiveExecutions returns the number of live executions; never more than 1
func (l *Loop) ActiveExecutions() int {
	return int(l.active.Load())
}

// Overlay returns the latest overlay, or nil before the first detection
func (l *Loop) Overlay() *image.RGBA {
	return l.overlay.Load()
}

// LastDetection returns the latest detection, or nil
func (l *Loop) LastDetection() *DetectionRecord {
	return l.lastDetection.Load()
}

// Start transitions Stopped -> Running and spawns an execution
func (l *Loop) Start() error {
	if l.active.Load() != 0 {
		return fmt.Errorf("%w: previous execution is still stopping", ErrInvalidCommand)
	}
	if !l.state.Start() {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidCommand, l.state.State())
	}
	l.logger.Info("Automation started")
	l.post(events.NewStatusEvent(eventSource, events.StatusRunning, MsgRunning))
	l.spawn(false)
	return nil
}

// Restart transitions Paused -> Running and spawns a fresh execution.
// While Running it is rejected with a notification and nothing changes.
func (l *Loop) Restart() error {
	if l.state.Restart() {
		l.logger.Info("Automation restarted")
		l.post(events.NewNotifyEvent(eventSource, MsgRestarting))
		l.post(events.NewStatusEvent(eventSource, events.StatusRunning, MsgRunning))
		l.spawn(true)
		return nil
	}

	current := l.state.State()
	l.logger.Debug("Restart rejected", zap.Stringer("state", current))
	if current == StateRunning {
		l.post(events.NewNotifyEvent(eventSource, MsgAlreadyRunning))
	} else {
		l.post(events.NewNotifyEvent(eventSource, MsgNotPaused))
	}
	return fmt.Errorf("%w: restart while %s", ErrInvalidCommand, current)
}

// Stop moves to Stopped. A running execution exits at its next step boundary;
// pending sleeps end early.
func (l *Loop) Stop() {
	prev := l.state.Stop()

	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if prev != StateStopped {
		l.logger.Info("Automation stopped", zap.Stringer("previous", prev))
		l.post(events.NewStatusEvent(eventSource, events.StatusStopped, MsgStopped))
	}
}

// Wait blocks until every spawned execution has returned
func (l *Loop) Wait() {
	l.wg.Wait()
}

// SaveOverlay writes the current overlay to path
func (l *Loop) SaveOverlay(path string) error {
	img := l.overlay.Load()
	if img == nil {
		return ErrNoOverlay
	}
	if err := overlay.SavePNG(img, path); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	l.logger.Info("Overlay saved", zap.String("path", path))
	l.post(events.NewNotifyEvent(eventSource, fmt.Sprintf(MsgOverlaySavedFmt, path)))
	return nil
}

func (l *Loop) spawn(restart bool) {
	ctx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	l.active.Add(1)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()
		l.execute(ctx, RunInfo{
			RunID:     uuid.NewString(),
			StartedAt: time.Now(),
			Restart:   restart,
		})
	}()
}

// execution tracks one run of the loop
type execution struct {
	info            RunInfo
	iterations      int
	gestureFailures int
	captureFailures int
	released        bool
}

type passResult int

const (
	passContinue passResult = iota
	passDetected
	passStopped
	passCaptureTripped
)

func (l *Loop) execute(ctx context.Context, info RunInfo) {
	exec := &execution{info: info}
	logger := l.logger.With(zap.String("run_id", info.RunID))
	logger.Info("Execution started", zap.Bool("restart", info.Restart))

	for _, obs := range l.deps.Observers {
		if ro, ok := obs.(RunObserver); ok {
			ro.OnRunStarted(info)
		}
	}

	outcome := OutcomeStopped
	defer func() {
		l.release(exec)
		summary := RunSummary{
			RunID:           info.RunID,
			StartedAt:       info.StartedAt,
			EndedAt:         time.Now(),
			Iterations:      exec.iterations,
			Outcome:         outcome,
			GestureFailures: exec.gestureFailures,
			CaptureFailures: exec.captureFailures,
		}
		for _, obs := range l.deps.Observers {
			if ro, ok := obs.(RunObserver); ok {
				ro.OnRunFinished(summary)
			}
		}
		logger.Info("Execution finished",
			zap.String("outcome", outcome),
			zap.Int("iterations", exec.iterations))
	}()

	for l.state.IsRunning() {
		exec.iterations++
		switch l.pass(ctx, exec, logger) {
		case passDetected:
			outcome = OutcomeDetected
			return
		case passCaptureTripped:
			outcome = OutcomeCaptureFailure
			return
		case passStopped:
			return
		}
	}
}

// release drops this execution from the active count once
func (l *Loop) release(exec *execution) {
	if !exec.released {
		exec.released = true
		l.active.Add(-1)
	}
}

// pass runs one iteration: three taps, swipe, settle, capture, analyze
func (l *Loop) pass(ctx context.Context, exec *execution, logger *zap.Logger) passResult {
	for _, region := range l.layout.Regions() {
		if err := l.deps.Gestures.RandomTap(ctx, region); err != nil {
			if ctx.Err() != nil {
				return passStopped
			}
			l.gestureFailed(exec, logger, err)
		}
	}

	if !l.swipeAndSettle(ctx, exec, logger) {
		return passStopped
	}

	frame, ok := l.deps.Capture.CaptureWithRetry(ctx, l.config.CaptureMaxAttempts, l.config.CaptureBackoff())
	if !ok {
		if ctx.Err() != nil {
			return passStopped
		}
		exec.captureFailures++
		if l.deps.Health.RecordFailure() {
			l.captureTripped(logger)
			return passCaptureTripped
		}
		return passContinue
	}
	l.deps.Health.RecordSuccess()

	detection := l.deps.Detector.Detect(frame)
	if detection.Found {
		l.detected(exec, frame, detection, logger)
		return passDetected
	}

	logger.Debug("No trio", zap.Int("centers", len(detection.Centers)))
	return l.recover(ctx, exec, logger)
}

// recover navigates back and swipes again after a negative scan
func (l *Loop) recover(ctx context.Context, exec *execution, logger *zap.Logger) passResult {
	if err := l.deps.Gestures.NavigateBack(ctx); err != nil {
		if ctx.Err() != nil {
			return passStopped
		}
		l.gestureFailed(exec, logger, err)
	}
	if err := l.deps.Sleeper.Sleep(ctx, l.config.SettleDelay()); err != nil {
		return passStopped
	}
	if !l.swipeAndSettle(ctx, exec, logger) {
		return passStopped
	}
	return passContinue
}

func (l *Loop) swipeAndSettle(ctx context.Context, exec *execution, logger *zap.Logger) bool {
	distance := l.config.SwipeDistance(l.layout.Height)
	if err := l.deps.Gestures.VerticalSwipe(ctx, distance, l.config.SwipeDurationMs); err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.gestureFailed(exec, logger, err)
	}
	return l.deps.Sleeper.Sleep(ctx, l.config.SettleDelay()) == nil
}

func (l *Loop) gestureFailed(exec *execution, logger *zap.Logger, err error) {
	exec.gestureFailures++
	logger.Warn("Gesture failed", zap.Error(err), zap.Int("iteration", exec.iterations))
}

func (l *Loop) captureTripped(logger *zap.Logger) {
	stats := l.deps.Health.Stats()
	logger.Error("Capture circuit open",
		zap.Int("consecutive_failures", stats.Consecutive),
		zap.Int("threshold", l.deps.Health.Threshold()))

	if l.state.Halt() {
		l.post(events.NewErrorEvent(eventSource, MsgCaptureGaveUp,
			fmt.Errorf("%w: %d in a row", ErrCaptureCircuitOpen, stats.Consecutive)))
		l.post(events.NewStatusEvent(eventSource, events.StatusStopped, MsgCaptureGaveUp))
	}
	l.deps.Health.Reset()
}

// detected composes and publishes the overlay, then pauses
func (l *Loop) detected(exec *execution, frame *image.RGBA, detection cv.Detection, logger *zap.Logger) {
	img := overlay.Compose(frame, detection.Lines[:], l.style)
	l.overlay.Store(img)

	path := ""
	msg := MsgPaused
	if l.deps.Store != nil && l.config.AutoSaveOverlay {
		p, err := l.deps.Store.Save(img)
		if err != nil {
			logger.Warn("Failed to save overlay", zap.Error(err))
			msg = MsgPausedNotSaved
		} else {
			path = p
			msg = MsgPausedSaved
		}
	}

	bounds := frame.Bounds()
	record := DetectionRecord{
		RunID:           exec.info.RunID,
		Iteration:       exec.iterations,
		Lines:           detection.Lines,
		MinSeparationPx: l.deps.Detector.MinSeparationPx(),
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		OverlayPath:     path,
		Overlay:         img,
		DetectedAt:      time.Now(),
	}
	l.lastDetection.Store(&record)

	logger.Info("Green lines detected",
		zap.Int("iteration", exec.iterations),
		zap.Int("x1", detection.Lines[0].X),
		zap.Int("x2", detection.Lines[1].X),
		zap.Int("x3", detection.Lines[2].X),
		zap.String("overlay", path))

	for _, obs := range l.deps.Observers {
		if do, ok := obs.(DetectionObserver); ok {
			do.OnDetection(record)
		}
	}

	// The next execution may be spawned as soon as the state reads Paused
	l.release(exec)
	if !l.state.Pause() {
		logger.Info("Stopped before pause", zap.Stringer("state", l.state.State()))
		return
	}

	l.post(events.NewStatusEvent(eventSource, events.StatusPaused, TitlePaused))
	l.post(events.NewOverlayEvent(eventSource, img, path))
	l.post(events.NewNotifyEvent(eventSource, msg))
}

func (l *Loop) post(e events.Event) {
	if l.deps.Queue != nil {
		l.deps.Queue.Post(e)
	}
}
