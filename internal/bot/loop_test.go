package bot

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"jordanella.com/linewatch/internal/clock"
	"jordanella.com/linewatch/internal/cv"
	"jordanella.com/linewatch/internal/events"
	"jordanella.com/linewatch/internal/overlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	frameWidth  = 1080
	frameHeight = 600
)

// bandsFrame draws full-height green bands 25px wide starting at each x
func bandsFrame(xs ...int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	for y := 0; y < frameHeight; y++ {
		for x := 0; x < frameWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
		for _, bx := range xs {
			for x := bx; x < bx+25; x++ {
				img.SetRGBA(x, y, color.RGBA{G: 200, A: 255})
			}
		}
	}
	return img
}

func positiveFrame() *image.RGBA { return bandsFrame(200, 500, 800) }
func blankFrame() *image.RGBA    { return bandsFrame() }

type fakeGestures struct {
	mu     sync.Mutex
	taps   int
	swipes int
	backs  int
	tapErr error

	gate    chan struct{}
	entered chan struct{}
	onTap   func()
}

func newFakeGestures() *fakeGestures {
	return &fakeGestures{entered: make(chan struct{}, 1)}
}

// hold makes every tap wait until release is called
func (f *fakeGestures) hold() {
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeGestures) release() {
	f.mu.Lock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
	f.mu.Unlock()
}

func (f *fakeGestures) RandomTap(ctx context.Context, region cv.Region) error {
	f.mu.Lock()
	f.taps++
	gate := f.gate
	onTap := f.onTap
	err := f.tapErr
	f.mu.Unlock()

	if onTap != nil {
		onTap()
	}
	select {
	case f.entered <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeGestures) VerticalSwipe(ctx context.Context, distance, durationMs int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swipes++
	return nil
}

func (f *fakeGestures) NavigateBack(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backs++
	return nil
}

func (f *fakeGestures) counts() (taps, swipes, backs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taps, f.swipes, f.backs
}

// scriptedCapture returns frames in order; nil means a failed capture.
// The last entry repeats once the script runs out.
type scriptedCapture struct {
	mu     sync.Mutex
	frames []*image.RGBA
	calls  int
}

func (s *scriptedCapture) CaptureWithRetry(ctx context.Context, maxAttempts int, backoff time.Duration) (*image.RGBA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := min(s.calls, len(s.frames)-1)
	s.calls++
	frame := s.frames[idx]
	return frame, frame != nil
}

func (s *scriptedCapture) push(frames ...*image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

func (s *scriptedCapture) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingDetector struct {
	*cv.LineDetector
	calls atomic.Int32
}

func (d *countingDetector) Detect(frame *image.RGBA) cv.Detection {
	d.calls.Add(1)
	return d.LineDetector.Detect(frame)
}

type memStore struct {
	mu    sync.Mutex
	saved []image.Image
	err   error
}

func (m *memStore) Save(img image.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.saved = append(m.saved, img)
	return "/sdcard/green_detected_1.png", nil
}

type recordingObserver struct {
	mu         sync.Mutex
	detections []DetectionRecord
	started    []RunInfo
	finished   []RunSummary
}

func (r *recordingObserver) OnDetection(record DetectionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detections = append(r.detections, record)
}

func (r *recordingObserver) OnRunStarted(info RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, info)
}

func (r *recordingObserver) OnRunFinished(summary RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, summary)
}

func (r *recordingObserver) snapshot() ([]DetectionRecord, []RunInfo, []RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DetectionRecord(nil), r.detections...),
		append([]RunInfo(nil), r.started...),
		append([]RunSummary(nil), r.finished...)
}

type intentRecorder struct {
	got []events.Event
}

func recordIntents(q *events.Queue) *intentRecorder {
	rec := &intentRecorder{}
	for _, typ := range []events.EventType{
		events.EventTypeStatusChanged,
		events.EventTypeOverlayReady,
		events.EventTypeNotify,
		events.EventTypeError,
	} {
		q.Subscribe(typ, func(e events.Event) { rec.got = append(rec.got, e) })
	}
	return rec
}

func (r *intentRecorder) messages(typ events.EventType) []string {
	var out []string
	for _, e := range r.got {
		if e.Type == typ {
			out = append(out, e.Message)
		}
	}
	return out
}

func (r *intentRecorder) count(typ events.EventType) int {
	n := 0
	for _, e := range r.got {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type harness struct {
	loop     *Loop
	gestures *fakeGestures
	capture  *scriptedCapture
	detector *countingDetector
	store    *memStore
	observer *recordingObserver
	queue    *events.Queue
	intents  *intentRecorder
	sleeper  *clock.Recorder
}

func newHarness(t *testing.T, cfg *Config, frames ...*image.RGBA) *harness {
	t.Helper()
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	layout, err := cfg.Resolve(frameWidth, frameHeight)
	require.NoError(t, err)

	h := &harness{
		gestures: newFakeGestures(),
		capture:  &scriptedCapture{frames: frames},
		detector: &countingDetector{LineDetector: cv.NewLineDetector(cfg.LineConfig(cv.DefaultDPI))},
		store:    &memStore{},
		observer: &recordingObserver{},
		queue:    events.NewQueue(256, zaptest.NewLogger(t)),
		sleeper:  &clock.Recorder{},
	}
	h.intents = recordIntents(h.queue)

	h.loop, err = NewLoop(cfg, layout, Deps{
		Gestures:  h.gestures,
		Capture:   h.capture,
		Detector:  h.detector,
		Store:     h.store,
		Queue:     h.queue,
		Sleeper:   h.sleeper,
		Logger:    zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)),
		Observers: []any{h.observer},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		h.gestures.release()
		h.loop.Stop()
		h.loop.Wait()
	})
	return h
}

func (h *harness) waitForState(t *testing.T, want AutomationState) {
	t.Helper()
	require.Eventually(t, func() bool { return h.loop.State() == want },
		2*time.Second, time.Millisecond, "state never reached %s", want)
}

func TestLoopDetectionPausesOnce(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())

	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	taps, swipes, backs := h.gestures.counts()
	assert.Equal(t, 3, taps)
	assert.Equal(t, 1, swipes)
	assert.Equal(t, 0, backs, "no recovery on a detection pass")
	assert.Equal(t, 0, h.loop.ActiveExecutions())

	ov := h.loop.Overlay()
	require.NotNil(t, ov)
	assert.Equal(t, image.Rect(0, 0, frameWidth, frameHeight), ov.Bounds())
	assert.Len(t, h.store.saved, 1)

	detections, started, finished := h.observer.snapshot()
	require.Len(t, detections, 1)
	assert.Equal(t, []int{212, 512, 812},
		[]int{detections[0].Lines[0].X, detections[0].Lines[1].X, detections[0].Lines[2].X})
	assert.Equal(t, "/sdcard/green_detected_1.png", detections[0].OverlayPath)
	assert.Equal(t, 35, detections[0].MinSeparationPx)
	require.Len(t, started, 1)
	require.Len(t, finished, 1)
	assert.Equal(t, started[0].RunID, finished[0].RunID)
	assert.Equal(t, OutcomeDetected, finished[0].Outcome)
	assert.Equal(t, 1, finished[0].Iterations)

	h.queue.Drain()
	assert.Equal(t, 1, h.intents.count(events.EventTypeOverlayReady))
	assert.Contains(t, h.intents.messages(events.EventTypeStatusChanged), TitlePaused)
	assert.Contains(t, h.intents.messages(events.EventTypeNotify), MsgPausedSaved)
}

func TestLoopNegativeScanRunsRecovery(t *testing.T) {
	h := newHarness(t, nil, blankFrame(), positiveFrame())

	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	taps, swipes, backs := h.gestures.counts()
	assert.Equal(t, 6, taps)
	assert.Equal(t, 3, swipes)
	assert.Equal(t, 1, backs)

	settle := 400 * time.Millisecond
	assert.Equal(t, []time.Duration{settle, settle, settle, settle}, h.sleeper.Sleeps())
	assert.EqualValues(t, 2, h.detector.calls.Load())
}

func TestLoopCaptureFailureSkipsAnalysis(t *testing.T) {
	h := newHarness(t, nil, nil, positiveFrame())

	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	taps, swipes, backs := h.gestures.counts()
	assert.Equal(t, 6, taps)
	assert.Equal(t, 2, swipes)
	assert.Equal(t, 0, backs, "capture failure must not trigger recovery")
	assert.EqualValues(t, 1, h.detector.calls.Load())

	_, _, finished := h.observer.snapshot()
	require.Len(t, finished, 1)
	assert.Equal(t, 1, finished[0].CaptureFailures)
}

func TestLoopRestartWhileRunningIsRejected(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())
	h.gestures.hold()

	require.NoError(t, h.loop.Start())
	<-h.gestures.entered

	err := h.loop.Restart()
	require.ErrorIs(t, err, ErrInvalidCommand)
	assert.Equal(t, StateRunning, h.loop.State())
	assert.Equal(t, 1, h.loop.ActiveExecutions())

	h.queue.Drain()
	assert.Contains(t, h.intents.messages(events.EventTypeNotify), MsgAlreadyRunning)

	h.gestures.release()
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	_, started, _ := h.observer.snapshot()
	assert.Len(t, started, 1, "rejected restart must not spawn")
}

func TestLoopConcurrentRestartsSpawnOneExecution(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())

	var maxActive atomic.Int32
	h.gestures.onTap = func() {
		n := int32(h.loop.ActiveExecutions())
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
	}

	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	// Hold the next execution so late restarts all see Running
	h.gestures.hold()

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.loop.Restart() == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, accepted.Load())
	assert.LessOrEqual(t, h.loop.ActiveExecutions(), 1)

	h.gestures.release()
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	assert.LessOrEqual(t, maxActive.Load(), int32(1))
	_, started, _ := h.observer.snapshot()
	require.Len(t, started, 2)
	assert.True(t, started[1].Restart)
	assert.NotEqual(t, started[0].RunID, started[1].RunID)
}

func TestLoopRestartRequiresPause(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())

	err := h.loop.Restart()
	require.ErrorIs(t, err, ErrInvalidCommand)
	assert.Equal(t, StateStopped, h.loop.State())
	assert.Equal(t, 0, h.loop.ActiveExecutions())
}

func TestLoopStartTwiceRejected(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())
	h.gestures.hold()

	require.NoError(t, h.loop.Start())
	assert.ErrorIs(t, h.loop.Start(), ErrInvalidCommand)
	assert.Equal(t, 1, h.loop.ActiveExecutions())
}

func TestLoopStopEndsExecution(t *testing.T) {
	h := newHarness(t, nil, blankFrame())

	require.NoError(t, h.loop.Start())
	require.Eventually(t, func() bool { return h.capture.Calls() >= 3 }, 2*time.Second, time.Millisecond)

	h.loop.Stop()
	h.loop.Wait()

	assert.Equal(t, StateStopped, h.loop.State())
	assert.Equal(t, 0, h.loop.ActiveExecutions())
	assert.Nil(t, h.loop.Overlay())

	_, _, finished := h.observer.snapshot()
	require.Len(t, finished, 1)
	assert.Equal(t, OutcomeStopped, finished[0].Outcome)

	// A stopped loop can be started again
	h.capture.push(positiveFrame())
	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()
}

func TestLoopStopInterruptsHeldGesture(t *testing.T) {
	h := newHarness(t, nil, blankFrame())
	h.gestures.hold()

	require.NoError(t, h.loop.Start())
	<-h.gestures.entered

	h.loop.Stop()
	h.loop.Wait()
	assert.Equal(t, 0, h.loop.ActiveExecutions())
}

func TestLoopCaptureCircuitBreaker(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.MaxConsecutiveCaptureFailures = 3
	h := newHarness(t, cfg, (*image.RGBA)(nil))

	require.NoError(t, h.loop.Start())
	h.loop.Wait()

	assert.Equal(t, StateStopped, h.loop.State())
	assert.Equal(t, 3, h.capture.Calls())
	assert.EqualValues(t, 0, h.detector.calls.Load())

	h.queue.Drain()
	var errEvent *events.Event
	for i := range h.intents.got {
		if h.intents.got[i].Type == events.EventTypeError {
			errEvent = &h.intents.got[i]
		}
	}
	require.NotNil(t, errEvent)
	assert.ErrorIs(t, errEvent.Err, ErrCaptureCircuitOpen)

	_, _, finished := h.observer.snapshot()
	require.Len(t, finished, 1)
	assert.Equal(t, OutcomeCaptureFailure, finished[0].Outcome)
}

func TestLoopGestureFailuresAreNotFatal(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())
	h.gestures.tapErr = errors.New("input rejected")

	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	_, _, finished := h.observer.snapshot()
	require.Len(t, finished, 1)
	assert.Equal(t, 3, finished[0].GestureFailures)
	assert.Equal(t, OutcomeDetected, finished[0].Outcome)
}

func TestLoopSaveFailureStillPauses(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())
	h.store.err = errors.New("disk full")

	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	assert.NotNil(t, h.loop.Overlay())
	h.queue.Drain()
	assert.Contains(t, h.intents.messages(events.EventTypeNotify), MsgPausedNotSaved)
}

func TestSaveOverlay(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())
	path := filepath.Join(t.TempDir(), "out", "overlay.png")

	assert.ErrorIs(t, h.loop.SaveOverlay(path), ErrNoOverlay)

	require.NoError(t, h.loop.Start())
	h.waitForState(t, StatePaused)
	h.loop.Wait()

	require.NoError(t, h.loop.SaveOverlay(path))
	loaded, err := overlay.LoadPNG(path)
	require.NoError(t, err)
	assert.Equal(t, h.loop.Overlay().Bounds(), loaded.Bounds())
}

func TestStartAfterConfirmDeclined(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())

	var asked []string
	err := StartAfterConfirm(context.Background(), h.loop, ConfirmFunc(func(title, message string) bool {
		asked = append(asked, title, message)
		return false
	}))
	require.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, []string{ConfirmTitle, ConfirmMessage}, asked)
	assert.Equal(t, StateStopped, h.loop.State())
	assert.Empty(t, h.sleeper.Sleeps())

	h.queue.Drain()
	assert.Equal(t, []string{MsgCanceled}, h.intents.messages(events.EventTypeNotify))
}

func TestStartAfterConfirmAccepted(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())

	err := StartAfterConfirm(context.Background(), h.loop, ConfirmFunc(func(string, string) bool { return true }))
	require.NoError(t, err)

	h.waitForState(t, StatePaused)
	h.loop.Wait()

	sleeps := h.sleeper.Sleeps()
	require.NotEmpty(t, sleeps)
	assert.Equal(t, 5*time.Second, sleeps[0])

	h.queue.Drain()
	notes := h.intents.messages(events.EventTypeNotify)
	require.GreaterOrEqual(t, len(notes), 2)
	assert.Equal(t, MsgStartingIn, notes[0])
	assert.Contains(t, notes, MsgStarted)
}

func TestStartAfterConfirmInterrupted(t *testing.T) {
	h := newHarness(t, nil, positiveFrame())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := StartAfterConfirm(ctx, h.loop, ConfirmFunc(func(string, string) bool { return true }))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStopped, h.loop.State())
}
