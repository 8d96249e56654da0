package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"jordanella.com/linewatch/internal/adb"
	"jordanella.com/linewatch/internal/bot"
	"jordanella.com/linewatch/internal/clock"
	"jordanella.com/linewatch/internal/config"
	"jordanella.com/linewatch/internal/cv"
	"jordanella.com/linewatch/internal/database"
	"jordanella.com/linewatch/internal/events"
	"jordanella.com/linewatch/internal/gesture"
	"jordanella.com/linewatch/internal/monitor"
	"jordanella.com/linewatch/internal/overlay"
	"jordanella.com/linewatch/internal/upload"
)

const (
	eventSource        = "session"
	defaultQueueSize   = 64
	uploadDrainTimeout = 30 * time.Second
)

// Options configure Open
type Options struct {
	Settings  *config.Settings
	Logger    *zap.Logger
	Runner    adb.Runner    // nil runs the real adb binary
	Sleeper   clock.Sleeper // nil uses real time
	QueueSize int
}

// Session owns every component of one automation setup against one device
type Session struct {
	Settings *config.Settings
	Device   *adb.Controller
	Capture  *cv.Service
	Detector *cv.LineDetector
	Gestures *gesture.Scheduler
	Store    *overlay.FileStore
	Queue    *events.Queue
	Loop     *bot.Loop
	Health   *monitor.HealthChecker
	DB       *database.DB   // nil when history is disabled
	Uploads  *upload.Worker // nil when uploads are disabled

	Layout bot.Layout
	DPI    int

	logger    *zap.Logger
	stayAwake bool
	closeOnce sync.Once
	closeErr  error
}

// Open locates the device, checks capture permission and builds the loop.
// Any error here is a startup failure.
func Open(opts Options) (_ *Session, err error) {
	settings := opts.Settings
	if settings == nil {
		settings = config.NewDefaultSettings()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	cfg := settings.Automation

	s := &Session{Settings: settings, logger: logger}
	defer func() {
		if err != nil {
			err = multierr.Append(err, s.release())
		}
	}()

	adbPath := settings.ADB.Path
	run := opts.Runner
	if run == nil {
		if adbPath, err = adb.FindADB(settings.ADB.Path); err != nil {
			return nil, err
		}
		run = adb.ExecRunner
	} else if adbPath == "" {
		adbPath = "adb"
	}

	serial, err := adb.ResolveDevice(adbPath, settings.ADB.Serial, run)
	if err != nil {
		return nil, err
	}

	s.Device = adb.NewController(adbPath, serial, logger.Named("adb")).WithRunner(run)
	if err = s.Device.Connect(); err != nil {
		return nil, err
	}

	s.Capture = cv.NewService(cv.NewADBCapture(s.Device), logger.Named("capture")).WithSleeper(sleeper)
	if err = s.Capture.CheckPermission(); err != nil {
		return nil, fmt.Errorf("screen capture not permitted: %w", err)
	}

	width, height, err := s.Device.GetWindowSize()
	if err != nil {
		return nil, fmt.Errorf("failed to read device size: %w", err)
	}
	dpi, derr := s.Device.GetDensity()
	if derr != nil || dpi <= 0 {
		logger.Warn("Density unavailable, using default", zap.Int("dpi", cv.DefaultDPI), zap.Error(derr))
		dpi = cv.DefaultDPI
	}

	if s.Layout, err = cfg.Resolve(width, height); err != nil {
		return nil, err
	}
	s.Detector = cv.NewLineDetector(cfg.LineConfig(dpi))
	s.DPI = s.Detector.Config().DPI

	s.Gestures = gesture.NewScheduler(s.Device, width, height, cfg.GestureConfig(), logger.Named("gesture")).
		WithSleeper(sleeper)
	s.Store = overlay.NewFileStore(cfg.OverlayDir)
	s.Queue = events.NewQueue(queueSize, logger.Named("events"))

	var observers []any
	if settings.History.Enabled {
		if s.DB, err = database.OpenAndMigrate(settings.History.Path, logger.Named("db")); err != nil {
			return nil, err
		}
		observers = append(observers, database.NewRecorder(s.DB, serial, logger.Named("history")))
	}
	if settings.Upload.Enabled {
		uploader := upload.New(settings.Upload, logger.Named("upload"))
		s.Uploads = upload.NewWorker(uploader, logger.Named("upload"))
		observers = append(observers, s.Uploads)
	}

	s.Loop, err = bot.NewLoop(cfg, s.Layout, bot.Deps{
		Gestures:  s.Gestures,
		Capture:   s.Capture,
		Detector:  s.Detector,
		Store:     s.Store,
		Queue:     s.Queue,
		Sleeper:   sleeper,
		Logger:    logger.Named("loop"),
		Observers: observers,
	})
	if err != nil {
		return nil, err
	}

	s.Health = monitor.NewHealthChecker(s.Device, logger.Named("health")).
		WithUnhealthyCallback(func(reason string, err error) {
			s.Queue.Post(events.NewErrorEvent(eventSource, "Device unreachable: "+reason, err))
		}).
		WithRecoveredCallback(func() {
			s.Queue.Post(events.NewNotifyEvent(eventSource, "Device reachable again."))
		})
	if settings.ADB.HealthIntervalSec > 0 {
		s.Health.WithCheckInterval(time.Duration(settings.ADB.HealthIntervalSec) * time.Second)
	}

	if cfg.KeepScreenOn {
		if err := s.Device.StayAwake(true); err != nil {
			logger.Warn("Failed to keep screen on", zap.Error(err))
		} else {
			s.stayAwake = true
		}
	}

	logger.Info("Session ready",
		zap.String("device", serial),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("dpi", s.DPI),
		zap.Int("min_separation_px", s.Detector.MinSeparationPx()))
	return s, nil
}

// Start runs the confirm-delay-start sequence. It blocks; call it off the UI thread.
func (s *Session) Start(ctx context.Context, confirmer bot.Confirmer) error {
	return bot.StartAfterConfirm(ctx, s.Loop, confirmer)
}

// Restart resumes after a pause
func (s *Session) Restart() error {
	return s.Loop.Restart()
}

// Stop ends the running execution at its next step
func (s *Session) Stop() {
	s.Loop.Stop()
}

// Save writes the current overlay to a timestamped file in the overlay directory
func (s *Session) Save() (string, error) {
	return s.SaveOverlay("")
}

// Monitor probes device health until ctx is done. It returns at once when disabled.
func (s *Session) Monitor(ctx context.Context) error {
	if s.Settings.ADB.HealthIntervalSec <= 0 {
		<-ctx.Done()
		return nil
	}
	return s.Health.Run(ctx)
}

// SaveOverlay writes the current overlay. An empty path picks a timestamped
// file in the overlay directory.
func (s *Session) SaveOverlay(path string) (string, error) {
	if path == "" {
		img := s.Loop.Overlay()
		if img == nil {
			return "", bot.ErrNoOverlay
		}
		var err error
		if path, err = s.Store.SaveManual(img); err != nil {
			return "", err
		}
		s.Queue.Post(events.NewNotifyEvent(eventSource, fmt.Sprintf(bot.MsgOverlaySavedFmt, path)))
		return path, nil
	}
	return path, s.Loop.SaveOverlay(path)
}

// Close stops the loop and releases the device and storage
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.Loop != nil {
			s.Loop.Stop()
			s.Loop.Wait()
		}
		s.closeErr = s.release()
		s.logger.Info("Session closed")
	})
	return s.closeErr
}

func (s *Session) release() error {
	var err error
	if s.stayAwake {
		if serr := s.Device.StayAwake(false); serr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to restore screen timeout: %w", serr))
		}
		s.stayAwake = false
	}
	if s.Uploads != nil {
		err = multierr.Append(err, s.Uploads.Close(uploadDrainTimeout))
	}
	if s.DB != nil {
		err = multierr.Append(err, s.DB.Close())
	}
	if s.Device != nil {
		err = multierr.Append(err, s.Device.Disconnect())
	}
	return err
}
