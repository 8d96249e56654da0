package cv

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"jordanella.com/linewatch/internal/clock"
)

// Service wraps a Capturer with bounded retry
type Service struct {
	capturer Capturer
	sleeper  clock.Sleeper
	logger   *zap.Logger

	// Last good frame, kept for diagnostics
	lastFrame     *image.RGBA
	lastFrameTime time.Time

	mu sync.Mutex
}

// NewService creates a new CV service
func NewService(capturer Capturer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		capturer: capturer,
		sleeper:  clock.Real{},
		logger:   logger,
	}
}

// WithSleeper replaces the sleeper used for backoff
func (s *Service) WithSleeper(sleeper clock.Sleeper) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeper = sleeper
	return s
}

// CaptureFrame makes a single capture attempt
func (s *Service) CaptureFrame() (*image.RGBA, error) {
	frame, err := s.capturer.CaptureFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	if frame == nil {
		return nil, ErrCaptureUnavailable
	}

	s.mu.Lock()
	s.lastFrame = frame
	s.lastFrameTime = time.Now()
	s.mu.Unlock()

	return frame, nil
}

// CaptureWithRetry attempts up to maxAttempts captures, sleeping backoff
// between attempts. It returns false once attempts are exhausted; the caller
// skips analysis for that pass.
func (s *Service) CaptureWithRetry(ctx context.Context, maxAttempts int, backoff time.Duration) (*image.RGBA, bool) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	s.mu.Lock()
	sleeper := s.sleeper
	s.mu.Unlock()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		frame, err := s.CaptureFrame()
		if err == nil {
			return frame, true
		}

		s.logger.Debug("Capture attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}
		if err := sleeper.Sleep(ctx, backoff); err != nil {
			return nil, false
		}
	}

	s.logger.Warn("No frame after retries", zap.Int("attempts", maxAttempts))
	return nil, false
}

// LastFrame returns the most recent successful capture and when it happened
func (s *Service) LastFrame() (*image.RGBA, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame, s.lastFrameTime
}

// GetDimensions returns the capture dimensions
func (s *Service) GetDimensions() (width, height int) {
	return s.capturer.GetDimensions()
}

// CheckPermission verifies the one-time capture grant when the capturer needs one
func (s *Service) CheckPermission() error {
	if pc, ok := s.capturer.(PermissionChecker); ok {
		return pc.CheckPermission()
	}
	return nil
}
