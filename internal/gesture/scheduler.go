// Package gesture issues the randomized taps and swipes that drive the device.
package gesture

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"jordanella.com/linewatch/internal/clock"
	"jordanella.com/linewatch/internal/cv"
)

// Device is the input side of the device collaborator
type Device interface {
	Tap(x, y, durationMs int) error
	Swipe(x1, y1, x2, y2, durationMs int) error
	Back() error
}

// Config holds gesture timing
type Config struct {
	TapDurationMs int
	TapDelayMinMs int
	TapDelayMaxMs int
	SwipeAnchorY  float64 // Fraction of height where vertical swipes start
}

// DefaultConfig returns the standard gesture timing
func DefaultConfig() Config {
	return Config{
		TapDurationMs: 120,
		TapDelayMinMs: 200,
		TapDelayMaxMs: 300,
		SwipeAnchorY:  0.75,
	}
}

// Scheduler issues gestures against a device of fixed size
type Scheduler struct {
	device  Device
	config  Config
	width   int
	height  int
	sleeper clock.Sleeper
	logger  *zap.Logger

	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewScheduler creates a scheduler for a width x height device
func NewScheduler(device Device, width, height int, config Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		device:  device,
		config:  config,
		width:   width,
		height:  height,
		sleeper: clock.Real{},
		logger:  logger,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6c696e65)),
	}
}

// WithRand replaces the random source
func (s *Scheduler) WithRand(rng *rand.Rand) *Scheduler {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng = rng
	return s
}

// WithSleeper replaces the sleeper used for post-tap delays
func (s *Scheduler) WithSleeper(sleeper clock.Sleeper) *Scheduler {
	s.sleeper = sleeper
	return s
}

// randInt returns a uniform integer in [lo, hi]
func (s *Scheduler) randInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return lo + s.rng.IntN(hi-lo+1)
}

// RandomTap taps a uniformly random point of the region, then waits a
// randomized delay so taps do not fall on a fixed rhythm.
func (s *Scheduler) RandomTap(ctx context.Context, region cv.Region) error {
	x := s.randInt(region.Left, region.Right)
	y := s.randInt(region.Top, region.Bottom)

	s.logger.Debug("Tap", zap.Int("x", x), zap.Int("y", y))
	tapErr := s.device.Tap(x, y, s.config.TapDurationMs)
	if tapErr != nil {
		tapErr = fmt.Errorf("tap at (%d,%d): %w", x, y, tapErr)
	}

	delay := time.Duration(s.randInt(s.config.TapDelayMinMs, s.config.TapDelayMaxMs)) * time.Millisecond
	if err := s.sleeper.Sleep(ctx, delay); err != nil {
		return err
	}
	return tapErr
}

// SwipeAnchor returns the fixed start point of vertical swipes
func (s *Scheduler) SwipeAnchor() cv.Point {
	return cv.Point{
		X: s.width / 2,
		Y: int(float64(s.height) * s.config.SwipeAnchorY),
	}
}

// VerticalSwipe swipes upward by distance from the anchor
func (s *Scheduler) VerticalSwipe(ctx context.Context, distance, durationMs int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := s.SwipeAnchor()
	s.logger.Debug("Swipe", zap.Int("x", a.X), zap.Int("y1", a.Y), zap.Int("y2", a.Y-distance))
	if err := s.device.Swipe(a.X, a.Y, a.X, a.Y-distance, durationMs); err != nil {
		return fmt.Errorf("swipe: %w", err)
	}
	return nil
}

// NavigateBack presses the device back key
func (s *Scheduler) NavigateBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.device.Back(); err != nil {
		return fmt.Errorf("back: %w", err)
	}
	return nil
}

// Size returns the device dimensions the scheduler was built for
func (s *Scheduler) Size() (width, height int) {
	return s.width, s.height
}
