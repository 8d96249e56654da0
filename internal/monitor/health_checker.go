package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DeviceProber is the minimal device interface needed for health checking
type DeviceProber interface {
	State() (string, error)
}

// UnhealthyCallback is called when the device becomes unhealthy
type UnhealthyCallback func(reason string, err error)

// HealthChecker polls the device state while automation runs
type HealthChecker struct {
	device        DeviceProber
	logger        *zap.Logger
	checkInterval time.Duration
	onUnhealthy   UnhealthyCallback
	onRecovered   func()

	mu        sync.Mutex
	unhealthy bool
	lastCheck time.Time
	lastErr   error
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(device DeviceProber, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{
		device:        device,
		logger:        logger,
		checkInterval: 10 * time.Second,
	}
}

// WithUnhealthyCallback sets the callback for unhealthy events
func (hc *HealthChecker) WithUnhealthyCallback(callback UnhealthyCallback) *HealthChecker {
	hc.onUnhealthy = callback
	return hc
}

// WithRecoveredCallback sets the callback for a device coming back
func (hc *HealthChecker) WithRecoveredCallback(callback func()) *HealthChecker {
	hc.onRecovered = callback
	return hc
}

// WithCheckInterval sets the health check interval
func (hc *HealthChecker) WithCheckInterval(interval time.Duration) *HealthChecker {
	hc.checkInterval = interval
	return hc
}

// Run checks the device on every tick until ctx is done
func (hc *HealthChecker) Run(ctx context.Context) error {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			hc.Check()
		}
	}
}

// Check runs one probe. Callbacks fire on transitions only.
func (hc *HealthChecker) Check() error {
	err := hc.probe()

	hc.mu.Lock()
	wasUnhealthy := hc.unhealthy
	hc.unhealthy = err != nil
	hc.lastErr = err
	hc.lastCheck = time.Now()
	hc.mu.Unlock()

	switch {
	case err != nil && !wasUnhealthy:
		hc.logger.Warn("Device unhealthy", zap.Error(err))
		if hc.onUnhealthy != nil {
			hc.onUnhealthy("device_unreachable", err)
		}
	case err == nil && wasUnhealthy:
		hc.logger.Info("Device recovered")
		if hc.onRecovered != nil {
			hc.onRecovered()
		}
	}
	return err
}

// Healthy reports the result of the last check
func (hc *HealthChecker) Healthy() bool {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return !hc.unhealthy
}

// LastCheck returns when the device was last probed and the error it returned
func (hc *HealthChecker) LastCheck() (time.Time, error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.lastCheck, hc.lastErr
}

func (hc *HealthChecker) probe() error {
	state, err := hc.device.State()
	if err != nil {
		return fmt.Errorf("device state check failed: %w", err)
	}
	if state != "device" {
		return fmt.Errorf("device in state %q", state)
	}
	return nil
}
