package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCaptureHealthTripsAtThreshold(t *testing.T) {
	h := NewCaptureHealth(3)

	assert.False(t, h.RecordFailure())
	assert.False(t, h.RecordFailure())
	assert.True(t, h.RecordFailure())

	stats := h.Stats()
	assert.Equal(t, 3, stats.Consecutive)
	assert.Equal(t, 3, stats.Failures)
}

func TestCaptureHealthSuccessResetsRun(t *testing.T) {
	h := NewCaptureHealth(2)

	assert.False(t, h.RecordFailure())
	h.RecordSuccess()
	assert.False(t, h.RecordFailure())
	assert.True(t, h.RecordFailure())

	stats := h.Stats()
	assert.Equal(t, 3, stats.Failures)
	assert.Equal(t, 1, stats.Successes)
	assert.False(t, stats.LastSuccess.IsZero())
}

func TestCaptureHealthZeroThresholdNeverTrips(t *testing.T) {
	h := NewCaptureHealth(0)
	for i := 0; i < 100; i++ {
		require.False(t, h.RecordFailure())
	}
	assert.Equal(t, 100, h.Stats().Consecutive)

	h.Reset()
	assert.Equal(t, 0, h.Stats().Consecutive)
	assert.Equal(t, 100, h.Stats().Failures)
}

type fakeProber struct {
	mu    sync.Mutex
	state string
	err   error
}

func (f *fakeProber) set(state string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state, f.err = state, err
}

func (f *fakeProber) State() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

func TestHealthCheckerTransitions(t *testing.T) {
	prober := &fakeProber{state: "device"}
	var reasons []string
	recovered := 0

	hc := NewHealthChecker(prober, zaptest.NewLogger(t)).
		WithUnhealthyCallback(func(reason string, err error) { reasons = append(reasons, reason) }).
		WithRecoveredCallback(func() { recovered++ })

	require.NoError(t, hc.Check())
	assert.True(t, hc.Healthy())

	prober.set("", errors.New("device offline"))
	assert.Error(t, hc.Check())
	assert.Error(t, hc.Check())
	assert.False(t, hc.Healthy())
	assert.Equal(t, []string{"device_unreachable"}, reasons)

	prober.set("unauthorized", nil)
	assert.Error(t, hc.Check())
	assert.Len(t, reasons, 1)

	prober.set("device", nil)
	require.NoError(t, hc.Check())
	assert.Equal(t, 1, recovered)

	at, err := hc.LastCheck()
	assert.NoError(t, err)
	assert.False(t, at.IsZero())
}

func TestHealthCheckerRunStopsOnCancel(t *testing.T) {
	prober := &fakeProber{state: "device"}
	hc := NewHealthChecker(prober, nil).WithCheckInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hc.Run(ctx) }()

	assert.Eventually(t, func() bool {
		at, _ := hc.LastCheck()
		return !at.IsZero()
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
