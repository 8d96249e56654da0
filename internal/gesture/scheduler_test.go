package gesture

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jordanella.com/linewatch/internal/clock"
	"jordanella.com/linewatch/internal/cv"
)

type tap struct{ x, y, ms int }
type swipe struct{ x1, y1, x2, y2, ms int }

type fakeDevice struct {
	taps    []tap
	swipes  []swipe
	backs   int
	failTap bool
}

func (d *fakeDevice) Tap(x, y, ms int) error {
	d.taps = append(d.taps, tap{x, y, ms})
	if d.failTap {
		return errors.New("injection rejected")
	}
	return nil
}

func (d *fakeDevice) Swipe(x1, y1, x2, y2, ms int) error {
	d.swipes = append(d.swipes, swipe{x1, y1, x2, y2, ms})
	return nil
}

func (d *fakeDevice) Back() error {
	d.backs++
	return nil
}

func newTestScheduler(dev *fakeDevice) (*Scheduler, *clock.Recorder) {
	rec := &clock.Recorder{}
	s := NewScheduler(dev, 1080, 2400, DefaultConfig(), nil).
		WithRand(rand.New(rand.NewPCG(1, 2))).
		WithSleeper(rec)
	return s, rec
}

func TestRandomTapStaysInRegion(t *testing.T) {
	dev := &fakeDevice{}
	s, rec := newTestScheduler(dev)
	region := cv.NewRegion(1800, 2280, 270, 810)

	for i := 0; i < 500; i++ {
		require.NoError(t, s.RandomTap(context.Background(), region))
	}

	require.Len(t, dev.taps, 500)
	for _, tp := range dev.taps {
		assert.True(t, region.Contains(cv.Point{X: tp.x, Y: tp.y}), "tap (%d,%d) outside region", tp.x, tp.y)
		assert.Equal(t, 120, tp.ms)
	}

	sleeps := rec.Sleeps()
	require.Len(t, sleeps, 500)
	for _, d := range sleeps {
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestRandomTapReachesRegionEdges(t *testing.T) {
	dev := &fakeDevice{}
	s, _ := newTestScheduler(dev)
	region := cv.NewRegion(10, 12, 20, 22)

	seen := map[cv.Point]bool{}
	for i := 0; i < 300; i++ {
		require.NoError(t, s.RandomTap(context.Background(), region))
	}
	for _, tp := range dev.taps {
		seen[cv.Point{X: tp.x, Y: tp.y}] = true
	}
	assert.True(t, seen[cv.Point{X: 20, Y: 10}])
	assert.True(t, seen[cv.Point{X: 22, Y: 12}])
}

func TestRandomTapReportsDeviceError(t *testing.T) {
	dev := &fakeDevice{failTap: true}
	s, rec := newTestScheduler(dev)

	err := s.RandomTap(context.Background(), cv.NewRegion(0, 10, 0, 10))
	assert.Error(t, err)
	// The delay still runs so timing stays desynchronized
	assert.Len(t, rec.Sleeps(), 1)
}

func TestVerticalSwipeFromAnchor(t *testing.T) {
	dev := &fakeDevice{}
	s, _ := newTestScheduler(dev)

	require.NoError(t, s.VerticalSwipe(context.Background(), 600, 250))
	require.Len(t, dev.swipes, 1)
	assert.Equal(t, swipe{540, 1800, 540, 1200, 250}, dev.swipes[0])
}

func TestNavigateBack(t *testing.T) {
	dev := &fakeDevice{}
	s, _ := newTestScheduler(dev)
	require.NoError(t, s.NavigateBack(context.Background()))
	assert.Equal(t, 1, dev.backs)
}

func TestGesturesSkippedAfterCancel(t *testing.T) {
	dev := &fakeDevice{}
	s, _ := newTestScheduler(dev)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.VerticalSwipe(ctx, 100, 250), context.Canceled)
	assert.ErrorIs(t, s.NavigateBack(ctx), context.Canceled)
	assert.Empty(t, dev.swipes)
	assert.Zero(t, dev.backs)
}
