// Package clock abstracts the fixed waits of the automation so they can be
// recorded instead of slept in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Sleeper blocks for a duration or until ctx is done
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on the wall clock
type Real struct{}

// Sleep waits for d; it returns ctx.Err() if ctx ends first
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recorder records requested sleeps and returns immediately
type Recorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// Sleep records d
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns a copy of every recorded duration
func (r *Recorder) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.sleeps))
	copy(out, r.sleeps)
	return out
}

// Total returns the sum of recorded durations
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Sleeps() {
		total += d
	}
	return total
}
