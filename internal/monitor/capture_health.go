package monitor

import (
	"sync"
	"time"
)

// CaptureHealth counts capture outcomes across loop iterations and trips
// once a run of consecutive failures reaches the threshold. A threshold of 0
// never trips.
type CaptureHealth struct {
	mu          sync.Mutex
	threshold   int
	consecutive int
	failures    int
	successes   int
	lastSuccess time.Time
	lastFailure time.Time
}

// CaptureStats is a snapshot of CaptureHealth counters
type CaptureStats struct {
	Consecutive int
	Failures    int
	Successes   int
	LastSuccess time.Time
	LastFailure time.Time
}

// NewCaptureHealth creates a tracker with the given trip threshold
func NewCaptureHealth(threshold int) *CaptureHealth {
	if threshold < 0 {
		threshold = 0
	}
	return &CaptureHealth{threshold: threshold}
}

// RecordSuccess resets the consecutive failure run
func (h *CaptureHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive = 0
	h.successes++
	h.lastSuccess = time.Now()
}

// RecordFailure counts a failed capture and reports whether the threshold is reached
func (h *CaptureHealth) RecordFailure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive++
	h.failures++
	h.lastFailure = time.Now()
	return h.threshold > 0 && h.consecutive >= h.threshold
}

// Reset clears the consecutive run, keeping totals
func (h *CaptureHealth) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive = 0
}

// Threshold returns the configured trip threshold
func (h *CaptureHealth) Threshold() int {
	return h.threshold
}

// Stats returns a snapshot of the counters
func (h *CaptureHealth) Stats() CaptureStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return CaptureStats{
		Consecutive: h.consecutive,
		Failures:    h.failures,
		Successes:   h.successes,
		LastSuccess: h.lastSuccess,
		LastFailure: h.lastFailure,
	}
}
