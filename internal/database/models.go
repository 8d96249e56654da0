package database

import (
	"database/sql"
	"time"
)

// Run represents one loop execution
type Run struct {
	ID              string       `json:"id"`
	Device          string       `json:"device"`
	IsRestart       bool         `json:"is_restart"`
	StartedAt       time.Time    `json:"started_at"`
	EndedAt         sql.NullTime `json:"ended_at"`
	Iterations      int          `json:"iterations"`
	GestureFailures int          `json:"gesture_failures"`
	CaptureFailures int          `json:"capture_failures"`
	Outcome         string       `json:"outcome"`
}

// Duration returns how long the run lasted, or zero while it is still open
func (r *Run) Duration() time.Duration {
	if !r.EndedAt.Valid {
		return 0
	}
	return r.EndedAt.Time.Sub(r.StartedAt)
}

// Detection represents one detected trio of lines
type Detection struct {
	ID              int64     `json:"id"`
	RunID           string    `json:"run_id"`
	Iteration       int       `json:"iteration"`
	LineX           [3]int    `json:"line_x"`
	LineCount       [3]int    `json:"line_count"`
	MinSeparationPx int       `json:"min_separation_px"`
	FrameWidth      int       `json:"frame_width"`
	FrameHeight     int       `json:"frame_height"`
	OverlayPath     string    `json:"overlay_path"`
	DetectedAt      time.Time `json:"detected_at"`
}

// RunStatus values stored before a run finishes
const RunStatusRunning = "running"
