package database

import (
	"go.uber.org/zap"
	"jordanella.com/linewatch/internal/bot"
)

// Recorder writes loop runs and detections to the database.
// Write failures are logged; history is never allowed to stop the loop.
type Recorder struct {
	db     *DB
	device string
	logger *zap.Logger
}

// NewRecorder creates a Recorder for the given device serial
func NewRecorder(db *DB, device string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, device: device, logger: logger}
}

// OnRunStarted implements bot.RunObserver
func (r *Recorder) OnRunStarted(info bot.RunInfo) {
	if err := r.db.StartRun(info.RunID, r.device, info.Restart, info.StartedAt); err != nil {
		r.logger.Warn("Failed to record run start", zap.String("run_id", info.RunID), zap.Error(err))
	}
}

// OnRunFinished implements bot.RunObserver
func (r *Recorder) OnRunFinished(s bot.RunSummary) {
	err := r.db.CompleteRun(s.RunID, s.EndedAt, s.Iterations, s.GestureFailures, s.CaptureFailures, s.Outcome)
	if err != nil {
		r.logger.Warn("Failed to record run end", zap.String("run_id", s.RunID), zap.Error(err))
	}
}

// OnDetection implements bot.DetectionObserver
func (r *Recorder) OnDetection(rec bot.DetectionRecord) {
	d := &Detection{
		RunID:           rec.RunID,
		Iteration:       rec.Iteration,
		MinSeparationPx: rec.MinSeparationPx,
		FrameWidth:      rec.Width,
		FrameHeight:     rec.Height,
		OverlayPath:     rec.OverlayPath,
		DetectedAt:      rec.DetectedAt,
	}
	for i, line := range rec.Lines {
		d.LineX[i] = line.X
		d.LineCount[i] = line.Count
	}
	if _, err := r.db.RecordDetection(d); err != nil {
		r.logger.Warn("Failed to record detection", zap.String("run_id", rec.RunID), zap.Error(err))
	}
}
