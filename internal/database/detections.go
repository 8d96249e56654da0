package database

import (
	"database/sql"
	"fmt"
)

// RecordDetection stores a detection and returns its ID
func (db *DB) RecordDetection(d *Detection) (int64, error) {
	var id int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO detections (
				run_id, iteration,
				line1_x, line2_x, line3_x,
				line1_count, line2_count, line3_count,
				min_separation_px, frame_width, frame_height,
				overlay_path, detected_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.RunID, d.Iteration,
			d.LineX[0], d.LineX[1], d.LineX[2],
			d.LineCount[0], d.LineCount[1], d.LineCount[2],
			d.MinSeparationPx, d.FrameWidth, d.FrameHeight,
			d.OverlayPath, d.DetectedAt)
		if err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// ListDetections returns the most recent detections, newest first.
// An empty runID lists across all runs.
func (db *DB) ListDetections(runID string, limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, run_id, iteration,
			line1_x, line2_x, line3_x,
			line1_count, line2_count, line3_count,
			min_separation_px, frame_width, frame_height,
			overlay_path, detected_at
		FROM detections`
	args := []any{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY detected_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		var d Detection
		err := rows.Scan(
			&d.ID, &d.RunID, &d.Iteration,
			&d.LineX[0], &d.LineX[1], &d.LineX[2],
			&d.LineCount[0], &d.LineCount[1], &d.LineCount[2],
			&d.MinSeparationPx, &d.FrameWidth, &d.FrameHeight,
			&d.OverlayPath, &d.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// CountDetections returns how many detections a run produced
func (db *DB) CountDetections(runID string) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM detections WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return n, nil
}
