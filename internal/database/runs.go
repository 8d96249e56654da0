package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// StartRun records a new execution
func (db *DB) StartRun(id, device string, isRestart bool, startedAt time.Time) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, device, is_restart, started_at, outcome)
			VALUES (?, ?, ?, ?, ?)
		`, id, device, isRestart, startedAt, RunStatusRunning)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return nil
	})
}

// CompleteRun stores the final counters and outcome of an execution
func (db *DB) CompleteRun(id string, endedAt time.Time, iterations, gestureFailures, captureFailures int, outcome string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE runs
			SET ended_at = ?,
				iterations = ?,
				gesture_failures = ?,
				capture_failures = ?,
				outcome = ?
			WHERE id = ?
		`, endedAt, iterations, gestureFailures, captureFailures, outcome, id)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, device, is_restart, started_at, ended_at,
			iterations, gesture_failures, capture_failures, outcome
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, device, is_restart, started_at, ended_at,
			iterations, gesture_failures, capture_failures, outcome
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.Device, &run.IsRestart, &run.StartedAt, &run.EndedAt,
		&run.Iterations, &run.GestureFailures, &run.CaptureFailures, &run.Outcome,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
