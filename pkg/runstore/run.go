package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Status is the lifecycle status of a tracked run.
//
// NOTE: These values are persisted in the latest_status column and are part
// of the stable on-disk contract.
type Status string

const (
	// StatusSubmitted indicates the run is registered but its process has
	// not begun (no log, or a log without a pid).
	StatusSubmitted Status = "submitted"
	// StatusRunning indicates a live process is driving the run.
	StatusRunning Status = "running"
	// StatusComplete indicates normal termination.
	StatusComplete Status = "complete"
	// StatusError indicates an error marker or a vanished process.
	StatusError Status = "error"
)

// Terminal reports whether the status is final. A terminal run is never
// re-evaluated; re-running the same configuration goes through a fresh
// registration.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Valid reports whether s is one of the persisted status values.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusRunning, StatusComplete, StatusError:
		return true
	}
	return false
}

// RunRecord is one persisted registry row, minus its fingerprint columns.
type RunRecord struct {
	ID          int64
	Status      Status
	LogPath     *string
	PID         *int
	SubmittedAt *time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
}

// GetRun retrieves the bookkeeping columns of a run.
func (c *Connector) GetRun(ctx context.Context, table string, runID int64) (*RunRecord, error) {
	return getRun(ctx, c.db, table, runID)
}

// GetRun retrieves the bookkeeping columns of a run via the read capability.
func (r *Reader) GetRun(ctx context.Context, table string, runID int64) (*RunRecord, error) {
	return getRun(ctx, r.db, table, runID)
}

func getRun(ctx context.Context, db *sql.DB, table string, runID int64) (*RunRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateIdent(table); err != nil {
		return nil, err
	}

	var (
		rec         RunRecord
		status      string
		logPath     sql.NullString
		pid         sql.NullInt64
		submittedAt sql.NullTime
		startedAt   sql.NullTime
		endedAt     sql.NullTime
	)

	// Table name is validated against the identifier grammar above.
	query := fmt.Sprintf(
		`SELECT id, latest_status, log_path, pid, submitted_time, start_time, end_time
		 FROM %s WHERE id = ?`, table)

	err := db.QueryRowContext(ctx, query, runID).Scan(
		&rec.ID, &status, &logPath, &pid, &submittedAt, &startedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s id=%d", ErrRunNotFound, table, runID)
	}
	if err != nil {
		return nil, &QueryError{Stmt: query, Err: err}
	}

	rec.Status = Status(status)
	if logPath.Valid {
		rec.LogPath = &logPath.String
	}
	if pid.Valid {
		p := int(pid.Int64)
		rec.PID = &p
	}
	if submittedAt.Valid {
		rec.SubmittedAt = &submittedAt.Time
	}
	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}

	return &rec, nil
}
