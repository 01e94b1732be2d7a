package runstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plasmalab/simtrack/pkg/fingerprint"
)

// InsertRun inserts a new run row for the fingerprint and returns its id.
//
// The existence pre-check and the insert run under the store's write lock:
// two callers racing with an identical fingerprint cannot both observe "not
// found" and both insert. An existing exact match fails the insert; callers
// wanting reuse semantics use FindOrCreateRun.
func (c *Connector) InsertRun(ctx context.Context, table string, fp fingerprint.Fingerprint, logPath string) (int64, error) {
	id, created, err := c.findOrCreate(ctx, table, fp, logPath)
	if err != nil {
		return 0, err
	}
	if !created {
		return 0, fmt.Errorf("run already registered in %s with id %d", table, id)
	}
	return id, nil
}

// FindOrCreateRun returns the id of the run with this exact fingerprint,
// inserting a new row in submitted status if none exists. The bool result
// reports whether a row was created.
//
// This is the check-then-insert critical section of the registry: the lookup
// and the insert are protected end-to-end by the same write lock that
// serializes all mutations.
func (c *Connector) FindOrCreateRun(ctx context.Context, table string, fp fingerprint.Fingerprint, logPath string) (int64, bool, error) {
	return c.findOrCreate(ctx, table, fp, logPath)
}

func (c *Connector) findOrCreate(ctx context.Context, table string, fp fingerprint.Fingerprint, logPath string) (int64, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateIdent(table); err != nil {
		return 0, false, err
	}
	if fp.IsZero() {
		return 0, false, fmt.Errorf("insert into %s: empty fingerprint", table)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	existing, err := getEntryID(ctx, c.db, table, fp.Values())
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	columns := fp.Columns()
	names := make([]string, 0, len(columns)+2)
	placeholders := make([]string, 0, len(columns)+2)
	args := make([]any, 0, len(columns)+2)
	for _, col := range columns {
		if err := validateIdent(col.Name); err != nil {
			return 0, false, fmt.Errorf("insert into %s: %w", table, err)
		}
		names = append(names, col.Name)
		placeholders = append(placeholders, "?")
		args = append(args, col.Value)
	}

	names = append(names, "latest_status", "submitted_time")
	placeholders = append(placeholders, "?", "?")
	args = append(args, string(StatusSubmitted), time.Now().UTC())

	if strings.TrimSpace(logPath) != "" {
		names = append(names, "log_path")
		placeholders = append(placeholders, "?")
		args = append(args, logPath)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, false, &QueryError{Stmt: stmt, Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, &QueryError{Stmt: stmt, Err: err}
	}
	return id, true, nil
}

// StatusUpdate carries the fields the reconciler decided to persist.
// Nil pointer fields are left untouched; the store overwrites the rest
// verbatim. The decision of what to write belongs to the reconciler, not
// the store.
type StatusUpdate struct {
	Status    Status
	PID       *int
	StartedAt *time.Time
	EndedAt   *time.Time
	LogPath   *string
}

// UpdateStatus applies a full or partial update to a run row.
func (c *Connector) UpdateStatus(ctx context.Context, table string, runID int64, update StatusUpdate) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateIdent(table); err != nil {
		return err
	}
	if !update.Status.Valid() {
		return fmt.Errorf("update %s id=%d: invalid status %q", table, runID, update.Status)
	}

	sets := []string{"latest_status = ?"}
	args := []any{string(update.Status)}

	if update.PID != nil {
		sets = append(sets, "pid = ?")
		args = append(args, *update.PID)
	}
	if update.StartedAt != nil {
		sets = append(sets, "start_time = ?")
		args = append(args, update.StartedAt.UTC())
	}
	if update.EndedAt != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, update.EndedAt.UTC())
	}
	if update.LogPath != nil {
		sets = append(sets, "log_path = ?")
		args = append(args, *update.LogPath)
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	args = append(args, runID)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return &QueryError{Stmt: stmt, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &QueryError{Stmt: stmt, Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("update %s: no run with id %d", table, runID)
	}
	return nil
}
