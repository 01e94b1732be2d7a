package runstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/plasmalab/simtrack/pkg/fingerprint"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// CreateRunTable creates the run table for one tracked entity kind.
//
// The schema is derived from the fingerprint: one column per flattened
// parameter, plus the bookkeeping columns. The id is AUTOINCREMENT so row
// ids are monotonically increasing and never reused, even after deletes.
//
// The statement is idempotent; an existing table is left untouched.
func (c *Connector) CreateRunTable(ctx context.Context, table string, fp fingerprint.Fingerprint) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateIdent(table); err != nil {
		return err
	}
	if fp.IsZero() {
		return fmt.Errorf("create table %s: empty fingerprint", table)
	}

	var cols []string
	cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, col := range fp.Columns() {
		if err := validateIdent(col.Name); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", col.Name, col.SQLType()))
	}
	// TIMESTAMP decltype so the driver hands times back as time.Time.
	cols = append(cols,
		"latest_status TEXT NOT NULL",
		"log_path TEXT",
		"pid INTEGER",
		"submitted_time TIMESTAMP NOT NULL",
		"start_time TIMESTAMP",
		"end_time TIMESTAMP",
	)

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(cols, ",\n\t"))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return &QueryError{Stmt: stmt, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
