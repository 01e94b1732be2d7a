package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Reader is the read-only query surface over the run registry.
//
// Readers may run concurrently with each other and with the single writer
// under read-committed semantics; none of them take the write lock.
type Reader struct {
	db *sql.DB
}

// Result is a tabular query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return len(r.Rows) == 0
}

// Query runs an arbitrary read-only statement and returns the full result
// set. Used by diagnostics and by the registry façade's read surface.
func (r *Reader) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Stmt: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Stmt: query, Err: err}
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, &QueryError{Stmt: query, Err: err}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: query, Err: err}
	}

	return result, nil
}

// TablesCreated reports whether any registry tables exist. A freshly
// initialized, empty database yields false, never an error.
func (r *Reader) TablesCreated(ctx context.Context) bool {
	tables, err := r.runTables(ctx)
	return err == nil && len(tables) > 0
}

// GetEntryID returns the id of the unique row in table whose columns exactly
// equal values (every supplied key must match), or nil if no row matches.
//
// Uniqueness is enforced at insert time, so a hit is never ambiguous.
func (r *Reader) GetEntryID(ctx context.Context, table string, values map[string]any) (*int64, error) {
	return getEntryID(ctx, r.db, table, values)
}

func getEntryID(ctx context.Context, db *sql.DB, table string, values map[string]any) (*int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("lookup in %s: no columns given", table)
	}

	// Deterministic clause order keeps statements stable for the query
	// planner and for debugging.
	names := make([]string, 0, len(values))
	for name := range values {
		if err := validateIdent(name); err != nil {
			return nil, fmt.Errorf("lookup in %s: %w", table, err)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	clauses := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for _, name := range names {
		clauses = append(clauses, name+" = ?")
		args = append(args, values[name])
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE %s", table, strings.Join(clauses, " AND "))

	var id int64
	err := db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &QueryError{Stmt: query, Err: err}
	}
	return &id, nil
}

// GetLatestRowID returns the id of the most recently inserted row in table,
// or across all run tables when table is empty. An empty registry yields nil.
func (r *Reader) GetLatestRowID(ctx context.Context, table string) (*int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var tables []string
	if strings.TrimSpace(table) != "" {
		if err := validateIdent(table); err != nil {
			return nil, err
		}
		tables = []string{table}
	} else {
		var err error
		tables, err = r.runTables(ctx)
		if err != nil {
			return nil, err
		}
		if len(tables) == 0 {
			return nil, nil
		}
	}

	var latest *int64
	for _, t := range tables {
		query := fmt.Sprintf("SELECT MAX(id) FROM %s", t)
		var id sql.NullInt64
		if err := r.db.QueryRowContext(ctx, query).Scan(&id); err != nil {
			return nil, &QueryError{Stmt: query, Err: err}
		}
		if id.Valid && (latest == nil || id.Int64 > *latest) {
			v := id.Int64
			latest = &v
		}
	}
	return latest, nil
}

func (r *Reader) runTables(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Stmt: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &QueryError{Stmt: query, Err: err}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: query, Err: err}
	}
	return tables, nil
}
