package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Connector owns the single writable connection to the run registry.
//
// All mutations (Execute, InsertRun, FindOrCreateRun, UpdateStatus) are
// serialized through one process-wide write lock; the same lock spans the
// check-then-insert sequence of run registration, which is the one place a
// read and a write must be atomic together. Readers obtained via Reader()
// proceed concurrently with each other and with the writer.
//
// The database path is fixed at Open time. Pointing an existing Connector at
// a different location fails with ErrAccessViolation: silently rebinding the
// handle would let two registries interleave writes.
type Connector struct {
	db   *sql.DB
	path string

	// writeMu serializes all mutating statements, and spans the existence
	// check inside run registration.
	writeMu sync.Mutex
}

// Open opens (and creates if needed) a SQLite-backed run registry.
//
// Local file paths are created if parent directories do not exist. WAL and
// busy_timeout are applied for predictable behavior with concurrent readers.
func Open(ctx context.Context, cfg Config) (*Connector, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping run store: %w", err)
	}

	if err := configureSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Connector{db: db, path: cfg.Path}, nil
}

// Close releases the underlying connection.
func (c *Connector) Close() error {
	return c.db.Close()
}

// Ping verifies the registry is reachable. Used by health checks.
func (c *Connector) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.db.PingContext(ctx)
}

// Path returns the storage location fixed at Open time.
func (c *Connector) Path() string {
	return c.path
}

// Rebind rejects any attempt to point the connector at a new location.
func (c *Connector) Rebind(path string) error {
	return fmt.Errorf("%w: store path is fixed at open time (currently %s)", ErrAccessViolation, c.path)
}

// Reader returns the read-only capability over the same registry.
func (c *Connector) Reader() *Reader {
	return &Reader{db: c.db}
}

// Execute runs a single mutating statement and returns the affected row
// count. Failures are surfaced as a *QueryError with prior state untouched:
// a failed statement commits nothing.
func (c *Connector) Execute(ctx context.Context, stmt string, args ...any) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, &QueryError{Stmt: stmt, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &QueryError{Stmt: stmt, Err: err}
	}
	return affected, nil
}
