package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/plasmalab/simtrack/pkg/fingerprint"
	"github.com/plasmalab/simtrack/pkg/reconcile"
	"github.com/plasmalab/simtrack/pkg/runstore"
)

const (
	defaultTable        = "run"
	defaultPollInterval = 5 * time.Second
)

// Options tune a Registry.
type Options struct {
	// Table is the run table this registry tracks (one table per tracked
	// entity kind). Defaults to "run".
	Table string

	// PollInterval is the fixed interval of AwaitTerminal's polling loop.
	// Defaults to 5s.
	PollInterval time.Duration

	// MaxStatusRate bounds registry-wide reconciliation passes per second
	// when many runs are watched concurrently. Zero means unbounded.
	MaxStatusRate rate.Limit
}

// Registry is the façade other subsystems call: registration with
// deduplication, one-shot status reconciliation, terminal-status waiting,
// and the read-only query surface.
type Registry struct {
	conn       *runstore.Connector
	reconciler *reconcile.Reconciler
	table      string
	interval   time.Duration
	limiter    *rate.Limiter
}

// New builds a Registry over an open store. The liveness check is the only
// part of the Submitter the registry's engine touches.
func New(conn *runstore.Connector, alive reconcile.Liveness, opts Options) *Registry {
	table := opts.Table
	if table == "" {
		table = defaultTable
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var limiter *rate.Limiter
	if opts.MaxStatusRate > 0 {
		limiter = rate.NewLimiter(opts.MaxStatusRate, 1)
	}

	return &Registry{
		conn:       conn,
		reconciler: reconcile.New(conn, table, alive),
		table:      table,
		interval:   interval,
		limiter:    limiter,
	}
}

// Table returns the run table this registry tracks.
func (r *Registry) Table() string {
	return r.table
}

// RegisterOrReuse maps a fingerprint to a run id, creating the run table on
// first use and inserting a new submitted row only when no exact match
// exists. Calling it twice with the same fingerprint returns the same id
// both times; concurrent callers with identical fingerprints observe exactly
// one row. The second return reports whether this call created the row.
func (r *Registry) RegisterOrReuse(ctx context.Context, fp fingerprint.Fingerprint, logPath string) (int64, bool, error) {
	if err := r.conn.CreateRunTable(ctx, r.table, fp); err != nil {
		return 0, false, err
	}
	id, created, err := r.conn.FindOrCreateRun(ctx, r.table, fp, logPath)
	if err != nil {
		return 0, false, fmt.Errorf("register run: %w", err)
	}
	return id, created, nil
}

// Status triggers one reconciliation pass and returns the result.
//
// When the pass computes a status but fails to persist it, the computed
// status is returned together with a *reconcile.ReconciliationError so
// callers still see the best-known truth.
func (r *Registry) Status(ctx context.Context, runID int64) (runstore.Status, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return r.reconciler.Reconcile(ctx, runID)
}

// AwaitTerminal polls at a fixed interval until the run reaches a terminal
// status or ctx is done. Overall job cancellation and timeouts belong to the
// caller's context (typically delegated to the Submitter's wait).
//
// A persistence failure on the final pass is returned alongside the terminal
// status; transient persistence failures on earlier passes do not stop the
// loop.
func (r *Registry) AwaitTerminal(ctx context.Context, runID int64) (runstore.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		status, err := r.Status(ctx, runID)
		if err != nil {
			var recErr *reconcile.ReconciliationError
			if !errors.As(err, &recErr) {
				return status, err
			}
			// The computed status is still authoritative; keep going unless
			// it is terminal.
			if status.Terminal() {
				return status, err
			}
		} else if status.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Query exposes the arbitrary read-only SQL surface.
func (r *Registry) Query(ctx context.Context, query string, args ...any) (*runstore.Result, error) {
	return r.conn.Reader().Query(ctx, query, args...)
}

// TablesCreated reports whether the registry schema exists yet.
func (r *Registry) TablesCreated(ctx context.Context) bool {
	return r.conn.Reader().TablesCreated(ctx)
}

// GetEntryID returns the id of the row exactly matching values, or nil.
func (r *Registry) GetEntryID(ctx context.Context, table string, values map[string]any) (*int64, error) {
	return r.conn.Reader().GetEntryID(ctx, table, values)
}

// GetLatestRowID returns the most recently assigned run id, or nil on an
// empty registry.
func (r *Registry) GetLatestRowID(ctx context.Context) (*int64, error) {
	return r.conn.Reader().GetLatestRowID(ctx, "")
}

// GetRun returns the bookkeeping record of a run without reconciling it.
func (r *Registry) GetRun(ctx context.Context, runID int64) (*runstore.RunRecord, error) {
	return r.conn.Reader().GetRun(ctx, r.table, runID)
}
