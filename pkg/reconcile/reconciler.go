package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/plasmalab/simtrack/pkg/runlog"
	"github.com/plasmalab/simtrack/pkg/runstore"
)

// Liveness asks the OS (or scheduler) whether a process id currently exists.
// The submitter implementations satisfy this.
type Liveness interface {
	IsAlive(pid int) bool
}

// ReconciliationError reports that a status was computed but could not be
// persisted. The computed status is still valid: a caller's read succeeds
// even when the write-back does not.
type ReconciliationError struct {
	RunID  int64
	Status runstore.Status
	Err    error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("run %d: computed status %q but write-back failed: %v", e.RunID, e.Status, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// Reconciler combines recorded run state, log facts and process liveness
// into an authoritative status, writing updates back through the store.
type Reconciler struct {
	store *runstore.Connector
	table string
	alive Liveness

	// now is swappable for tests.
	now func() time.Time
}

// New returns a Reconciler for one run table.
func New(store *runstore.Connector, table string, alive Liveness) *Reconciler {
	return &Reconciler{store: store, table: table, alive: alive, now: time.Now}
}

// Reconcile performs one reconciliation pass for a run and returns the
// authoritative status.
//
// A terminal run is returned as-is without re-reading the log or re-checking
// liveness: terminal statuses are sticky, and a pid recycled by the OS to an
// unrelated process must never resurrect a finished run.
//
// Otherwise the decision is, in order:
//
//  1. no log file                         -> submitted
//  2. log exists, no pid declared         -> submitted
//  3. pid declared, end marker present    -> complete, or error if an error
//     marker follows initialization
//  4. pid declared, no end marker, alive  -> running
//  5. pid declared, no end marker, dead   -> error (crash: the process
//     vanished without a termination marker, even if it never initialized)
//
// If persisting a changed status fails, the write is retried once; a second
// failure is surfaced as *ReconciliationError alongside the computed status.
func (r *Reconciler) Reconcile(ctx context.Context, runID int64) (runstore.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rec, err := r.store.Reader().GetRun(ctx, r.table, runID)
	if err != nil {
		return "", err
	}

	if rec.Status.Terminal() {
		return rec.Status, nil
	}

	facts := r.readFacts(rec)
	status, update := r.decide(rec, facts)

	if update == nil {
		return status, nil
	}

	if err := r.persist(ctx, runID, *update); err != nil {
		return status, &ReconciliationError{RunID: runID, Status: status, Err: err}
	}
	return status, nil
}

func (r *Reconciler) readFacts(rec *runstore.RunRecord) runlog.Facts {
	if rec.LogPath == nil || *rec.LogPath == "" {
		return runlog.Facts{}
	}
	// Read failures degrade to "no facts" so a transient filesystem hiccup
	// reports submitted rather than failing the status check.
	facts, err := runlog.ReadFacts(*rec.LogPath)
	if err != nil {
		return runlog.Facts{}
	}
	return facts
}

// decide computes the new status and the fields worth persisting. A nil
// update means the stored row already reflects the truth and no write is
// needed, which keeps repeated reconciliation of an unchanged run write-free.
func (r *Reconciler) decide(rec *runstore.RunRecord, facts runlog.Facts) (runstore.Status, *runstore.StatusUpdate) {
	if facts.PID == nil {
		// Rules 1 and 2: nothing, or only scheduler prologue, has run yet.
		return runstore.StatusSubmitted, nil
	}

	update := runstore.StatusUpdate{}
	changed := false

	if rec.PID == nil || *rec.PID != *facts.PID {
		update.PID = facts.PID
		changed = true
	}
	if rec.StartedAt == nil && facts.Started {
		startedAt := r.now().UTC()
		if facts.StartTime != nil {
			startedAt = *facts.StartTime
		}
		update.StartedAt = &startedAt
		changed = true
	}

	var status runstore.Status
	switch {
	case facts.Ended:
		// Rule 3: the run wrote a termination marker.
		status = runstore.StatusComplete
		if facts.Errored {
			status = runstore.StatusError
		}
		if rec.EndedAt == nil {
			endedAt := r.now().UTC()
			if facts.EndTime != nil {
				endedAt = *facts.EndTime
			}
			update.EndedAt = &endedAt
			changed = true
		}
	case r.alive.IsAlive(*facts.PID):
		// Rule 4.
		status = runstore.StatusRunning
	default:
		// Rule 5: the process vanished without a termination marker. This
		// fires even if initialization never completed; a dead process can
		// never reach started.
		status = runstore.StatusError
	}

	if status != rec.Status {
		changed = true
	}
	if !changed {
		return status, nil
	}

	update.Status = status
	return status, &update
}

func (r *Reconciler) persist(ctx context.Context, runID int64, update runstore.StatusUpdate) error {
	err := r.store.UpdateStatus(ctx, r.table, runID, update)
	if err == nil {
		return nil
	}
	// One retry covers transient lock contention with external readers.
	return r.store.UpdateStatus(ctx, r.table, runID, update)
}
