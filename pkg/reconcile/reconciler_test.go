package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plasmalab/simtrack/pkg/fingerprint"
	"github.com/plasmalab/simtrack/pkg/runlog"
	"github.com/plasmalab/simtrack/pkg/runstore"
)

const (
	pidOnlyLog = "Scheduler prologue\npid: 1190\n"

	startedLog = `Scheduler prologue
pid: 1190

Run started at  : Fri May  1 17:07:10 2020
Sim step 1
`

	finishedLog = startedLog + "Run finished at  : Fri May  1 17:07:14 2020\n"

	erroredLog = startedLog + "Error encountered\nRun finished at  : Fri May  1 17:07:14 2020\n"
)

type fakeLiveness struct {
	alive map[int]bool
}

func (f fakeLiveness) IsAlive(pid int) bool {
	return f.alive[pid]
}

type harness struct {
	conn    *runstore.Connector
	runID   int64
	logPath string
}

// newHarness registers a single run whose log path points into a temp dir.
// Tests control the run's observed world by writing (or not writing) the log.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	conn, err := runstore.Open(ctx, runstore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	fp, err := fingerprint.Encode(map[string]map[string]any{"mesh": {"nx": 64}})
	require.NoError(t, err)
	require.NoError(t, conn.CreateRunTable(ctx, "run", fp))

	logPath := filepath.Join(t.TempDir(), runlog.FileName)
	runID, _, err := conn.FindOrCreateRun(ctx, "run", fp, logPath)
	require.NoError(t, err)

	return &harness{conn: conn, runID: runID, logPath: logPath}
}

func (h *harness) writeLog(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.logPath, []byte(content), 0o644))
}

func (h *harness) record(t *testing.T) *runstore.RunRecord {
	t.Helper()
	rec, err := h.conn.GetRun(context.Background(), "run", h.runID)
	require.NoError(t, err)
	return rec
}

func TestReconcile_NoLogFileStaysSubmitted(t *testing.T) {
	h := newHarness(t)
	r := New(h.conn, "run", fakeLiveness{})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusSubmitted, status)
	assert.Equal(t, runstore.StatusSubmitted, h.record(t).Status)
}

func TestReconcile_LogWithoutPIDStaysSubmitted(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, "Scheduler prologue\n")
	r := New(h.conn, "run", fakeLiveness{})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusSubmitted, status)
}

func TestReconcile_LiveProcessRuns(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, startedLog)
	r := New(h.conn, "run", fakeLiveness{alive: map[int]bool{1190: true}})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusRunning, status)

	rec := h.record(t)
	assert.Equal(t, runstore.StatusRunning, rec.Status)
	require.NotNil(t, rec.PID)
	assert.Equal(t, 1190, *rec.PID)
	require.NotNil(t, rec.StartedAt, "first transition into running must persist start_time")
	assert.True(t, rec.StartedAt.Equal(time.Date(2020, 5, 1, 17, 7, 10, 0, time.UTC)))
	assert.Nil(t, rec.EndedAt)
}

func TestReconcile_DeadProcessIsCrash(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, startedLog)
	r := New(h.conn, "run", fakeLiveness{alive: map[int]bool{}})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusError, status)
	assert.Equal(t, runstore.StatusError, h.record(t).Status)
}

func TestReconcile_DeadProcessBeforeStartIsCrash(t *testing.T) {
	// A dead process can never reach started, so rule 5 fires on a
	// pid-only log just the same.
	h := newHarness(t)
	h.writeLog(t, pidOnlyLog)
	r := New(h.conn, "run", fakeLiveness{alive: map[int]bool{}})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusError, status)
}

func TestReconcile_EndMarkerCompletes(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, finishedLog)
	// Liveness must not matter once the end marker is present.
	r := New(h.conn, "run", fakeLiveness{alive: map[int]bool{1190: true}})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusComplete, status)

	rec := h.record(t)
	require.NotNil(t, rec.EndedAt)
	assert.True(t, rec.EndedAt.Equal(time.Date(2020, 5, 1, 17, 7, 14, 0, time.UTC)))
}

func TestReconcile_ErrorMarkerAfterStart(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, erroredLog)
	r := New(h.conn, "run", fakeLiveness{})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusError, status)

	rec := h.record(t)
	assert.NotNil(t, rec.EndedAt)
}

func TestReconcile_TerminalIsSticky(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, finishedLog)
	r := New(h.conn, "run", fakeLiveness{})

	status, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	require.Equal(t, runstore.StatusComplete, status)

	// Rewriting the log to a crashed shape must not resurrect the run: a
	// terminal pass never re-reads the log.
	h.writeLog(t, startedLog)
	status, err = r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusComplete, status)
}

func TestReconcile_IdempotentWithoutChange(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, startedLog)
	r := New(h.conn, "run", fakeLiveness{alive: map[int]bool{1190: true}})

	first, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	before := h.record(t)

	second, err := r.Reconcile(context.Background(), h.runID)
	require.NoError(t, err)
	after := h.record(t)

	assert.Equal(t, first, second)
	// No additional write settles: the stored row is byte-for-byte stable.
	assert.Equal(t, before, after)
}

func TestReconcile_WriteBackFailureKeepsComputedStatus(t *testing.T) {
	h := newHarness(t)
	h.writeLog(t, startedLog)
	ctx := context.Background()

	// Reject every UPDATE on the run table while counting the attempts.
	// RAISE(FAIL) keeps the trigger's insert, so the counter survives the
	// failed statement.
	_, err := h.conn.Execute(ctx,
		"CREATE TABLE update_attempts (id INTEGER PRIMARY KEY AUTOINCREMENT)")
	require.NoError(t, err)
	_, err = h.conn.Execute(ctx, `CREATE TRIGGER freeze_run BEFORE UPDATE ON run
		BEGIN
			INSERT INTO update_attempts (id) VALUES (NULL);
			SELECT RAISE(FAIL, 'registry frozen');
		END`)
	require.NoError(t, err)

	r := New(h.conn, "run", fakeLiveness{alive: map[int]bool{1190: true}})

	status, err := r.Reconcile(ctx, h.runID)
	require.Error(t, err)

	var recErr *ReconciliationError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, h.runID, recErr.RunID)
	assert.Equal(t, runstore.StatusRunning, recErr.Status)
	// The computed status is still handed back alongside the error.
	assert.Equal(t, runstore.StatusRunning, status)

	// The stored row was never touched.
	assert.Equal(t, runstore.StatusSubmitted, h.record(t).Status)

	// The write-back was retried exactly once.
	result, err := h.conn.Reader().Query(ctx, "SELECT COUNT(*) FROM update_attempts")
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Rows[0][0])
}

func TestReconciliationError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &ReconciliationError{RunID: 3, Status: runstore.StatusRunning, Err: cause}

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "running")
}
