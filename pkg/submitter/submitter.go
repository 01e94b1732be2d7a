package submitter

import "context"

// JobSpec describes one external run to launch.
type JobSpec struct {
	// Command and Args form the argv of the run.
	Command string
	Args    []string

	// Dir is the run's destination directory. The process runs there and
	// its combined output is captured to the run log inside it.
	Dir string

	// Env is appended to the inherited environment.
	Env []string
}

// Handle identifies a launched job.
type Handle struct {
	// JobID is a stable submitter-assigned identifier.
	JobID string

	// PID is the OS process id observed at launch.
	PID int

	wait func() error
}

// Submitter abstracts the scheduler or process backend that actually owns
// run execution. The reconciliation engine calls only IsAlive; launching and
// waiting belong to the submission path.
type Submitter interface {
	// Launch starts a run and returns once the process has started.
	Launch(ctx context.Context, spec JobSpec) (*Handle, error)

	// IsAlive reports whether the OS process with the given pid exists.
	IsAlive(pid int) bool

	// WaitUntilCompleted blocks until the launched job exits or ctx is done.
	WaitUntilCompleted(ctx context.Context, handle *Handle) error
}
