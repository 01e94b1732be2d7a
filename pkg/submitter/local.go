package submitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/plasmalab/simtrack/pkg/runlog"
)

// Local runs jobs as child processes on the current host.
//
// Combined stdout/stderr is captured to the canonical run log in the job's
// destination directory, so the log parser sees the same file a batch
// scheduler would produce.
type Local struct{}

// NewLocal returns a host-local submitter.
func NewLocal() *Local {
	return &Local{}
}

// Launch starts the command and returns after it has successfully started.
func (l *Local) Launch(ctx context.Context, spec JobSpec) (*Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	command := strings.TrimSpace(spec.Command)
	if command == "" {
		return nil, errors.New("job command is required")
	}

	dir := strings.TrimSpace(spec.Dir)
	if dir == "" {
		return nil, errors.New("job destination dir is required")
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve destination dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}

	logFile, err := os.Create(filepath.Join(absDir, runlog.FileName))
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}

	cmd := exec.Command(command, spec.Args...)
	cmd.Dir = absDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), spec.Env...)

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("start run: %w", err)
	}

	handle := &Handle{
		JobID: uuid.New().String(),
		PID:   cmd.Process.Pid,
		wait: func() error {
			defer func() { _ = logFile.Close() }()
			return cmd.Wait()
		},
	}
	return handle, nil
}

// IsAlive reports whether the process exists.
func (l *Local) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 is supported on unix; it checks for existence without sending a signal.
	if err := p.Signal(os.Signal(syscall.Signal(0))); err != nil {
		return false
	}
	return true
}

// WaitUntilCompleted blocks until the job exits or the context is done.
func (l *Local) WaitUntilCompleted(ctx context.Context, handle *Handle) error {
	if handle == nil || handle.wait == nil {
		return errors.New("handle was not produced by this submitter")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan error, 1)
	go func() { done <- handle.wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
