package submitter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plasmalab/simtrack/pkg/runlog"
)

func TestLocal_IsAlive(t *testing.T) {
	l := NewLocal()

	if !l.IsAlive(os.Getpid()) {
		t.Fatal("own pid reported dead")
	}
	if l.IsAlive(0) || l.IsAlive(-1) {
		t.Fatal("non-positive pids must report dead")
	}
	// Beyond any plausible pid_max.
	if l.IsAlive(1 << 30) {
		t.Fatal("implausible pid reported alive")
	}
}

func TestLocal_LaunchCapturesLog(t *testing.T) {
	l := NewLocal()
	dir := filepath.Join(t.TempDir(), "run_a")

	handle, err := l.Launch(context.Background(), JobSpec{
		Command: "sh",
		Args:    []string{"-c", "echo 'pid: 42'"},
		Dir:     dir,
	})
	if err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	if handle.PID <= 0 {
		t.Fatalf("handle pid = %d", handle.PID)
	}
	if handle.JobID == "" {
		t.Fatal("handle job id is empty")
	}

	if err := l.WaitUntilCompleted(context.Background(), handle); err != nil {
		t.Fatalf("WaitUntilCompleted() error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, runlog.FileName))
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(string(content), "pid: 42") {
		t.Fatalf("log content %q missing captured output", content)
	}
}

func TestLocal_LaunchValidation(t *testing.T) {
	l := NewLocal()

	if _, err := l.Launch(context.Background(), JobSpec{Dir: t.TempDir()}); err == nil {
		t.Fatal("empty command must fail")
	}
	if _, err := l.Launch(context.Background(), JobSpec{Command: "true"}); err == nil {
		t.Fatal("empty dir must fail")
	}
}

func TestLocal_WaitRejectsForeignHandle(t *testing.T) {
	l := NewLocal()
	if err := l.WaitUntilCompleted(context.Background(), &Handle{JobID: "x", PID: 1}); err == nil {
		t.Fatal("foreign handle must fail")
	}
}
