package runlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const successLog = `Scheduler prologue
pid: 1190

Run started at  : Fri May  1 17:07:10 2020
Sim step 1
Sim step 2
Run finished at  : Fri May  1 17:07:14 2020
`

const failLog = `Scheduler prologue
pid: 1190

Run started at  : Fri May  1 17:07:10 2020
Error encountered
Run finished at  : Fri May  1 17:07:14 2020
`

func TestParse_SuccessLog(t *testing.T) {
	facts := Parse(successLog)

	if facts.PID == nil || *facts.PID != 1190 {
		t.Fatalf("pid = %v, want 1190", facts.PID)
	}
	if !facts.Started || !facts.Ended {
		t.Fatalf("started=%v ended=%v, want both true", facts.Started, facts.Ended)
	}
	if facts.Errored {
		t.Fatal("errored = true on a clean log")
	}

	wantStart := time.Date(2020, 5, 1, 17, 7, 10, 0, time.UTC)
	if facts.StartTime == nil || !facts.StartTime.Equal(wantStart) {
		t.Fatalf("start time = %v, want %v", facts.StartTime, wantStart)
	}
	wantEnd := time.Date(2020, 5, 1, 17, 7, 14, 0, time.UTC)
	if facts.EndTime == nil || !facts.EndTime.Equal(wantEnd) {
		t.Fatalf("end time = %v, want %v", facts.EndTime, wantEnd)
	}
}

func TestParse_FailLog(t *testing.T) {
	facts := Parse(failLog)
	if !facts.Errored {
		t.Fatal("errored = false, want true")
	}
}

func TestParse_ErrorBeforeStartIgnored(t *testing.T) {
	facts := Parse("Traceback\npid: 12\nRun started at  : Fri May  1 17:07:10 2020\n")
	if facts.Errored {
		t.Fatal("prologue errors must not count as run errors")
	}
	if !facts.Started {
		t.Fatal("started = false, want true")
	}
}

func TestParse_PrefixesOfSuccessLog(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pid     bool
		started bool
		ended   bool
	}{
		{"empty", "", false, false, false},
		{"prologue only", "Scheduler prologue\n", false, false, false},
		{"pid only", "Scheduler prologue\npid: 10\n", true, false, false},
		{"started", "pid: 10\nRun started at  : Fri May  1 17:07:10 2020\n", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := Parse(tt.content)
			if (facts.PID != nil) != tt.pid {
				t.Fatalf("pid presence = %v, want %v", facts.PID != nil, tt.pid)
			}
			if facts.Started != tt.started || facts.Ended != tt.ended {
				t.Fatalf("started=%v ended=%v, want %v %v", facts.Started, facts.Ended, tt.started, tt.ended)
			}
		})
	}
}

func TestParse_BareMarkersWithoutTime(t *testing.T) {
	facts := Parse("pid: 10\nRun started at\nSim step 1\nRun finished at\n")

	if !facts.Started {
		t.Fatal("a start marker without a time field still counts as started")
	}
	if !facts.Ended {
		t.Fatal("an end marker without a time field still counts as ended")
	}
	if facts.StartTime != nil || facts.EndTime != nil {
		t.Fatalf("times = %v / %v, want nil for bare markers", facts.StartTime, facts.EndTime)
	}
}

func TestParse_MalformedMarkersDegradeToAbsent(t *testing.T) {
	facts := Parse("pid: not-a-number\nRun started at  : garbage-time\n")
	if facts.PID != nil {
		t.Fatalf("pid = %v, want nil for malformed pid line", facts.PID)
	}
	if !facts.Started {
		t.Fatal("a start marker with an unparseable time still counts as started")
	}
	if facts.StartTime != nil {
		t.Fatalf("start time = %v, want nil", facts.StartTime)
	}
}

func TestReadFacts_MissingFile(t *testing.T) {
	facts, err := ReadFacts(filepath.Join(t.TempDir(), "absent", FileName))
	if err != nil {
		t.Fatalf("ReadFacts() error: %v", err)
	}
	if facts.PID != nil || facts.Started || facts.Ended || facts.Errored {
		t.Fatalf("missing log must yield zero facts, got %+v", facts)
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()

	// No file at all: canonical path is still returned.
	if got := Locate(dir); got != filepath.Join(dir, FileName) {
		t.Fatalf("Locate() = %s, want canonical path", got)
	}

	// A renamed scheduler log is picked up by glob.
	renamed := filepath.Join(dir, "sim42.log.0")
	if err := os.WriteFile(renamed, []byte("pid: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Locate(dir); got != renamed {
		t.Fatalf("Locate() = %s, want %s", got, renamed)
	}

	// The canonical name wins over renamed logs.
	canonical := filepath.Join(dir, FileName)
	if err := os.WriteFile(canonical, []byte("pid: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Locate(dir); got != canonical {
		t.Fatalf("Locate() = %s, want %s", got, canonical)
	}
}
