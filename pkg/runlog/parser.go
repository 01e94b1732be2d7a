package runlog

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Facts are the structured lifecycle facts recovered from a run's log file.
//
// Facts are derived, never persisted: they are recomputed from the current
// log content on every reconciliation pass. The log is append-only, so a
// later pass simply sees a longer prefix.
type Facts struct {
	// PID is the process id declared in the log, if any.
	PID *int

	// Started reports that the initialization-complete marker is present.
	Started bool

	// Ended reports that the normal-termination marker is present.
	Ended bool

	// Errored reports an error marker appearing after initialization.
	Errored bool

	// StartTime and EndTime are the timestamps captured from the start and
	// end markers, when parseable. A marker with an unparseable time still
	// sets the corresponding flag.
	StartTime *time.Time
	EndTime   *time.Time
}

// The start and end markers are recognized by their bare prefix; the
// timestamp after the colon is optional bonus information.
var (
	pidPattern     = regexp.MustCompile(`(?m)^pid\s*:\s*(\d+)\s*$`)
	startedPattern = regexp.MustCompile(`(?m)^Run started at\s*(?::\s*(.*))?$`)
	endedPattern   = regexp.MustCompile(`(?m)^Run finished at\s*(?::\s*(.*))?$`)
	errorPattern   = regexp.MustCompile(`(?m)^(Error encountered|Traceback)`)
)

// Log timestamp layouts in observed order of likelihood. The second form has
// been seen on CentOS locales.
var timeLayouts = []string{
	time.ANSIC,
	"Mon 02 Jan 2006 15:04:05 PM MST",
}

// Parse extracts Facts from log content.
//
// Each marker is recognized independently in a single scan. Malformed marker
// content (for example a pid line that is not an integer) degrades to
// "marker absent" rather than an error.
func Parse(content string) Facts {
	var facts Facts

	if m := pidPattern.FindStringSubmatch(content); m != nil {
		if pid, err := strconv.Atoi(m[1]); err == nil {
			facts.PID = &pid
		}
	}

	startLoc := startedPattern.FindStringSubmatchIndex(content)
	if startLoc != nil {
		facts.Started = true
		if startLoc[2] >= 0 {
			facts.StartTime = parseMarkerTime(content[startLoc[2]:startLoc[3]])
		}
	}

	if m := endedPattern.FindStringSubmatch(content); m != nil {
		facts.Ended = true
		facts.EndTime = parseMarkerTime(m[1])
	}

	// An error marker only counts after initialization: anything earlier is
	// scheduler prologue noise.
	if startLoc != nil && errorPattern.MatchString(content[startLoc[1]:]) {
		facts.Errored = true
	}

	return facts
}

// ReadFacts reads the log at path and parses it.
//
// A missing log file is a distinct, valid input (the scheduler has not
// started the process yet) and yields zero Facts with a nil error. The
// content is read in a single call so one pass never mixes two snapshots.
func ReadFacts(path string) (Facts, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Facts{}, nil
		}
		return Facts{}, err
	}
	return Parse(string(content)), nil
}

func parseMarkerTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
