package runlog

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the canonical log file name written by rank 0 of a run.
const FileName = "run.log.0"

// Locate resolves the expected log file under a run's destination directory.
//
// The canonical name is preferred. If it is absent, any "*.log.0" file is
// accepted (batch schedulers occasionally rename logs), picking the first in
// lexical order for determinism. The returned path may not exist: callers
// treat a missing log as "not yet started".
func Locate(dir string) string {
	canonical := filepath.Join(dir, FileName)
	if _, err := os.Stat(canonical); err == nil {
		return canonical
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "*.log.0"))
	if err != nil || len(matches) == 0 {
		return canonical
	}
	sort.Strings(matches)
	return matches[0]
}
