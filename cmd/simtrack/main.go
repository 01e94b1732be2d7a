package main

import (
	"fmt"
	"os"

	"github.com/plasmalab/simtrack/internal/cmd"
	"github.com/plasmalab/simtrack/internal/observability"
)

var (
	// Version information (set via ldflags during build)
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	defer observability.Sync()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
