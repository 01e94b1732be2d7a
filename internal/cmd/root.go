package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/plasmalab/simtrack/internal/config"
	"github.com/plasmalab/simtrack/internal/observability"
	"github.com/plasmalab/simtrack/pkg/registry"
	"github.com/plasmalab/simtrack/pkg/runstore"
	"github.com/plasmalab/simtrack/pkg/submitter"
)

// versionInfo carries build identity injected at link time via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records the build identity for the version template and the
// /version endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "simtrack",
	Short: "Run registry and status reconciliation for long-running simulations",
	Long: `simtrack tracks long-running simulation jobs in a SQLite registry.

Each run is identified by the fingerprint of its full parameter set: the same
parameters always map to the same run id, so re-submitting a configuration
reuses the existing run instead of launching a duplicate. Status is never
pushed by the jobs themselves; it is reconciled on demand from the run's log
markers and the liveness of the recorded pid.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database file path (overrides configuration)")
	rootCmd.PersistentFlags().String("table", "", "Run table name (overrides configuration)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig resolves configuration, applies flag overrides, and initializes
// logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, err
	}

	if table, _ := cmd.Flags().GetString("table"); table != "" {
		cfg.Database.Table = table
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := observability.Init(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, nil
}

// openRegistry opens the configured store and builds the registry over it.
// The returned cleanup closes the store.
func openRegistry(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*registry.Registry, *runstore.Connector, func(), error) {
	path := cfg.Database.Path()
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		path = db
	}

	conn, err := runstore.Open(ctx, runstore.Config{Path: path})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open registry store: %w", err)
	}

	reg := registry.New(conn, submitter.NewLocal(), registry.Options{
		Table:         cfg.Database.Table,
		PollInterval:  cfg.Poll.Interval,
		MaxStatusRate: rate.Limit(cfg.Poll.MaxStatusRate),
	})
	return reg, conn, func() { _ = conn.Close() }, nil
}
