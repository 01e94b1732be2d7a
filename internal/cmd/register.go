package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plasmalab/simtrack/internal/observability"
	"github.com/plasmalab/simtrack/pkg/fingerprint"
	"github.com/plasmalab/simtrack/pkg/params"
	"github.com/plasmalab/simtrack/pkg/runlog"
)

var registerCmd = &cobra.Command{
	Use:   "register <params-file>",
	Short: "Register a run or reuse an existing one",
	Long: `Register a parameter set in the run registry.

The parameter file is flattened into a fingerprint; if a run with the exact
same fingerprint already exists, its id is returned instead of creating a
duplicate row.

Examples:
  # Register a run without a log yet
  simtrack register params.yaml

  # Register with an explicit log file
  simtrack register params.yaml --log /data/run42/run.log.0

  # Locate the log inside the run's output directory
  simtrack register params.yaml --log-dir /data/run42`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("log", "", "Path to the run's log file")
	registerCmd.Flags().String("log-dir", "", "Directory to search for the run's log file")
	registerCmd.Flags().Bool("json", false, "Emit the result as JSON")
}

type registerResult struct {
	ID          int64  `json:"id"`
	Created     bool   `json:"created"`
	Fingerprint string `json:"fingerprint"`
	LogPath     string `json:"log_path,omitempty"`
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	set, err := params.Load(args[0])
	if err != nil {
		return fmt.Errorf("load parameters: %w", err)
	}
	fp, err := fingerprint.Encode(set)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}

	logPath, _ := cmd.Flags().GetString("log")
	if logPath == "" {
		if dir, _ := cmd.Flags().GetString("log-dir"); dir != "" {
			logPath = runlog.Locate(dir)
		}
	}

	reg, _, cleanup, err := openRegistry(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	id, created, err := reg.RegisterOrReuse(ctx, fp, logPath)
	if err != nil {
		return err
	}

	observability.CLILogger.Debug("run registered",
		zap.Int64("id", id),
		zap.Bool("created", created),
		zap.String("fingerprint", fp.Digest()))

	res := registerResult{ID: id, Created: created, Fingerprint: fp.Digest(), LogPath: logPath}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "RUN ID\tCREATED\tFINGERPRINT\n")
	fmt.Fprintf(w, "%d\t%t\t%s\n", res.ID, res.Created, res.Fingerprint)
	return w.Flush()
}
