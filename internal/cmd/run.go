package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plasmalab/simtrack/internal/observability"
	"github.com/plasmalab/simtrack/pkg/fingerprint"
	"github.com/plasmalab/simtrack/pkg/params"
	"github.com/plasmalab/simtrack/pkg/runlog"
	"github.com/plasmalab/simtrack/pkg/submitter"
)

var runCmd = &cobra.Command{
	Use:   "run <params-file> -- <command> [args...]",
	Short: "Register, launch, and watch a run to completion",
	Long: `Register a parameter set, launch its process locally, and poll until the
run reaches a terminal status.

The process's combined output is captured to ` + runlog.FileName + ` inside
the run directory, which is also where status reconciliation reads the run's
markers from. If the same parameters were already run to completion, the
existing run id and its terminal status are returned without launching
anything.

Examples:
  simtrack run params.yaml --dir /data/run42 -- ./simulate --steps 10000`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("dir", "", "Run directory for the process and its log (default: a new temp dir)")
	runCmd.Flags().Bool("json", false, "Emit the result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir, err = os.MkdirTemp("", "simtrack-run-")
		if err != nil {
			return fmt.Errorf("create run directory: %w", err)
		}
	}
	logPath := runlog.Locate(dir)

	reg, _, cleanup, err := openRegistry(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	id, created, err := reg.RegisterOrReuse(ctx, fp, logPath)
	if err != nil {
		return err
	}

	if !created {
		rec, err := reg.GetRun(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status.Terminal() {
			observability.CLILogger.Info("parameters already ran to completion",
				zap.Int64("id", id), zap.String("status", string(rec.Status)))
			return emitRunResult(cmd, id, string(rec.Status), false)
		}
	}

	local := submitter.NewLocal()
	handle, err := local.Launch(ctx, submitter.JobSpec{
		Command: args[1],
		Args:    args[2:],
		Dir:     dir,
	})
	if err != nil {
		return fmt.Errorf("launch run %d: %w", id, err)
	}
	observability.CLILogger.Info("run launched",
		zap.Int64("id", id),
		zap.Int("pid", handle.PID),
		zap.String("dir", dir))

	// Process exit bounds the wait; the registry decides the final status
	// from the log.
	if err := local.WaitUntilCompleted(ctx, handle); err != nil {
		observability.CLILogger.Warn("process wait ended with error",
			zap.Int64("id", id), zap.Error(err))
	}

	// The process is gone, so a single pass settles the status: the log's
	// markers decide between complete and error, and a log that never
	// declared a pid leaves the run submitted.
	status, err := reg.Status(ctx, id)
	if err != nil {
		return fmt.Errorf("reconcile run %d: %w", id, err)
	}
	return emitRunResult(cmd, id, string(status), created)
}

func emitRunResult(cmd *cobra.Command, id int64, status string, created bool) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"id":      id,
			"status":  status,
			"created": created,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %d finished with status %s\n", id, status)
	return nil
}
