package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plasmalab/simtrack/internal/observability"
)

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Poll a run until it reaches a terminal status",
	Long: `Poll a registered run at a fixed interval until it completes or errors.

The exit is driven by the run reaching a terminal status (complete or error)
or by --timeout elapsing. Transient persistence failures do not stop the
loop.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 0, "Polling interval (overrides configuration)")
	watchCmd.Flags().Duration("timeout", 0, "Give up after this duration (0 = wait forever)")
	watchCmd.Flags().Float64("max-status-rate", 0, "Cap reconciliation passes per second (overrides configuration)")
	watchCmd.Flags().Bool("json", false, "Emit the result as JSON")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("run id must be an integer, got %q", args[0])
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
		cfg.Poll.Interval = interval
	}
	if maxRate, _ := cmd.Flags().GetFloat64("max-status-rate"); maxRate > 0 {
		cfg.Poll.MaxStatusRate = maxRate
	}

	reg, _, cleanup, err := openRegistry(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	observability.CLILogger.Info("watching run",
		zap.Int64("id", runID),
		zap.Duration("interval", cfg.Poll.Interval))

	status, err := reg.AwaitTerminal(ctx, runID)
	if err != nil {
		return fmt.Errorf("watch run %d: %w (last status %s)", runID, err, status)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"id":     runID,
			"status": string(status),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %d finished with status %s\n", runID, status)
	return nil
}
