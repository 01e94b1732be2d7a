package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plasmalab/simtrack/internal/observability"
	"github.com/plasmalab/simtrack/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registry's read-only HTTP surface",
	Long: `Start an HTTP server exposing the registry: /health, /version,
GET /api/runs, and GET /api/runs/{id} (which reconciles the run before
responding). The server never accepts writes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Listen host (overrides configuration)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides configuration)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, conn, cleanup, err := openRegistry(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(cfg.Server.Host, cfg.Server.Port, reg, conn, versionInfo.Version)
	observability.CLILogger.Info("starting server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", srv.Port()),
		zap.String("db", conn.Path()))

	if err := srv.Start(ctx); err != nil {
		return err
	}
	observability.CLILogger.Info("server stopped")
	return nil
}
