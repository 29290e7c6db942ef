package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlink/internal/app"
)

// ServeCmd runs the HTTP API until interrupted.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the short-link HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	RootCmd.AddCommand(ServeCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := app.NewWithConfig(ctx, Cfg, Logger)
	if err != nil {
		return err
	}

	serveErr := a.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), Cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		Logger.Error("shutdown failed", "error", err)
	}
	return serveErr
}
