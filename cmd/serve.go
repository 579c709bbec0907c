package cmd

import (
	"context"
	"fmt"

	"iochunt/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long:  "Start the REST API and hunt engine and block until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g)
		},
	}
}

// runServe initializes and starts the service, then shuts it down on signal.
func runServe(ctx context.Context, g *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.NewApp(ctx, g.configFile)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()
	return nil
}
