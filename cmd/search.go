package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd(g *globalFlags) *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "search <value>",
		Short: "Quick-search endpoints for a value without creating a hunt",
		Long:  "Classify the value, query every applicable source and print the hits. Nothing is stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := requireOrg(org)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			app, cleanup, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := app.Hunts.Searcher.QuickSearch(ctx, org, args[0])
			if err != nil {
				return fmt.Errorf("quick search failed: %w", err)
			}

			if g.outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), resp)
			}
			renderQuickSearch(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization ID (required)")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}
