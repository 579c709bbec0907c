package cmd

import (
	"fmt"
	"time"

	"iochunt/core"
	"iochunt/threat"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// huntRunOutput is the JSON shape of `hunt run`
type huntRunOutput struct {
	Job    *core.HuntJob    `json:"job"`
	Result *core.HuntResult `json:"result,omitempty"`
}

// huntShowOutput is the JSON shape of `hunt show`
type huntShowOutput struct {
	Job          *core.HuntJob `json:"job"`
	Matches      []*core.Match `json:"matches"`
	TotalMatches int64         `json:"total_matches"`
}

func newHuntCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Run and inspect hunt jobs",
	}
	cmd.AddCommand(newHuntRunCmd(g))
	cmd.AddCommand(newHuntShowCmd(g))
	return cmd
}

func newHuntRunCmd(g *globalFlags) *cobra.Command {
	var (
		org, name, description, createdBy string
		indicatorIDs                      []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a hunt job and execute it synchronously",
		Long: `Create a hunt job over the given indicators (default: every active indicator of
the organization), execute it and print the totals.`,
		Args: cobra.NoArgs,
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

			engine := app.Hunts.Engine
			job, err := engine.CreateHunt(ctx, org, &threat.CreateHuntRequest{
				Name:         name,
				Description:  description,
				IndicatorIDs: indicatorIDs,
				CreatedBy:    createdBy,
			})
			if err != nil {
				return fmt.Errorf("failed to create hunt: %w", err)
			}

			if !g.quiet && !g.outputJSON {
				infoColor.Fprintf(cmd.OutOrStdout(), "Hunting %d indicator(s) for %s\n", len(job.IndicatorIDs), org)
			}

			var s *spinner.Spinner
			if !g.outputJSON && !g.quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Searching endpoint inventory and logs..."
				s.Start()
			}

			result, runErr := engine.ExecuteHunt(ctx, org, job.ID, nil)

			if s != nil {
				s.Stop()
			}

			// Re-read for the terminal status and timestamps
			stored, err := app.Storage.Jobs.GetHuntJob(ctx, org, job.ID)
			if err != nil {
				stored = job
			}

			if g.outputJSON {
				if err := outputAsJSON(cmd.OutOrStdout(), huntRunOutput{Job: stored, Result: result}); err != nil {
					return err
				}
			} else {
				renderHuntSummary(cmd.OutOrStdout(), stored)
			}

			if runErr != nil {
				return fmt.Errorf("hunt %s failed: %w", job.ID, runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Hunt name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Hunt description")
	cmd.Flags().StringVar(&createdBy, "created-by", "cli", "Recorded as the hunt's creator")
	cmd.Flags().StringSliceVar(&indicatorIDs, "indicator", nil, "Indicator ID to hunt for (repeatable; default: all active)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newHuntShowCmd(g *globalFlags) *cobra.Command {
	var (
		org   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "show <hunt-id>",
		Short: "Show a hunt job and its matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := requireOrg(org)
			if err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			app, cleanup, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer cleanup()

			job, err := app.Storage.Jobs.GetHuntJob(ctx, org, args[0])
			if err != nil {
				return fmt.Errorf("failed to get hunt: %w", err)
			}
			matches, total, err := app.Storage.Matches.ListMatchesByJob(ctx, org, job.ID, &core.MatchFilters{Limit: limit})
			if err != nil {
				return fmt.Errorf("failed to list matches: %w", err)
			}

			if g.outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), huntShowOutput{Job: job, Matches: matches, TotalMatches: total})
			}
			renderHuntDetails(cmd.OutOrStdout(), job, matches, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum matches to print")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}
