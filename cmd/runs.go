// -- cmd/runs.go --
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var runsLimit int

// runsCmd lists recent persisted runs; it requires a configured database.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent persisted runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context())

		if app.runs == nil {
			return errors.New("no database configured; set database.url or WAYFINDER_DATABASE_URL")
		}

		reports, err := app.runs.ListRecentRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		for _, r := range reports {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-18s  %2d steps  %s\n",
				r.ID, r.Status, r.StepsTaken, r.Goal)
		}
		return nil
	},
}

// runsShowCmd prints one run with its full execution trace.
var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run with its full step history.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context())

		if app.runs == nil {
			return errors.New("no database configured; set database.url or WAYFINDER_DATABASE_URL")
		}

		report, err := app.runs.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s: %s (%d steps)\nGoal: %s\n%s\n\n",
			report.ID, report.Status, report.StepsTaken, report.Goal, report.Summary)
		for _, r := range report.History {
			fmt.Fprintf(out, "  step %2d  %-12s  %-8s  %s\n",
				r.StepNumber, r.Decision.Action, r.Status, r.Details)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
