// -- cmd/run.go --
package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd executes a single goal end to end without the conversational
// approval step; invoking the command is the approval.
var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run one automation goal to completion and print the outcome.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal := strings.Join(args, " ")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := buildApplication(ctx)
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context())

		app.logger.Info("Running goal", zap.String("goal", goal))
		report, verdict := app.orch.RunGoal(ctx, goal, nil)

		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s (%d steps)\n", report.ID, report.Status, report.StepsTaken)
		fmt.Fprintln(cmd.OutOrStdout(), report.Summary)
		if verdict.Completed {
			fmt.Fprintf(cmd.OutOrStdout(), "Goal achieved: %s\n", verdict.Reason)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Goal incomplete (%d%%): %s\n", verdict.CompletionPct, verdict.Reason)
		if len(verdict.MissingSteps) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Still missing: %s\n", strings.Join(verdict.MissingSteps, "; "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
