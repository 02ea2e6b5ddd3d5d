// -- cmd/chat.go --
package cmd

import (
	"bufio"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// chatCmd starts the interactive conversational surface: plain questions get
// chat answers, automation requests get a plan that must be approved before
// the browser moves.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session with the agent.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := buildApplication(ctx)
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context())

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "wayfinder ready. Type a request, or /quit to exit.")

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" || line == "/exit" {
				break
			}
			if ctx.Err() != nil {
				break
			}

			reply, err := app.orch.HandleMessage(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, reply)
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
