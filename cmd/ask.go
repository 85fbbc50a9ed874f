package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/arin/trafficsense/internal/session"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask one question and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Request source-tracing prediction analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, session.ActionTrace)
	},
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Request decision suggestions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, session.ActionDecision)
	},
}

func runAsk(cmd *cobra.Command, args []string) error {
	cs := newChatSession(cfg, cmd.OutOrStdout(), os.Stderr)
	_, err := cs.submit(cmd.Context(), joinArgs(args))
	return err
}

func runAction(cmd *cobra.Command, a session.Action) error {
	cs := newChatSession(cfg, cmd.OutOrStdout(), os.Stderr)
	_, err := cs.run(cmd.Context(), a)
	return err
}
