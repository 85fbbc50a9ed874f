package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/trafficsense/internal/session"
	"github.com/arin/trafficsense/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversational session with the TrafficSense assistant.
Replies stream in as they are generated.

Commands:
  /trace   request source-tracing prediction
  /decide  request decision suggestions
  /stats   show metrics for this session
  /log     print the conversation so far
  exit     end the session`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cs := newChatSession(cfg, os.Stderr, os.Stderr)
	return repl(cmd.Context(), os.Stdin, os.Stderr, cs)
}

// repl reads prompts from in until EOF or an exit command. Stream
// failures are shown by the renderer and do not end the session.
func repl(ctx context.Context, in io.Reader, out io.Writer, cs *chatSession) error {
	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	fmt.Fprintln(out)
	cyan.Fprintln(out, "  TrafficSense chat")
	dim.Fprintf(out, "  Session %s\n", cs.ctrl.ID())
	dim.Fprintf(out, "  Type /trace, /decide, /stats, /log or 'exit'.\n\n")
	ui.RenderTurns(out, cs.ctrl.Log().View())

	scanner := bufio.NewScanner(in)
	for {
		green.Fprint(out, "  you → ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "exit", "quit", "bye":
			dim.Fprintf(out, "\n  再见 👋\n\n")
			return nil
		case "/trace":
			_, _ = cs.run(ctx, session.ActionTrace)
		case "/decide":
			_, _ = cs.run(ctx, session.ActionDecision)
		case "/stats":
			printStats(out, cs.tracker.Summarize())
		case "/log":
			ui.RenderTurns(out, cs.ctrl.Log().View())
		default:
			_, _ = cs.submit(ctx, input)
		}
	}
	return scanner.Err()
}
