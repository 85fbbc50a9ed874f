package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"

	"github.com/arin/trafficsense/internal/config"
	"github.com/arin/trafficsense/internal/session"
	"github.com/arin/trafficsense/internal/stats"
	"github.com/arin/trafficsense/internal/stream"
	"github.com/arin/trafficsense/internal/ui"
)

// chatSession bundles a controller with the listeners attached to it.
type chatSession struct {
	ctrl    *session.Controller
	tracker *stats.Tracker
}

// newChatSession connects to c.Endpoint and renders replies to out. When
// spinnerW is non-nil a spinner runs there until the first fragment.
func newChatSession(c *config.Config, out, spinnerW io.Writer) *chatSession {
	id := uuid.NewString()
	logger := slog.Default()

	client := stream.NewClient(c.Endpoint, c.RequestTimeout(),
		stream.WithSessionID(id),
		stream.WithLogger(logger),
	)

	var opts []ui.RendererOption
	if spinnerW != nil {
		opts = append(opts, ui.WithSpinner(spinnerW))
	}
	tracker := stats.NewTracker()
	ctrl := session.New(session.FromClient(client),
		session.WithID(id),
		session.WithLogger(logger),
		session.WithListener(ui.NewChatRenderer(out, opts...)),
		session.WithListener(tracker),
	)
	return &chatSession{ctrl: ctrl, tracker: tracker}
}

// interruptible returns a context cancelled by Ctrl-C, so an interrupt
// aborts the reply in flight instead of the process.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

func (s *chatSession) submit(ctx context.Context, prompt string) (bool, error) {
	ctx, stop := interruptible(ctx)
	defer stop()
	return s.ctrl.Submit(ctx, prompt)
}

func (s *chatSession) run(ctx context.Context, a session.Action) (bool, error) {
	ctx, stop := interruptible(ctx)
	defer stop()
	return s.ctrl.Run(ctx, a)
}
