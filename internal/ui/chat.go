package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/arin/trafficsense/internal/dialog"
	"github.com/arin/trafficsense/internal/session"
	"github.com/arin/trafficsense/internal/stream"
)

var (
	assistantColor = color.New(color.FgCyan, color.Bold)
	userColor      = color.New(color.FgGreen)
	dimColor       = color.New(color.FgHiBlack)
	errorColor     = color.New(color.FgRed)
)

// ChatRenderer prints a streaming reply as it arrives. It implements
// session.Listener.
type ChatRenderer struct {
	w         io.Writer
	spinnerW  io.Writer
	sp        *Spinner
	started   bool
	endsInNew bool
}

// RendererOption configures a ChatRenderer.
type RendererOption func(*ChatRenderer)

// WithSpinner shows a spinner on w until the first fragment arrives.
func WithSpinner(w io.Writer) RendererOption {
	return func(r *ChatRenderer) { r.spinnerW = w }
}

// NewChatRenderer returns a renderer writing replies to w.
func NewChatRenderer(w io.Writer, opts ...RendererOption) *ChatRenderer {
	r := &ChatRenderer{w: w}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnSubmit starts the waiting indicator.
func (r *ChatRenderer) OnSubmit(dialog.Turn) {
	r.started = false
	r.endsInNew = false
	if r.spinnerW != nil {
		r.sp = NewSpinner(r.spinnerW, "Analyzing traffic...")
		r.sp.Start()
	}
}

// OnFragment prints fragment, preceded by the reply header the first time.
func (r *ChatRenderer) OnFragment(turn dialog.Turn, fragment string) {
	if !r.started {
		r.stopSpinner()
		assistantColor.Fprintf(r.w, "  AI %s → ", turn.CreatedAt.Format("15:04"))
		r.started = true
	}
	if fragment == "" {
		return
	}
	fmt.Fprint(r.w, fragment)
	r.endsInNew = strings.HasSuffix(fragment, "\n")
}

// OnFinish ends the reply line and reports a failure, if any. When no
// fragment arrived the outcome is shown where the spinner was.
func (r *ChatRenderer) OnFinish(ex session.Exchange) {
	if r.sp != nil {
		if ex.Err != nil {
			r.sp.Fail(describe(ex.Err))
		} else {
			r.sp.Success("Reply finished with no text.")
		}
		r.sp = nil
		fmt.Fprintln(r.w)
		return
	}

	if r.started && !r.endsInNew {
		fmt.Fprintln(r.w)
	}
	if ex.Err != nil {
		errorColor.Fprintf(r.w, "  ✗ %s\n", describe(ex.Err))
	}
	fmt.Fprintln(r.w)
	r.started = false
}

func (r *ChatRenderer) stopSpinner() {
	if r.sp != nil {
		r.sp.Stop()
		r.sp = nil
	}
}

// describe turns a stream failure into a one-line message for the user.
func describe(err error) string {
	var te *stream.TransportError
	if errors.As(err, &te) {
		switch {
		case errors.Is(te, stream.ErrEmptyBody):
			return "Server returned an empty response."
		case te.StatusCode != 0:
			return fmt.Sprintf("Server error %d: %s", te.StatusCode, te.Message)
		default:
			return fmt.Sprintf("Connection problem: %v", te)
		}
	}
	return err.Error()
}

// RenderTurns prints a full conversation, one turn per block.
func RenderTurns(w io.Writer, turns []dialog.Turn) {
	for _, t := range turns {
		ts := t.CreatedAt.Format("15:04")
		switch t.Author {
		case dialog.User:
			userColor.Fprintf(w, "  you %s → ", ts)
		default:
			assistantColor.Fprintf(w, "  AI %s → ", ts)
		}
		fmt.Fprintln(w, strings.TrimRight(t.Text, "\n"))
	}
	dimColor.Fprintf(w, "  (%d turns)\n\n", len(turns))
}
