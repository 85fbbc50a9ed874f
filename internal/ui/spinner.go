// Package ui provides terminal UI helpers.
package ui

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner wraps a terminal spinner for loading states.
type Spinner struct {
	s *spinner.Spinner
	w io.Writer
}

// NewSpinner creates a spinner writing msg to w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &Spinner{s: s, w: w}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Stop halts the spinner and clears the line.
func (sp *Spinner) Stop() {
	sp.s.Stop()
}

// Success stops the spinner and prints a green check.
func (sp *Spinner) Success(msg string) {
	sp.s.Stop()
	color.New(color.FgGreen).Fprintf(sp.w, "  ✓ %s\n", msg)
}

// Fail stops the spinner and prints a red cross.
func (sp *Spinner) Fail(msg string) {
	sp.s.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}
