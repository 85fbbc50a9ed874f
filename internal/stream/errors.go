package stream

import (
	"errors"
	"fmt"
)

// ErrEmptyBody is returned (wrapped in a TransportError) when the server
// answers without a readable body.
var ErrEmptyBody = errors.New("response body is empty")

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("stream closed")

// TransportError reports a request that failed outright, returned a
// non-success status, or broke while the body was being read.
type TransportError struct {
	StatusCode int // 0 when no response was received.
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError describes a single stream line that could not be parsed.
// It never ends a stream; the line is skipped.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed stream line %q: %v", truncate(e.Line, 80), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
