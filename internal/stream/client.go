// Package stream reads the assistant's chat stream: one POST per prompt,
// answered with a chunked body of newline-delimited JSON records.
package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arin/trafficsense/internal/telemetry"
)

const (
	defaultTimeout = 30 * time.Second
	readChunkSize  = 4096
	sessionHeader  = "X-Session-Id"
)

// Client opens chat streams against a single endpoint.
type Client struct {
	endpoint   string
	sessionID  string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionID tags every request with the given conversation id.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for endpoint. timeout bounds the wait for
// response headers only; a stream may run for as long as the server keeps
// sending.
func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Transport: transport},
		tracer:     telemetry.Tracer(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL streams are opened against.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Open sends prompt and returns the stream of records it produces. The
// caller must Close the stream. Failures are reported as *TransportError.
func (c *Client) Open(ctx context.Context, prompt string) (*Stream, error) {
	ctx, span := c.tracer.Start(ctx, "stream.open", trace.WithAttributes(
		attribute.String("endpoint", c.endpoint),
		attribute.Int("prompt.length", len(prompt)),
	))

	body, err := sonic.Marshal(chatRequest{Message: prompt})
	if err != nil {
		return nil, c.fail(span, &TransportError{Message: "failed to marshal request", Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(span, &TransportError{Message: "failed to create request", Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}

	c.logger.Debug("opening chat stream", "endpoint", c.endpoint, "session", c.sessionID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(span, &TransportError{Message: fmt.Sprintf("could not reach %s", c.endpoint), Err: err})
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		msg := "chat stream request failed"
		if s := strings.TrimSpace(string(detail)); s != "" {
			msg += ": " + s
		}
		return nil, c.fail(span, &TransportError{StatusCode: resp.StatusCode, Message: msg})
	}

	// A zero-length 200 is an empty reply; only null-body statuses fail.
	if resp.Body == nil || nullBodyStatus(resp.StatusCode) {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, c.fail(span, &TransportError{StatusCode: resp.StatusCode, Message: "chat stream unavailable", Err: ErrEmptyBody})
	}

	dec := NewDecoder()
	dec.logger = c.logger
	if c.sessionID != "" {
		dec.logger = c.logger.With("session", c.sessionID)
	}

	return &Stream{
		body:    resp.Body,
		dec:     dec,
		buf:     make([]byte, readChunkSize),
		span:    span,
		started: time.Now(),
	}, nil
}

func nullBodyStatus(code int) bool {
	return code == http.StatusNoContent || code == http.StatusResetContent || code == http.StatusNotModified
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	c.logger.Debug("chat stream failed", "endpoint", c.endpoint, "error", err)
	return err
}

// Stream is a single, non-restartable sequence of records.
type Stream struct {
	body    io.ReadCloser
	dec     *Decoder
	buf     []byte
	queue   []Record
	err     error
	closed  bool
	span    trace.Span
	started time.Time
}

// Next returns the next accepted record in arrival order, or io.EOF once
// the server has finished. Records decoded before a read failure are
// still delivered before the failure is reported.
func (s *Stream) Next() (Record, error) {
	for len(s.queue) == 0 {
		if s.err != nil {
			return Record{}, s.err
		}
		s.fill()
	}
	rec := s.queue[0]
	s.queue = s.queue[1:]
	return rec, nil
}

func (s *Stream) fill() {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		s.queue = append(s.queue, s.dec.Feed(s.buf[:n])...)
	}
	switch {
	case err == io.EOF:
		s.queue = append(s.queue, s.dec.Flush()...)
		s.err = io.EOF
	case err != nil:
		s.err = &TransportError{Message: "chat stream interrupted", Err: err}
	}
}

// Stats returns the decoder counters for this stream.
func (s *Stream) Stats() Stats {
	return s.dec.Stats()
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.err == nil {
		s.err = ErrClosed
	}
	s.queue = nil

	st := s.dec.Stats()
	s.span.SetAttributes(
		attribute.Int("stream.bytes", st.Bytes),
		attribute.Int("stream.records", st.Records()),
		attribute.Int("stream.malformed", st.Malformed),
		attribute.Int64("stream.duration_ms", time.Since(s.started).Milliseconds()),
	)
	if s.err != io.EOF && s.err != ErrClosed {
		s.span.RecordError(s.err)
		s.span.SetStatus(codes.Error, s.err.Error())
	}
	s.span.End()
	return s.body.Close()
}
