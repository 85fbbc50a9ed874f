// Package session coordinates one conversation: it gates submissions
// while a reply is streaming and folds the reply into the dialog log.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arin/trafficsense/internal/dialog"
	"github.com/arin/trafficsense/internal/stream"
	"github.com/arin/trafficsense/internal/telemetry"
)

// Records is an open reply stream.
type Records interface {
	Next() (stream.Record, error)
	Close() error
}

// Streamer opens one reply stream per prompt.
type Streamer interface {
	Open(ctx context.Context, prompt string) (Records, error)
}

// statser is implemented by streams that count what they decoded.
type statser interface {
	Stats() stream.Stats
}

// FromClient adapts a stream.Client to a Streamer.
func FromClient(c *stream.Client) Streamer {
	return clientStreamer{c: c}
}

type clientStreamer struct {
	c *stream.Client
}

func (s clientStreamer) Open(ctx context.Context, prompt string) (Records, error) {
	st, err := s.c.Open(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Exchange summarizes one prompt and its streamed reply.
type Exchange struct {
	Prompt        string
	Started       time.Time
	Finished      time.Time
	FirstFragment time.Duration // Zero if nothing arrived.
	Fragments     int
	Stats         stream.Stats
	Err           error
}

// Duration is the wall time of the exchange.
func (e Exchange) Duration() time.Duration {
	return e.Finished.Sub(e.Started)
}

// Listener observes a controller. Calls happen on the submitting goroutine.
type Listener interface {
	// OnSubmit fires after the user turn is appended.
	OnSubmit(turn dialog.Turn)
	// OnFragment fires after fragment has been folded into turn.
	OnFragment(turn dialog.Turn, fragment string)
	// OnFinish fires once per accepted submission, success or failure.
	OnFinish(ex Exchange)
}

// Controller owns a conversation log and its streaming flag.
type Controller struct {
	id        string
	log       *dialog.Log
	streamer  Streamer
	streaming atomic.Bool
	listeners []Listener
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithListener registers l for controller events.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// WithLog uses an existing log instead of a fresh one.
func WithLog(l *dialog.Log) Option {
	return func(c *Controller) { c.log = l }
}

// WithID sets the conversation id. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates an idle controller reading replies from s.
func New(s Streamer, opts ...Option) *Controller {
	c := &Controller{
		streamer: s,
		tracer:   telemetry.Tracer(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = dialog.NewLog()
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	c.logger = c.logger.With("session", c.id)
	return c
}

// ID returns the conversation id.
func (c *Controller) ID() string {
	return c.id
}

// Log returns the conversation log. Callers should only read it.
func (c *Controller) Log() *dialog.Log {
	return c.log
}

// IsStreaming reports whether a reply is in flight.
func (c *Controller) IsStreaming() bool {
	return c.streaming.Load()
}

// Submit sends prompt and folds the reply into the log. It returns false
// without touching the log when the trimmed prompt is empty or a reply is
// already streaming. A stream failure is returned after the controller has
// gone back to idle; text received before the failure stays in the log.
func (c *Controller) Submit(ctx context.Context, prompt string) (bool, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return false, nil
	}
	if !c.streaming.CompareAndSwap(false, true) {
		c.logger.Debug("submission ignored while streaming")
		return false, nil
	}
	defer c.streaming.Store(false)

	ctx, span := c.tracer.Start(ctx, "session.submit", trace.WithAttributes(
		attribute.String("session.id", c.id),
	))
	defer span.End()

	turn := c.log.AppendTurn(dialog.User, prompt)
	for _, l := range c.listeners {
		l.OnSubmit(turn)
	}

	ex := Exchange{Prompt: prompt, Started: time.Now()}
	ex.Err = c.consume(ctx, prompt, &ex)
	ex.Finished = time.Now()

	span.SetAttributes(attribute.Int("session.fragments", ex.Fragments))
	if ex.Err != nil {
		span.RecordError(ex.Err)
		span.SetStatus(codes.Error, ex.Err.Error())
		c.logger.Warn("chat stream failed", "error", ex.Err, "fragments", ex.Fragments)
	} else {
		c.logger.Debug("chat stream finished", "fragments", ex.Fragments, "duration", ex.Duration())
	}

	for _, l := range c.listeners {
		l.OnFinish(ex)
	}
	return true, ex.Err
}

func (c *Controller) consume(ctx context.Context, prompt string, ex *Exchange) error {
	recs, err := c.streamer.Open(ctx, prompt)
	if err != nil {
		return fmt.Errorf("open chat stream: %w", err)
	}
	defer func() {
		if s, ok := recs.(statser); ok {
			ex.Stats = s.Stats()
		}
		recs.Close()
	}()

	for {
		rec, err := recs.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read chat stream: %w", err)
		}

		turn := c.log.AppendFragment(dialog.Assistant, rec.Content)
		ex.Fragments++
		if ex.Fragments == 1 {
			ex.FirstFragment = time.Since(ex.Started)
		}
		for _, l := range c.listeners {
			l.OnFragment(turn, rec.Content)
		}
	}
}
