// Package dialog holds the conversation log: an append-only sequence of
// turns in which streamed fragments from the same author grow the latest
// turn instead of starting a new one.
package dialog

import (
	"sync"
	"time"
)

// Greeting seeds every new log so it is never empty.
const Greeting = "您好！我是TrafficSense AI助手，请问有什么可以帮助您的？"

// Author identifies who produced a turn.
type Author string

const (
	User      Author = "user"
	Assistant Author = "assistant"
)

// Turn is one message bubble.
type Turn struct {
	ID        int64
	Author    Author
	Text      string
	CreatedAt time.Time
}

// Event is one input to Reduce. Extend asks for the text to be appended
// to the last turn when that turn has the same author.
type Event struct {
	Author Author
	Text   string
	Extend bool
}

// Reduce folds ev into turns and returns the result as a new slice;
// turns itself is left unchanged. nextID and now are only called when a
// new turn is created.
func Reduce(turns []Turn, ev Event, nextID func() int64, now func() time.Time) []Turn {
	out := make([]Turn, len(turns), len(turns)+1)
	copy(out, turns)

	if ev.Extend && len(out) > 0 {
		last := &out[len(out)-1]
		if last.Author == ev.Author {
			last.Text += ev.Text
			return out
		}
	}
	return append(out, Turn{
		ID:        nextID(),
		Author:    ev.Author,
		Text:      ev.Text,
		CreatedAt: now(),
	})
}

// Log owns the ordered turns of one conversation. Ids come from a
// sequence private to the log and are never reused.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
	seq   int64
	now   func() time.Time
}

// Option configures a Log.
type Option func(*logOptions)

type logOptions struct {
	greeting string
	now      func() time.Time
}

// WithGreeting replaces the default greeting turn text.
func WithGreeting(text string) Option {
	return func(o *logOptions) {
		if text != "" {
			o.greeting = text
		}
	}
}

// WithClock sets the time source for new turns.
func WithClock(now func() time.Time) Option {
	return func(o *logOptions) { o.now = now }
}

// NewLog returns a log seeded with one assistant greeting turn.
func NewLog(opts ...Option) *Log {
	o := logOptions{greeting: Greeting, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	l := &Log{now: o.now}
	l.turns = Reduce(nil, Event{Author: Assistant, Text: o.greeting}, l.nextID, l.now)
	return l
}

func (l *Log) nextID() int64 {
	id := l.seq
	l.seq++
	return id
}

func (l *Log) apply(ev Event) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = Reduce(l.turns, ev, l.nextID, l.now)
	return l.turns[len(l.turns)-1]
}

// AppendTurn starts a new turn unconditionally and returns it.
func (l *Log) AppendTurn(author Author, text string) Turn {
	return l.apply(Event{Author: author, Text: text})
}

// AppendFragment extends the last turn if author wrote it, otherwise
// starts a new turn. It returns the turn that now holds fragment.
func (l *Log) AppendFragment(author Author, fragment string) Turn {
	return l.apply(Event{Author: author, Text: fragment, Extend: true})
}

// View returns a copy of the turns in order.
func (l *Log) View() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Last returns the most recent turn.
func (l *Log) Last() Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.turns[len(l.turns)-1]
}
