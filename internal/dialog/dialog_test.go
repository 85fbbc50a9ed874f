package dialog

import (
	"strings"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Minute)
	}
}

func TestNewLog_SeededWithGreeting(t *testing.T) {
	l := NewLog()

	turns := l.View()
	if len(turns) != 1 {
		t.Fatalf("expected 1 seeded turn, got %d", len(turns))
	}
	if turns[0].Author != Assistant {
		t.Errorf("expected greeting from assistant, got %q", turns[0].Author)
	}
	if turns[0].Text != Greeting {
		t.Errorf("unexpected greeting: %q", turns[0].Text)
	}
}

func TestNewLog_CustomGreeting(t *testing.T) {
	l := NewLog(WithGreeting("hello"))
	if got := l.Last().Text; got != "hello" {
		t.Errorf("expected custom greeting, got %q", got)
	}

	l = NewLog(WithGreeting(""))
	if got := l.Last().Text; got != Greeting {
		t.Errorf("empty greeting should keep default, got %q", got)
	}
}

func TestAppendTurn_IDsStrictlyIncrease(t *testing.T) {
	l := NewLog()
	a := l.AppendTurn(User, "one")
	b := l.AppendTurn(User, "two")
	c := l.AppendTurn(Assistant, "three")

	if !(a.ID < b.ID && b.ID < c.ID) {
		t.Errorf("ids not increasing: %d %d %d", a.ID, b.ID, c.ID)
	}
	if l.Len() != 4 {
		t.Errorf("expected 4 turns, got %d", l.Len())
	}
}

func TestAppendTurn_SameAuthorDoesNotMerge(t *testing.T) {
	l := NewLog()
	l.AppendTurn(User, "first")
	l.AppendTurn(User, "second")

	if l.Len() != 3 {
		t.Fatalf("AppendTurn must never merge, got %d turns", l.Len())
	}
}

func TestAppendFragment_ExtendsSameAuthor(t *testing.T) {
	l := NewLog(WithClock(fixedClock()))
	l.AppendTurn(User, "q")
	first := l.AppendFragment(Assistant, "拥堵")
	second := l.AppendFragment(Assistant, "趋势上升")

	if first.ID != second.ID {
		t.Errorf("fragment started a new turn: %d vs %d", first.ID, second.ID)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Error("extending a turn must keep its creation time")
	}
	if second.Text != "拥堵趋势上升" {
		t.Errorf("unexpected text: %q", second.Text)
	}
	if l.Len() != 3 {
		t.Errorf("expected 3 turns, got %d", l.Len())
	}
}

func TestAppendFragment_ConcatenationProperty(t *testing.T) {
	parts := []string{"道", "路", "", "监控", " 正常", "。"}
	l := NewLog()
	l.AppendTurn(User, "status?")
	for _, p := range parts {
		l.AppendFragment(Assistant, p)
	}

	if got, want := l.Last().Text, strings.Join(parts, ""); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAppendFragment_TurnSwitchScenario(t *testing.T) {
	// Two assistant fragments, a user turn, then one more assistant fragment.
	l := NewLog()
	l.AppendFragment(Assistant, "a")
	l.AppendFragment(Assistant, "b")
	l.AppendTurn(User, "next")
	l.AppendFragment(Assistant, "c")

	turns := l.View()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Text != Greeting+"ab" {
		t.Errorf("unexpected first turn: %q", turns[0].Text)
	}
	if turns[2].Text != "c" || turns[2].Author != Assistant {
		t.Errorf("unexpected last turn: %+v", turns[2])
	}
}

func TestView_ReturnsCopy(t *testing.T) {
	l := NewLog()
	v := l.View()
	v[0].Text = "mutated"

	if l.Last().Text != Greeting {
		t.Error("mutating a view must not change the log")
	}
}

func TestReduce_EmptyLogStartsTurn(t *testing.T) {
	var id int64 = 41
	next := func() int64 { id++; return id }
	now := fixedClock()

	turns := Reduce(nil, Event{Author: Assistant, Text: "x", Extend: true}, next, now)
	if len(turns) != 1 || turns[0].ID != 42 {
		t.Fatalf("expected new turn with id 42, got %+v", turns)
	}

	turns = Reduce(turns, Event{Author: User, Text: "y", Extend: true}, next, now)
	if len(turns) != 2 {
		t.Fatalf("author switch should start a new turn, got %d", len(turns))
	}
}

func TestReduce_LeavesInputUnchanged(t *testing.T) {
	next := func() int64 { return 9 }
	now := fixedClock()
	in := []Turn{{ID: 0, Author: Assistant, Text: "拥堵"}}

	out := Reduce(in, Event{Author: Assistant, Text: "加剧", Extend: true}, next, now)
	if out[0].Text != "拥堵加剧" {
		t.Errorf("expected extended text, got %q", out[0].Text)
	}
	if in[0].Text != "拥堵" {
		t.Errorf("input turn was modified: %q", in[0].Text)
	}

	out = Reduce(in[:0:1], Event{Author: User, Text: "q"}, next, now)
	if in[0].Text != "拥堵" || in[0].Author != Assistant {
		t.Errorf("append must not write into the input backing array, got %+v", in[0])
	}
	if len(out) != 1 || out[0].ID != 9 {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestLog_ConcurrentReaders(t *testing.T) {
	l := NewLog()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = l.View()
			_ = l.Len()
		}
	}()
	for i := 0; i < 200; i++ {
		l.AppendFragment(Assistant, ".")
	}
	<-done

	if got := len(l.Last().Text); got != len(Greeting)+200 {
		t.Errorf("expected %d bytes, got %d", len(Greeting)+200, got)
	}
}
