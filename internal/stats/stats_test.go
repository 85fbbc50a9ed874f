package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/arin/trafficsense/internal/dialog"
	"github.com/arin/trafficsense/internal/session"
	"github.com/arin/trafficsense/internal/stream"
)

func exchange(prompt string, first, dur time.Duration, err error) session.Exchange {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return session.Exchange{
		Prompt:        prompt,
		Started:       start,
		Finished:      start.Add(dur),
		FirstFragment: first,
		Fragments:     2,
		Stats: stream.Stats{
			Accepted: map[stream.Kind]int{stream.KindThought: 1, stream.KindResponse: 1},
			Ignored:  1,
		},
		Err: err,
	}
}

func TestOnFinish_RecordsExchange(t *testing.T) {
	tr := NewTracker()
	tr.OnFinish(exchange("路况", 120*time.Millisecond, 900*time.Millisecond, nil))

	records := tr.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Prompt != "路况" {
		t.Errorf("unexpected prompt: %s", r.Prompt)
	}
	if !r.Success {
		t.Error("expected success")
	}
	if r.Duration != 900*time.Millisecond {
		t.Errorf("unexpected duration: %v", r.Duration)
	}
	if r.Kinds["response_token"] != 1 || r.Kinds["thought_token"] != 1 {
		t.Errorf("unexpected kinds: %v", r.Kinds)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := NewTracker().Summarize()
	if s.TotalExchanges != 0 {
		t.Errorf("expected 0 exchanges, got %d", s.TotalExchanges)
	}
	if s.KindBreakdown == nil {
		t.Error("expected non-nil kind breakdown")
	}
}

func TestSummarize_WithData(t *testing.T) {
	tr := NewTracker()
	tr.OnFinish(exchange("a", 100*time.Millisecond, 1000*time.Millisecond, nil))
	tr.OnFinish(exchange("a", 300*time.Millisecond, 2000*time.Millisecond, nil))
	tr.OnFinish(exchange("b", 0, 50*time.Millisecond, errors.New("status 502")))

	s := tr.Summarize()
	if s.TotalExchanges != 3 {
		t.Errorf("expected 3 exchanges, got %d", s.TotalExchanges)
	}
	if s.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", s.Failed)
	}
	if s.SuccessRate < 66 || s.SuccessRate > 67 {
		t.Errorf("expected ~66%% success rate, got %.0f%%", s.SuccessRate)
	}
	// Exchanges with no fragment do not count toward first-fragment latency.
	if s.AvgFirstFragmentMs != 200 {
		t.Errorf("expected avg first fragment 200ms, got %d", s.AvgFirstFragmentMs)
	}
	if s.AvgDurationMs != 1016 {
		t.Errorf("expected avg duration 1016ms, got %d", s.AvgDurationMs)
	}
	if s.KindBreakdown["response_token"] != 3 {
		t.Errorf("expected 3 response tokens, got %d", s.KindBreakdown["response_token"])
	}
	if s.Ignored != 3 {
		t.Errorf("expected 3 ignored, got %d", s.Ignored)
	}
	if len(s.TopPrompts) == 0 || s.TopPrompts[0].Prompt != "a" || s.TopPrompts[0].Count != 2 {
		t.Errorf("expected top prompt 'a' x2, got %+v", s.TopPrompts)
	}
}

func TestAdd_CapsRecords(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < maxRecords+10; i++ {
		tr.Add(Record{Prompt: "x", Success: true})
	}
	if n := len(tr.Records()); n != maxRecords {
		t.Errorf("expected %d records, got %d", maxRecords, n)
	}
}

func TestTopN_LessThanN(t *testing.T) {
	freq := map[string]int{"路况": 5, "决策": 3}
	result := topN(freq, 10)
	if len(result) != 2 {
		t.Errorf("expected 2 results when fewer than N, got %d", len(result))
	}
	if result[0].Prompt != "路况" || result[0].Count != 5 {
		t.Errorf("expected top prompt '路况' with count 5, got %+v", result[0])
	}
}

func TestTopN_Empty(t *testing.T) {
	result := topN(map[string]int{}, 5)
	if len(result) != 0 {
		t.Errorf("expected 0 results for empty map, got %d", len(result))
	}
}

func TestTopN_Truncates(t *testing.T) {
	freq := map[string]int{"a": 6, "b": 5, "c": 4, "d": 3, "e": 2, "f": 1}
	result := topN(freq, 5)
	if len(result) != 5 {
		t.Fatalf("expected 5 results, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i-1].Count < result[i].Count {
			t.Error("results should be sorted by count descending")
		}
	}
}

func TestTracker_OnlyFinishedExchangesAreRecorded(t *testing.T) {
	tr := NewTracker()
	var l session.Listener = tr
	l.OnSubmit(dialog.Turn{Author: dialog.User, Text: "路况"})
	l.OnFragment(dialog.Turn{Author: dialog.Assistant, Text: "畅"}, "畅")
	if n := len(tr.Records()); n != 0 {
		t.Fatalf("expected no records before finish, got %d", n)
	}

	l.OnFinish(exchange("路况", 10*time.Millisecond, 20*time.Millisecond, nil))
	if n := len(tr.Records()); n != 1 {
		t.Errorf("expected 1 record after finish, got %d", n)
	}
}
