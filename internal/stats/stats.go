// Package stats keeps in-memory metrics for the current conversation:
// reply latency, record kinds, and how many stream lines were dropped.
// Nothing is written to disk.
package stats

import (
	"sync"
	"time"

	"github.com/arin/trafficsense/internal/dialog"
	"github.com/arin/trafficsense/internal/session"
)

const maxRecords = 1000

// Record is one instrumented exchange.
type Record struct {
	Timestamp     time.Time
	Prompt        string
	FirstFragment time.Duration
	Duration      time.Duration
	Fragments     int
	Kinds         map[string]int
	Ignored       int
	Malformed     int
	Success       bool
}

// Summary is the aggregated view shown by /stats.
type Summary struct {
	TotalExchanges     int
	Failed             int
	SuccessRate        float64
	AvgFirstFragmentMs int64
	AvgDurationMs      int64
	TotalFragments     int
	KindBreakdown      map[string]int
	Ignored            int
	Malformed          int
	TopPrompts         []PromptCount
}

// PromptCount pairs a prompt with how often it was sent.
type PromptCount struct {
	Prompt string
	Count  int
}

// Tracker collects one Record per finished exchange. It implements
// session.Listener.
type Tracker struct {
	mu      sync.Mutex
	records []Record
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// OnSubmit is a no-op; Tracker only records finished exchanges.
func (t *Tracker) OnSubmit(dialog.Turn) {}

// OnFragment is a no-op; fragment counts arrive with the Exchange.
func (t *Tracker) OnFragment(dialog.Turn, string) {}

// OnFinish records ex.
func (t *Tracker) OnFinish(ex session.Exchange) {
	r := Record{
		Timestamp:     ex.Finished,
		Prompt:        ex.Prompt,
		FirstFragment: ex.FirstFragment,
		Duration:      ex.Duration(),
		Fragments:     ex.Fragments,
		Kinds:         map[string]int{},
		Ignored:       ex.Stats.Ignored,
		Malformed:     ex.Stats.Malformed,
		Success:       ex.Err == nil,
	}
	for k, n := range ex.Stats.Accepted {
		r.Kinds[string(k)] = n
	}
	t.Add(r)
}

// Add appends r, keeping the most recent records.
func (t *Tracker) Add(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, r)
	if len(t.records) > maxRecords {
		t.records = t.records[len(t.records)-maxRecords:]
	}
}

// Records returns a copy of the stored records.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Summarize aggregates everything recorded so far.
func (t *Tracker) Summarize() *Summary {
	records := t.Records()
	s := &Summary{
		TotalExchanges: len(records),
		KindBreakdown:  map[string]int{},
	}
	if len(records) == 0 {
		return s
	}

	var totalFirst, totalDur int64
	var firstCount, successCount int
	freq := map[string]int{}

	for _, r := range records {
		if r.Success {
			successCount++
		} else {
			s.Failed++
		}
		if r.FirstFragment > 0 {
			totalFirst += r.FirstFragment.Milliseconds()
			firstCount++
		}
		totalDur += r.Duration.Milliseconds()
		s.TotalFragments += r.Fragments
		s.Ignored += r.Ignored
		s.Malformed += r.Malformed
		for k, n := range r.Kinds {
			s.KindBreakdown[k] += n
		}
		if r.Prompt != "" {
			freq[r.Prompt]++
		}
	}

	s.SuccessRate = float64(successCount) / float64(len(records)) * 100
	s.AvgDurationMs = totalDur / int64(len(records))
	if firstCount > 0 {
		s.AvgFirstFragmentMs = totalFirst / int64(firstCount)
	}
	s.TopPrompts = topN(freq, 5)
	return s
}

func topN(freq map[string]int, n int) []PromptCount {
	var all []PromptCount
	for p, count := range freq {
		all = append(all, PromptCount{Prompt: p, Count: count})
	}
	// Selection sort; n is small.
	for i := 0; i < len(all) && i < n; i++ {
		maxIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].Count > all[maxIdx].Count {
				maxIdx = j
			}
		}
		all[i], all[maxIdx] = all[maxIdx], all[i]
	}
	if len(all) > n {
		all = all[:n]
	}
	return all
}
