package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/arin/trafficsense/internal/stats"
)

// printStats renders the /stats dashboard for the current session.
func printStats(w io.Writer, summary *stats.Summary) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "\n  📊 session stats\n\n")

	if summary.TotalExchanges == 0 {
		dim.Fprintln(w, "  No exchanges yet. Ask something first.")
		fmt.Fprintln(w)
		return
	}

	green.Fprintf(w, "  Exchanges: ")
	fmt.Fprintf(w, "%d total", summary.TotalExchanges)
	dim.Fprintf(w, "  (%d failed)\n", summary.Failed)

	green.Fprintf(w, "  Success:   ")
	if summary.SuccessRate >= 90 {
		fmt.Fprintf(w, "%.0f%%\n", summary.SuccessRate)
	} else {
		yellow.Fprintf(w, "%.0f%%\n", summary.SuccessRate)
	}

	green.Fprintf(w, "  First tok: ")
	fmt.Fprintf(w, "%dms avg\n", summary.AvgFirstFragmentMs)
	green.Fprintf(w, "  Duration:  ")
	fmt.Fprintf(w, "%dms avg\n", summary.AvgDurationMs)
	green.Fprintf(w, "  Fragments: ")
	fmt.Fprintf(w, "%d", summary.TotalFragments)
	dim.Fprintf(w, "  (%d ignored, %d malformed)\n", summary.Ignored, summary.Malformed)

	if len(summary.KindBreakdown) > 0 {
		fmt.Fprintln(w)
		cyan.Fprintln(w, "  Record Kinds")
		kinds := make([]string, 0, len(summary.KindBreakdown))
		total := 0
		for k, n := range summary.KindBreakdown {
			kinds = append(kinds, k)
			total += n
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			count := summary.KindBreakdown[k]
			pct := float64(count) / float64(total) * 100
			bar := strings.Repeat("█", int(pct/5))
			dim.Fprintf(w, "  %-15s ", k)
			fmt.Fprintf(w, "%s %d (%.0f%%)\n", bar, count, pct)
		}
	}

	if len(summary.TopPrompts) > 0 {
		fmt.Fprintln(w)
		cyan.Fprintln(w, "  Top Prompts")
		for i, tp := range summary.TopPrompts {
			p := []rune(tp.Prompt)
			prompt := tp.Prompt
			if len(p) > 40 {
				prompt = string(p[:40]) + "..."
			}
			dim.Fprintf(w, "  %d. ", i+1)
			fmt.Fprintf(w, "%s ", prompt)
			dim.Fprintf(w, "(%dx)\n", tp.Count)
		}
	}

	fmt.Fprintln(w)
}
