package result

import (
	"fmt"
	"io"
	"sort"
)

// PrintResults writes dead link details grouped by reason and a summary to w.
func PrintResults(w io.Writer, res *Result) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	groups := GroupByReason(res.Records, OutcomeDead)
	if len(groups) == 0 {
		writef("No dead links found!\n")
	} else {
		reasons := make([]Reason, 0, len(groups))
		for r := range groups {
			reasons = append(reasons, r)
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

		writef("Dead Links:\n")
		for _, reason := range reasons {
			writef("  %s (%d)\n", FormatReason(reason), len(groups[reason]))
			for _, rec := range groups[reason] {
				if rec.StatusCode != 0 {
					writef("    %s [%d]\n", rec.URL(), rec.StatusCode)
				} else {
					writef("    %s\n", rec.URL())
				}
			}
		}
	}

	if len(res.Unprocessed) > 0 {
		writef("Not checked (worker setup failed): %d links\n", len(res.Unprocessed))
	}
	writef("Checked %d links: %d alive, %d dead, %d canonical, %d unresolved\n",
		res.Stats.Alive+res.Stats.Dead, res.Stats.Alive, res.Stats.Dead,
		res.Stats.Canonical, res.Stats.Unresolved)
}
