package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/vidcheck/checker"
	"github.com/lukemcguire/vidcheck/result"
)

// CheckProgressMsg reports the counters after one link was checked or a
// group of links was skipped.
type CheckProgressMsg struct {
	Checked     int
	Alive       int
	Dead        int
	Unprocessed int
	Total       int
	URL         string
	Outcome     result.Outcome
}

// CheckDoneMsg signals the run has completed. Result is non-nil for
// degraded and interrupted runs too.
type CheckDoneMsg struct {
	Result *result.Result
	Err    error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. A closed channel yields no message; completion is reported by
// startCheck.
func waitForProgress(ch <-chan checker.CheckEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CheckProgressMsg{
			Checked:     evt.Checked,
			Alive:       evt.Alive,
			Dead:        evt.Dead,
			Unprocessed: evt.Unprocessed,
			Total:       evt.Total,
			URL:         evt.URL,
			Outcome:     evt.Outcome,
		}
	}
}
