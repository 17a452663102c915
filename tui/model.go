// Package tui provides the Bubble Tea terminal UI for vidcheck, displaying
// live check progress and a styled summary of the run.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/vidcheck/checker"
	"github.com/lukemcguire/vidcheck/result"
)

// Model is the Bubble Tea model for the check TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	checker    *checker.Checker
	links      []string
	spinner    spinner.Model
	bar        progress.Model
	progressCh chan checker.CheckEvent

	checked     int
	alive       int
	dead        int
	unprocessed int
	total       int
	current     string
	stopping    bool
	done        bool
	result      *result.Result
	err         error
	width       int
}

// NewModel creates a TUI model that runs c over links. The model closes
// progressCh once the run returns.
func NewModel(ctx context.Context, cancel context.CancelFunc, c *checker.Checker, links []string, progressCh chan checker.CheckEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		checker:    c,
		links:      links,
		spinner:    spin,
		bar:        progress.New(progress.WithDefaultGradient()),
		progressCh: progressCh,
		total:      len(links),
	}
}

// Init starts the spinner, the run, and the progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCheck(), waitForProgress(m.progressCh))
}

// startCheck returns a tea.Cmd that runs the checker and sends CheckDoneMsg.
func (m Model) startCheck() tea.Cmd {
	return func() tea.Msg {
		res, err := m.checker.Run(m.ctx, m.links)
		if m.progressCh != nil {
			close(m.progressCh)
		}
		if err != nil {
			err = fmt.Errorf("check: %w", err)
		}
		return CheckDoneMsg{Result: res, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.stopping {
				return m, tea.Quit
			}
			// Let the run wind down so partial results are still reported.
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-20, 10), 80)

	case CheckProgressMsg:
		m.checked = msg.Checked
		m.alive = msg.Alive
		m.dead = msg.Dead
		m.unprocessed = msg.Unprocessed
		if msg.Total > 0 {
			m.total = msg.Total
		}
		if msg.URL != "" {
			m.current = msg.URL
		}
		return m, waitForProgress(m.progressCh)

	case CheckDoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.result != nil {
		out := RenderSummary(m.result)
		if m.err != nil {
			out += warnStyle.Render("Warning: "+m.err.Error()) + "\n"
		}
		return out
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	label := "Checking..."
	if m.stopping {
		label = "Stopping..."
	}
	return fmt.Sprintf("%s %s %d/%d  %s  %s\n%s\n%s\n",
		m.spinner.View(), label, m.checked+m.unprocessed, m.total,
		aliveStyle.Render(fmt.Sprintf("alive %d", m.alive)),
		deadStyle.Render(fmt.Sprintf("dead %d", m.dead)),
		m.bar.ViewAs(m.fraction()),
		dimStyle.Render("  "+m.current))
}

func (m Model) fraction() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.checked+m.unprocessed) / float64(m.total)
}

// HasDeadLinks reports whether the run found any dead links.
func (m Model) HasDeadLinks() bool {
	return m.result != nil && len(m.result.Dead) > 0
}

// GetResult returns the run result for output formatting.
func (m Model) GetResult() *result.Result {
	return m.result
}

// Err returns the error the run finished with, if any.
func (m Model) Err() error {
	return m.err
}
