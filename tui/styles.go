package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/vidcheck/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	reasonStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	aliveStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	deadStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// reasonOrder is the display order for dead-link reasons, most certain first.
var reasonOrder = []result.Reason{
	result.ReasonGone,
	result.ReasonUnavailable,
	result.ReasonLeftVideoPage,
	result.ReasonNoEmbed,
	result.ReasonFetchError,
}

// RenderSummary produces a Lip Gloss styled summary of a run.
func RenderSummary(res *result.Result) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	grouped := result.GroupByReason(res.Records, result.OutcomeDead)
	if len(grouped) == 0 {
		builder.WriteString(successStyle.Render("No dead links found!"))
		builder.WriteString("\n")
	}

	for _, reason := range orderedReasons(grouped) {
		recs := grouped[reason]

		builder.WriteString(reasonStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatReason(reason), len(recs))))
		builder.WriteString("\n")

		rows := make([][]string, 0, len(recs))
		for _, rec := range recs {
			status := "-"
			if rec.StatusCode != 0 {
				status = fmt.Sprintf("%d", rec.StatusCode)
			}
			if rec.Error != "" {
				status = rec.Error
			}
			input := ""
			if rec.CanonicalURL != "" && rec.CanonicalURL != rec.RawURL {
				input = rec.RawURL
			}
			rows = append(rows, []string{rec.URL(), status, input})
		}

		reasonTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Status", "Input").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 {
					return statusErrorStyle
				}
				return urlStyle
			}).
			Rows(rows...)

		builder.WriteString(reasonTable.Render())
		builder.WriteString("\n\n")
	}

	if len(res.Unprocessed) > 0 {
		builder.WriteString(warnStyle.Render(fmt.Sprintf("%d links were not checked", len(res.Unprocessed))))
		builder.WriteString("\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Checked %d links: %d alive, %d dead, %d canonical (%s)",
		res.Stats.Alive+res.Stats.Dead,
		res.Stats.Alive,
		res.Stats.Dead,
		res.Stats.Canonical,
		res.Stats.Duration.Round(1_000_000), // round to ms
	)))
	builder.WriteString("\n")

	return builder.String()
}

// orderedReasons lists the reasons present in grouped, known reasons first
// in reasonOrder, the rest alphabetically.
func orderedReasons(grouped map[result.Reason][]result.LinkRecord) []result.Reason {
	var out []result.Reason
	seen := make(map[result.Reason]bool, len(reasonOrder))
	for _, r := range reasonOrder {
		seen[r] = true
		if len(grouped[r]) > 0 {
			out = append(out, r)
		}
	}
	var rest []result.Reason
	for r := range grouped {
		if !seen[r] {
			rest = append(rest, r)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}
