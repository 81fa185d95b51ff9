// Package display renders the PR dependency graph for a release plan.
package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cmtonkinson/releasepilot/internal/format"
	"github.com/cmtonkinson/releasepilot/internal/plan"
	"github.com/cmtonkinson/releasepilot/internal/pr"
)

const (
	prColumnWidth         = 8
	decisionColumnWidth   = 15
	requiresColumnWidth   = 20
	requiredByColumnWidth = 20
	titleColumnWidth      = 40
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	cellStyle = lipgloss.NewStyle()

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	summaryStyle = lipgloss.NewStyle().
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

// Summary represents the dependency graph visualization output.
type Summary struct {
	Rows         []PRRow
	TotalPRs     int
	Admitted     int
	Excluded     int
	ManualReview int
	Warnings     []string
}

// PRRow represents a single pull request in the graph display.
type PRRow struct {
	PR         int
	Decision   string
	Requires   string
	RequiredBy string
	Title      string
}

// String returns the formatted graph output.
func (s Summary) String() string {
	var b strings.Builder

	summary := summaryStyle.Render(fmt.Sprintf(
		"PRs (%d total, %d admitted, %d excluded, %d manual-review)",
		s.TotalPRs, s.Admitted, s.Excluded, s.ManualReview,
	))
	b.WriteString(summary)
	b.WriteString("\n\n")

	if len(s.Rows) == 0 {
		b.WriteString("No pull requests in the window.\n")
		return b.String()
	}

	headers := []string{
		padRight("PR", prColumnWidth),
		padRight("Decision", decisionColumnWidth),
		padRight("Requires", requiresColumnWidth),
		padRight("Required By", requiredByColumnWidth),
		"Title",
	}
	headerLine := headerStyle.Render(strings.Join(headers, "  "))
	b.WriteString(headerLine)
	b.WriteString("\n")

	totalWidth := prColumnWidth + decisionColumnWidth + requiresColumnWidth + requiredByColumnWidth + titleColumnWidth + 8
	separator := separatorStyle.Render(strings.Repeat("─", totalWidth))
	b.WriteString(separator)
	b.WriteString("\n")

	for _, row := range s.Rows {
		line := fmt.Sprintf("%s  %s  %s  %s  %s",
			padRight(format.PRRef(row.PR), prColumnWidth),
			padRight(row.Decision, decisionColumnWidth),
			padRight(row.Requires, requiresColumnWidth),
			padRight(row.RequiredBy, requiredByColumnWidth),
			truncate(row.Title, titleColumnWidth),
		)
		b.WriteString(cellStyle.Render(line))
		b.WriteString("\n")
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n")
		for _, warning := range s.Warnings {
			b.WriteString(warningStyle.Render("warning: " + warning))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// GetSummary builds a dependency graph summary from a release plan and the
// PR window it was planned over.
func GetSummary(p plan.ReleasePlan, window []pr.PullRequest) Summary {
	summary := Summary{
		TotalPRs:     len(p.Decisions),
		Admitted:     len(p.Admitted),
		Excluded:     len(p.Excluded),
		ManualReview: len(p.ManualReview),
	}

	titles := make(map[int]string, len(window))
	for _, item := range window {
		titles[item.Number] = item.Title
	}

	requiredBy := make(map[int][]int)
	for _, dec := range p.Decisions {
		for _, dep := range dec.Requires {
			if dep == dec.PR {
				continue
			}
			requiredBy[dep] = append(requiredBy[dep], dec.PR)
		}
	}
	for key := range requiredBy {
		sort.Ints(requiredBy[key])
	}

	rows := make([]PRRow, 0, len(p.Decisions))
	for _, dec := range p.Decisions {
		rows = append(rows, PRRow{
			PR:         dec.PR,
			Decision:   string(dec.Kind),
			Requires:   formatRefs(dec.Requires),
			RequiredBy: formatRefs(requiredBy[dec.PR]),
			Title:      titles[dec.PR],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PR < rows[j].PR })
	summary.Rows = rows

	for _, warning := range p.Validation.Warnings {
		summary.Warnings = append(summary.Warnings, warning.Detail)
	}
	return summary
}

// formatRefs joins PR references, or "-" when there are none.
func formatRefs(numbers []int) string {
	if len(numbers) == 0 {
		return "-"
	}
	return format.PRList(numbers)
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// truncate truncates a string to the specified width with ellipsis.
func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
