// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cmtonkinson/releasepilot/internal/format"
	"github.com/cmtonkinson/releasepilot/internal/status"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginLeft(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginLeft(1).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			MarginLeft(1)

	countsStyle = lipgloss.NewStyle().
			Bold(true).
			MarginLeft(1).
			MarginBottom(1)
)

// Model represents the interactive status TUI state.
type Model struct {
	table      table.Model
	repoRoot   string
	version    string
	lastUpdate time.Time
	err        error
	quitting   bool
	applied    int
	skipped    int
	failed     int
	inConflict int
	pending    int
}

type tickMsg time.Time
type statusMsg struct {
	summary status.Summary
}
type errMsg error

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// New creates a new interactive status TUI model. An empty version follows
// the most recently written journal.
func New(repoRoot string, version string) Model {
	columns := []table.Column{
		{Title: "PR", Width: 8},
		{Title: "State", Width: 18},
		{Title: "Operation", Width: 12},
		{Title: "Commit", Width: 10},
		{Title: "Detail", Width: 50},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("12"))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		table:    t,
		repoRoot: repoRoot,
		version:  version,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.updateStatus(),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			// Manual refresh
			return m, m.updateStatus()
		}

	case tea.WindowSizeMsg:
		// Reserve space for header, footer, counts
		m.table.SetHeight(msg.Height - 10)
		return m, nil

	case tickMsg:
		return m, tea.Batch(
			tickCmd(),
			m.updateStatus(),
		)

	case statusMsg:
		m.lastUpdate = time.Now()
		m.err = nil
		m.version = msg.summary.Version
		m.applied = msg.summary.Applied
		m.skipped = msg.summary.Skipped
		m.failed = msg.summary.Failed
		m.inConflict = msg.summary.InConflict
		m.pending = msg.summary.Pending

		rows := make([]table.Row, len(msg.summary.Rows))
		for i, row := range msg.summary.Rows {
			rows[i] = table.Row{
				format.PRRef(row.PR),
				row.State,
				row.Operation,
				row.Commit,
				row.Detail,
			}
		}
		m.table.SetRows(rows)
		return m, nil

	case errMsg:
		m.err = msg
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder

	title := titleStyle.Render(fmt.Sprintf("Release %s", m.version))
	timestamp := timestampStyle.Render(fmt.Sprintf("Last update: %s", m.lastUpdate.Format("15:04:05")))

	header := lipgloss.JoinHorizontal(
		lipgloss.Top,
		title,
		strings.Repeat(" ", 5),
		timestamp,
	)
	b.WriteString(header)
	b.WriteString("\n\n")

	counts := countsStyle.Render(fmt.Sprintf(
		"PRs: applied=%d skipped=%d failed=%d in-conflict=%d pending=%d",
		m.applied, m.skipped, m.failed, m.inConflict, m.pending,
	))
	b.WriteString(counts)
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	help := helpStyle.Render("↑/↓: navigate • r: refresh • q/esc: quit")
	b.WriteString(help)

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return b.String()
}

func (m Model) updateStatus() tea.Cmd {
	return func() tea.Msg {
		summary, err := status.GetSummary(m.repoRoot, m.version)
		if err != nil {
			return errMsg(err)
		}
		return statusMsg{summary: summary}
	}
}

// Run starts the interactive TUI.
func Run(repoRoot string, version string) error {
	p := tea.NewProgram(
		New(repoRoot, version),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
