// Package status reports the state of release promotion runs from their
// journals.
package status

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/execute"
	"github.com/cmtonkinson/releasepilot/internal/format"
)

const (
	prColumnWidth        = 8
	stateColumnWidth     = 18
	operationColumnWidth = 12
	commitColumnWidth    = 10
	detailMaxWidth       = 60
)

var statusStateOrder = map[execute.State]int{
	execute.StateInConflict:      0,
	execute.StateFailedManual:    1,
	execute.StateSkipped:         2,
	execute.StatePending:         3,
	execute.StateAppliedResolved: 4,
	execute.StateAppliedClean:    5,
	execute.StateAppliedNoop:     6,
}

// Summary represents the promotion state of one release version.
type Summary struct {
	Version    string
	Total      int
	Applied    int
	Skipped    int
	Failed     int
	InConflict int
	Pending    int
	Rows       []Row
}

// Row is one PR line in the status table.
type Row struct {
	PR        int
	State     string
	Operation string
	Commit    string
	Detail    string
	order     int
}

// Done reports whether no PR in the summary still needs attention.
func (s Summary) Done() bool {
	return s.Failed == 0 && s.InConflict == 0 && s.Pending == 0
}

// String returns the formatted status output.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "release version=%s prs=%d applied=%d skipped=%d failed=%d in-conflict=%d pending=%d\n",
		s.Version, s.Total, s.Applied, s.Skipped, s.Failed, s.InConflict, s.Pending)
	if len(s.Rows) == 0 {
		return strings.TrimSpace(b.String())
	}
	fmt.Fprintf(&b, "%-*s %-*s %-*s %-*s %s\n",
		prColumnWidth, "pr",
		stateColumnWidth, "state",
		operationColumnWidth, "operation",
		commitColumnWidth, "commit",
		"detail",
	)
	for _, row := range s.Rows {
		fmt.Fprintf(&b, "%-*s %-*s %-*s %-*s %s\n",
			prColumnWidth, format.PRRef(row.PR),
			stateColumnWidth, row.State,
			operationColumnWidth, row.Operation,
			commitColumnWidth, row.Commit,
			truncateDetail(row.Detail, detailMaxWidth),
		)
	}
	return strings.TrimSpace(b.String())
}

// GetSummary replays the journal for a version and returns a detailed
// summary. An empty version selects the most recently written journal.
func GetSummary(repoRoot string, version string) (Summary, error) {
	if strings.TrimSpace(version) == "" {
		versions, err := execute.JournalVersions(repoRoot)
		if err != nil {
			return Summary{}, err
		}
		if len(versions) == 0 {
			return Summary{}, fmt.Errorf("status: no release journals under %s", repoRoot)
		}
		version = versions[0]
	}

	journal, err := execute.OpenJournal(repoRoot, version)
	if err != nil {
		return Summary{}, err
	}
	records, err := journal.Replay()
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Version: version, Total: len(records)}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		switch rec.State {
		case execute.StateAppliedClean, execute.StateAppliedNoop, execute.StateAppliedResolved:
			summary.Applied++
		case execute.StateSkipped:
			summary.Skipped++
		case execute.StateFailedManual:
			summary.Failed++
		case execute.StateInConflict:
			summary.InConflict++
		default:
			summary.Pending++
		}
		rows = append(rows, Row{
			PR:        rec.PR,
			State:     string(rec.State),
			Operation: rec.Operation,
			Commit:    shortCommit(rec.Commit),
			Detail:    rec.Detail,
			order:     stateOrder(rec.State),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].order != rows[j].order {
			return rows[i].order < rows[j].order
		}
		return rows[i].PR < rows[j].PR
	})

	summary.Rows = rows
	return summary, nil
}

func stateOrder(state execute.State) int {
	if rank, ok := statusStateOrder[state]; ok {
		return rank
	}
	return len(statusStateOrder)
}

func shortCommit(sha string) string {
	sha = strings.TrimSpace(sha)
	if len(sha) <= 8 {
		return sha
	}
	return sha[:8]
}

func truncateDetail(detail string, maxLen int) string {
	detail = strings.TrimSpace(detail)
	if detail == "" || len(detail) <= maxLen {
		return detail
	}
	if maxLen <= 3 {
		return detail[:maxLen]
	}
	return detail[:maxLen-3] + "..."
}
