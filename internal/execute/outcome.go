package execute

import (
	"context"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/repo"
)

// operationOutcome is the first-level classification of a git operation.
type operationOutcome int

const (
	outcomeClean operationOutcome = iota
	outcomeNoop
	outcomeConflict
	outcomeFailed
)

// classifyOutcome interprets a cherry-pick/revert result. A zero exit is
// clean. The no-op condition is distinguishable from a real conflict by
// git's own diagnostic text ("The previous cherry-pick is now empty",
// "nothing to commit"). Anything else is a conflict candidate; the caller
// confirms with the unmerged-file listing.
func classifyOutcome(res repo.CmdResult, operation string) operationOutcome {
	if res.ExitCode == 0 {
		return outcomeClean
	}
	text := strings.ToLower(res.Combined())
	if strings.Contains(text, "empty") && strings.Contains(text, operation) {
		return outcomeNoop
	}
	if strings.Contains(text, "nothing to commit") || strings.Contains(text, "working tree clean") {
		return outcomeNoop
	}
	return outcomeConflict
}

// unmergedFiles lists paths git reports as unmerged. An empty list after a
// failed operation means the failure was not a conflict.
func unmergedFiles(ctx context.Context, git repo.Git) ([]string, error) {
	out, err := git.Run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// statusEntry is one `git status --porcelain` line.
type statusEntry struct {
	XY   string
	Path string
}

// parsePorcelain extracts (XY, path) pairs, unwrapping rename arrows and
// surrounding quotes.
func parsePorcelain(output string) []statusEntry {
	var entries []statusEntry
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		xy := line[:2]
		path := strings.TrimSpace(line[3:])
		if idx := strings.LastIndex(path, " -> "); idx >= 0 {
			path = path[idx+len(" -> "):]
		}
		path = strings.Trim(path, `"`)
		entries = append(entries, statusEntry{XY: xy, Path: path})
	}
	return entries
}

// conflictEntries filters porcelain output down to unmerged states.
func conflictEntries(entries []statusEntry) []statusEntry {
	var out []statusEntry
	for _, e := range entries {
		if strings.Contains(e.XY, "U") || e.XY == "AA" || e.XY == "DD" {
			out = append(out, e)
		}
	}
	return out
}
