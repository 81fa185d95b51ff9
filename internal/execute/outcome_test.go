package execute

import (
	"reflect"
	"testing"

	"github.com/cmtonkinson/releasepilot/internal/repo"
)

func TestClassifyOutcome(t *testing.T) {
	emptyPick := `On branch release/2.5.1
You are currently cherry-picking commit 1a2b3c4.
nothing to commit, working tree clean
The previous cherry-pick is now empty, possibly due to conflict resolution.
If you wish to commit it anyway, use:

    git commit --allow-empty

Otherwise, please use 'git cherry-pick --skip'`

	tests := []struct {
		name      string
		res       repo.CmdResult
		operation string
		want      operationOutcome
	}{
		{
			name:      "zero exit is clean",
			res:       repo.CmdResult{ExitCode: 0},
			operation: "cherry-pick",
			want:      outcomeClean,
		},
		{
			name:      "empty cherry-pick is a no-op",
			res:       repo.CmdResult{ExitCode: 1, Stderr: emptyPick},
			operation: "cherry-pick",
			want:      outcomeNoop,
		},
		{
			name:      "empty revert is a no-op",
			res:       repo.CmdResult{ExitCode: 1, Stderr: "The previous revert is now empty"},
			operation: "revert",
			want:      outcomeNoop,
		},
		{
			name:      "nothing to commit is a no-op",
			res:       repo.CmdResult{ExitCode: 1, Stdout: "nothing to commit, working tree clean"},
			operation: "cherry-pick",
			want:      outcomeNoop,
		},
		{
			name:      "conflict text is a conflict candidate",
			res:       repo.CmdResult{ExitCode: 1, Stderr: "error: could not apply 1a2b3c4... fix\nhint: After resolving the conflicts"},
			operation: "cherry-pick",
			want:      outcomeConflict,
		},
		{
			name:      "operation mismatch keeps conflict routing",
			res:       repo.CmdResult{ExitCode: 1, Stderr: "The previous cherry-pick is now empty"},
			operation: "revert",
			want:      outcomeConflict,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyOutcome(tc.res, tc.operation); got != tc.want {
				t.Fatalf("classifyOutcome() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParsePorcelain(t *testing.T) {
	output := "UU source/main.c\n" +
		"DU source/removed.c\n" +
		`R  "old name.c" -> "new name.c"` + "\n" +
		"M  source/other.c\n" +
		"short\n"

	entries := parsePorcelain(output)
	want := []statusEntry{
		{XY: "UU", Path: "source/main.c"},
		{XY: "DU", Path: "source/removed.c"},
		{XY: "R ", Path: "new name.c"},
		{XY: "M ", Path: "source/other.c"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("parsePorcelain() = %+v, want %+v", entries, want)
	}
}

func TestConflictEntriesFilter(t *testing.T) {
	entries := []statusEntry{
		{XY: "UU", Path: "a.c"},
		{XY: "M ", Path: "b.c"},
		{XY: "AA", Path: "c.c"},
		{XY: "DD", Path: "d.c"},
		{XY: "UD", Path: "e.c"},
		{XY: "??", Path: "f.c"},
	}
	got := conflictEntries(entries)
	var paths []string
	for _, e := range got {
		paths = append(paths, e.Path)
	}
	want := []string{"a.c", "c.c", "d.c", "e.c"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("conflictEntries() paths = %v, want %v", paths, want)
	}
}
