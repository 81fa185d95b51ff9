package deps

import (
	"sort"

	"github.com/cmtonkinson/releasepilot/internal/pr"
)

// Overlap records that an admitted PR touches the same files as an earlier,
// non-admitted PR in the window. Shared files with an earlier merge suggest
// the admitted PR builds on the other one.
type Overlap struct {
	PR          int      `json:"pr"`
	DependsOn   int      `json:"depends_on"`
	SharedFiles []string `json:"shared_files"`
}

// InferOverlaps scans the release window for file-level dependency hints.
// For each admitted PR it reports every non-admitted PR that shares changed
// files with it and merged earlier. One entry per (admitted, other) pair,
// ordered by admitted PR then other PR ascending.
func InferOverlaps(admitted []int, window []pr.PullRequest) []Overlap {
	admittedSet := toSet(admitted)
	byNumber := make(map[int]pr.PullRequest, len(window))
	for _, p := range window {
		byNumber[p.Number] = p
	}

	ordered := append([]int(nil), admitted...)
	sort.Ints(ordered)

	var overlaps []Overlap
	for _, num := range ordered {
		included, ok := byNumber[num]
		if !ok || len(included.Files) == 0 {
			continue
		}
		includedFiles := toFileSet(included.Files)

		for _, other := range window {
			if admittedSet[other.Number] || len(other.Files) == 0 {
				continue
			}
			// A PR merged after the included one is a subsequent change,
			// not a prerequisite.
			if !other.MergedAt.Before(included.MergedAt) {
				continue
			}
			shared := intersect(includedFiles, other.Files)
			if len(shared) == 0 {
				continue
			}
			overlaps = append(overlaps, Overlap{
				PR:          num,
				DependsOn:   other.Number,
				SharedFiles: shared,
			})
		}

		start := len(overlaps)
		for i := start - 1; i >= 0 && overlaps[i].PR == num; i-- {
			start = i
		}
		sort.Slice(overlaps[start:], func(i, j int) bool {
			return overlaps[start+i].DependsOn < overlaps[start+j].DependsOn
		})
	}
	return overlaps
}

func toFileSet(files []string) map[string]bool {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return set
}

func intersect(set map[string]bool, files []string) []string {
	var shared []string
	for _, f := range files {
		if set[f] {
			shared = append(shared, f)
		}
	}
	sort.Strings(shared)
	return shared
}
