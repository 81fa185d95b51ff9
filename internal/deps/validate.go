package deps

import (
	"fmt"
	"sort"
)

// WarningKind labels a validation finding.
type WarningKind string

const (
	// MissingDependency: an admitted PR requires a PR that is not in the
	// admitted set.
	MissingDependency WarningKind = "missing_dependency"
	// ConflictingExclusion: an admitted PR requires a PR that was explicitly
	// excluded from the release.
	ConflictingExclusion WarningKind = "conflicting_exclusion"
)

// Warning is one unmet requirement, attached to both PRs of the edge.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	PR       int         `json:"pr"`
	Requires int         `json:"requires"`
	Detail   string      `json:"detail"`
}

// Recommendation suggests adding one PR to the release set, with the
// admitted PRs that depend on it.
type Recommendation struct {
	PR         int   `json:"pr"`
	Dependents []int `json:"dependents"`
}

// Report is the outcome of one validation pass. Validation annotates the
// plan; it never mutates it and never blocks execution by itself.
type Report struct {
	Warnings        []Warning        `json:"warnings,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Clean reports whether validation produced no warnings.
func (r Report) Clean() bool {
	return len(r.Warnings) == 0
}

// Validate checks every admitted PR's requirements against the admitted set.
// A requirement pointing at a PR in excluded yields a conflicting-exclusion
// warning; any other unmet requirement yields a missing-dependency warning,
// exactly one per (PR, requirement) pair. Recommendations list the PRs to
// add, ordered by how many admitted PRs depend on them, ties broken by PR
// number ascending. Pure: identical inputs yield identical reports.
func Validate(g *Graph, admitted, excluded []int) Report {
	admittedSet := toSet(admitted)
	excludedSet := toSet(excluded)

	ordered := make([]int, 0, len(admittedSet))
	for pr := range admittedSet {
		ordered = append(ordered, pr)
	}
	sort.Ints(ordered)

	var report Report
	dependents := make(map[int]map[int]bool)
	for _, pr := range ordered {
		for _, required := range g.Requires(pr) {
			if admittedSet[required] {
				continue
			}
			w := Warning{Kind: MissingDependency, PR: pr, Requires: required}
			if excludedSet[required] {
				w.Kind = ConflictingExclusion
				w.Detail = fmt.Sprintf("PR #%d requires PR #%d, which is explicitly excluded", pr, required)
			} else {
				w.Detail = fmt.Sprintf("PR #%d requires PR #%d, which is not in the release set", pr, required)
			}
			report.Warnings = append(report.Warnings, w)

			if dependents[required] == nil {
				dependents[required] = make(map[int]bool)
			}
			dependents[required][pr] = true
		}
	}

	for pr, who := range dependents {
		rec := Recommendation{PR: pr}
		for d := range who {
			rec.Dependents = append(rec.Dependents, d)
		}
		sort.Ints(rec.Dependents)
		report.Recommendations = append(report.Recommendations, rec)
	}
	sort.Slice(report.Recommendations, func(i, j int) bool {
		a, b := report.Recommendations[i], report.Recommendations[j]
		if len(a.Dependents) != len(b.Dependents) {
			return len(a.Dependents) > len(b.Dependents)
		}
		return a.PR < b.PR
	})
	return report
}

func toSet(numbers []int) map[int]bool {
	set := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		set[n] = true
	}
	return set
}
