// Package pr models merged pull requests and discovers them from git
// history or the GitHub CLI.
package pr

import (
	"fmt"
	"time"
)

// PullRequest is an atomic, already-merged change set. Immutable once
// discovered.
type PullRequest struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	MergedAt    time.Time `json:"merged_at"`
	MergeCommit string    `json:"merge_commit"`
	Files       []string  `json:"files"`
	Diff        string    `json:"-"`
}

// String renders the short human label used in logs and reports.
func (p PullRequest) String() string {
	return fmt.Sprintf("PR #%d: %s", p.Number, p.Title)
}

// DiscoveryError marks a failure to enumerate PRs or fetch their metadata.
// It is the one error class that aborts a run with no partial plan.
type DiscoveryError struct {
	Op  string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("pr discovery failed (%s): %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ByMergeTime sorts oldest-first, ties broken by PR number for stability.
type ByMergeTime []PullRequest

func (s ByMergeTime) Len() int      { return len(s) }
func (s ByMergeTime) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s ByMergeTime) Less(i, j int) bool {
	if s[i].MergedAt.Equal(s[j].MergedAt) {
		return s[i].Number < s[j].Number
	}
	return s[i].MergedAt.Before(s[j].MergedAt)
}
