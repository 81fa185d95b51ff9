package pr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// MetadataSource lists merged PRs with richer metadata than merge-commit
// subjects carry.
type MetadataSource interface {
	List(ctx context.Context, baseBranch string, since time.Time) ([]PullRequest, error)
}

// Enrich overlays metadata from source onto a discovered window, matched by
// PR number. Titles, authors, merge times, and file lists are replaced when
// the source carries them; history-derived diffs are kept. On source failure
// the window is returned untouched alongside the error so callers can degrade
// to history-only discovery.
func Enrich(ctx context.Context, window []PullRequest, source MetadataSource, baseBranch string) ([]PullRequest, error) {
	if source == nil || len(window) == 0 {
		return window, nil
	}
	listed, err := source.List(ctx, baseBranch, time.Time{})
	if err != nil {
		return window, err
	}
	byNumber := make(map[int]PullRequest, len(listed))
	for _, p := range listed {
		byNumber[p.Number] = p
	}

	out := make([]PullRequest, len(window))
	copy(out, window)
	for i := range out {
		meta, ok := byNumber[out[i].Number]
		if !ok {
			continue
		}
		if meta.Title != "" {
			out[i].Title = meta.Title
		}
		if meta.Author != "" {
			out[i].Author = meta.Author
		}
		if !meta.MergedAt.IsZero() {
			out[i].MergedAt = meta.MergedAt
		}
		if len(meta.Files) > 0 {
			out[i].Files = meta.Files
		}
	}
	sort.Sort(ByMergeTime(out))
	return out, nil
}

// GHSource discovers merged PRs through the GitHub CLI, which carries richer
// metadata than merge-commit subjects. The git-history path remains the
// fallback when gh or network access is unavailable.
type GHSource struct {
	// Repo is the owner/name slug passed to gh. Empty uses the current
	// repository.
	Repo string
	// Limit caps the listing; gh defaults are too small for a release window.
	Limit int
}

// ghPullRequest mirrors the gh pr list JSON fields we request.
type ghPullRequest struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	MergedAt    time.Time `json:"mergedAt"`
	MergeCommit struct {
		OID string `json:"oid"`
	} `json:"mergeCommit"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	Files []struct {
		Path string `json:"path"`
	} `json:"files"`
}

// Available reports whether the gh CLI is on PATH.
func (s GHSource) Available() bool {
	_, err := exec.LookPath("gh")
	return err == nil
}

// List returns PRs merged into baseBranch after since (zero time means no
// lower bound), oldest-first.
func (s GHSource) List(ctx context.Context, baseBranch string, since time.Time) ([]PullRequest, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = 500
	}
	args := []string{
		"pr", "list",
		"--base", baseBranch,
		"--state", "merged",
		"--json", "number,title,mergeCommit,mergedAt,author,files",
		"--limit", fmt.Sprint(limit),
	}
	if s.Repo != "" {
		args = append(args, "--repo", s.Repo)
	}

	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &DiscoveryError{
			Op:  "gh pr list",
			Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	var raw []ghPullRequest
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, &DiscoveryError{Op: "decode gh output", Err: err}
	}

	var prs []PullRequest
	for _, entry := range raw {
		if !since.IsZero() && !entry.MergedAt.After(since) {
			continue
		}
		files := make([]string, 0, len(entry.Files))
		for _, f := range entry.Files {
			files = append(files, f.Path)
		}
		prs = append(prs, PullRequest{
			Number:      entry.Number,
			Title:       entry.Title,
			Author:      entry.Author.Login,
			MergedAt:    entry.MergedAt,
			MergeCommit: entry.MergeCommit.OID,
			Files:       files,
		})
	}
	sort.Sort(ByMergeTime(prs))
	return prs, nil
}
