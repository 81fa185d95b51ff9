package pr

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/cmtonkinson/releasepilot/internal/repo"
)

// reSemverTag matches release tags like 2.5.1 or v2.5.1.
var reSemverTag = regexp2.MustCompile(`^v?\d+\.\d+\.\d+`, regexp2.RE2)

// prPatterns is the ladder of commit-subject shapes a merged PR can take,
// most specific first. The first match wins.
var prPatterns = []*regexp2.Regexp{
	regexp2.MustCompile(`Merge pull request #(\d+)`, regexp2.RE2|regexp2.IgnoreCase),
	regexp2.MustCompile(`Merge PR #(\d+)`, regexp2.RE2|regexp2.IgnoreCase),
	regexp2.MustCompile(`PR[:\s]#(\d+)`, regexp2.RE2|regexp2.IgnoreCase),
	regexp2.MustCompile(`\(#(\d+)\)`, regexp2.RE2|regexp2.IgnoreCase),
	regexp2.MustCompile(`Closes[:\s]#(\d+)`, regexp2.RE2|regexp2.IgnoreCase),
	regexp2.MustCompile(`Fixes[:\s]#(\d+)`, regexp2.RE2|regexp2.IgnoreCase),
	regexp2.MustCompile(`#(\d+)`, regexp2.RE2|regexp2.IgnoreCase),
}

// titleCleanups strip the PR reference noise from a commit subject so the
// remainder can serve as the PR title.
var titleCleanups = []*regexp2.Regexp{
	regexp2.MustCompile(`Merge pull request #\d+\s+from\s+[\w\-/]+\s*`, regexp2.RE2),
	regexp2.MustCompile(`Merge PR #\d+[:\s]*`, regexp2.RE2),
	regexp2.MustCompile(`PR[:\s]#\d+[:\s]*`, regexp2.RE2),
	regexp2.MustCompile(`\(#\d+\)`, regexp2.RE2),
}

// Discovery is the result of enumerating merged PRs since the last release
// tag.
type Discovery struct {
	LastTag         string
	CommitsSinceTag int
	PRs             []PullRequest
}

// LastReleaseTag returns the most recently created semver tag, or empty when
// the repository has none.
func LastReleaseTag(ctx context.Context, git repo.Git) (string, error) {
	out, err := git.Run(ctx, "tag", "--sort=-creatordate")
	if err != nil {
		return "", &DiscoveryError{Op: "list tags", Err: err}
	}
	for _, tag := range strings.Split(strings.TrimSpace(out), "\n") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if ok, err := reSemverTag.MatchString(tag); err == nil && ok {
			return tag, nil
		}
	}
	return "", nil
}

// Discover enumerates PRs merged into baseBranch since the last semver tag,
// oldest-first, with metadata and diffs loaded from git history. Without a
// tag the whole branch history is scanned.
func Discover(ctx context.Context, git repo.Git, baseBranch string) (Discovery, error) {
	tag, err := LastReleaseTag(ctx, git)
	if err != nil {
		return Discovery{}, err
	}

	logRange := baseBranch
	if tag != "" {
		logRange = tag + ".." + baseBranch
	}
	out, err := git.Run(ctx, "log", logRange, "--format=%H%x09%s")
	if err != nil {
		return Discovery{}, &DiscoveryError{Op: "list commits", Err: err}
	}

	discovery := Discovery{LastTag: tag}
	seen := make(map[int]bool)
	var prs []PullRequest

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		discovery.CommitsSinceTag++
		hash, subject, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		number, title, ok := ExtractPRReference(subject)
		if !ok || seen[number] {
			continue
		}
		seen[number] = true

		pullRequest, err := loadFromHistory(ctx, git, number, title, hash)
		if err != nil {
			return Discovery{}, err
		}
		prs = append(prs, pullRequest)
	}

	sort.Sort(ByMergeTime(prs))
	discovery.PRs = prs
	return discovery, nil
}

// ExtractPRReference pulls a PR number and cleaned title out of a commit
// subject. The ladder runs most specific pattern first.
func ExtractPRReference(subject string) (int, string, bool) {
	for _, pattern := range prPatterns {
		match, err := pattern.FindStringMatch(subject)
		if err != nil || match == nil {
			continue
		}
		number, err := strconv.Atoi(match.GroupByNumber(1).String())
		if err != nil || number <= 0 {
			continue
		}
		return number, cleanTitle(subject), true
	}
	return 0, "", false
}

// cleanTitle removes PR-reference noise; falls back to a subject prefix when
// nothing is left.
func cleanTitle(subject string) string {
	title := subject
	for _, cleanup := range titleCleanups {
		if replaced, err := cleanup.Replace(title, "", -1, -1); err == nil {
			title = replaced
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		if len(subject) > 50 {
			return subject[:50]
		}
		return subject
	}
	return title
}

// loadFromHistory fills PR metadata from the merge commit itself. A merge
// commit is diffed against its first parent: the combined diff `git show`
// emits by default is empty for any cleanly merged branch, which would
// discover the PR with no files and no diff.
func loadFromHistory(ctx context.Context, git repo.Git, number int, title, hash string) (PullRequest, error) {
	meta, err := git.Run(ctx, "log", "-1", "--format=%aI%x09%an%x09%P", hash)
	if err != nil {
		return PullRequest{}, &DiscoveryError{Op: fmt.Sprintf("load commit %s", hash), Err: err}
	}
	mergedAt, author, parents := parseCommitMeta(meta)

	filesArgs := []string{"show", "--name-only", "--format=", hash}
	diffArgs := []string{"show", "--format=", hash}
	if parents > 1 {
		filesArgs = []string{"diff", "--name-only", hash + "^1", hash}
		diffArgs = []string{"diff", hash + "^1", hash}
	}

	files, err := git.Run(ctx, filesArgs...)
	if err != nil {
		return PullRequest{}, &DiscoveryError{Op: fmt.Sprintf("list files for %s", hash), Err: err}
	}

	diff, err := git.Run(ctx, diffArgs...)
	if err != nil {
		return PullRequest{}, &DiscoveryError{Op: fmt.Sprintf("load diff for %s", hash), Err: err}
	}

	return PullRequest{
		Number:      number,
		Title:       title,
		Author:      author,
		MergedAt:    mergedAt,
		MergeCommit: hash,
		Files:       splitLines(files),
		Diff:        diff,
	}, nil
}

func parseCommitMeta(meta string) (time.Time, string, int) {
	stamp, rest, _ := strings.Cut(strings.TrimSpace(meta), "\t")
	author, parentList, _ := strings.Cut(rest, "\t")
	mergedAt, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		mergedAt = time.Time{}
	}
	return mergedAt, author, len(strings.Fields(parentList))
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
