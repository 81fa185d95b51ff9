package pr

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource returns canned metadata or a canned error.
type fakeSource struct {
	prs []PullRequest
	err error
}

func (f fakeSource) List(_ context.Context, _ string, _ time.Time) ([]PullRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prs, nil
}

func TestEnrichOverlaysMetadata(t *testing.T) {
	window := []PullRequest{
		{Number: 100, Title: "Merge pull request #100 from acme/feature/pr-100", MergeCommit: "abc", Diff: "diff --git a/widget.c b/widget.c"},
		{Number: 101, Title: "Fix telemetry counter (#101)", MergeCommit: "def"},
	}
	mergedAt := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	source := fakeSource{prs: []PullRequest{
		{Number: 100, Title: "Add widget", Author: "rdiaz", MergedAt: mergedAt, Files: []string{"widget.c", "widget.h"}},
	}}

	enriched, err := Enrich(context.Background(), window, source, "develop")
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if len(enriched) != 2 {
		t.Fatalf("len(enriched) = %d, want 2", len(enriched))
	}
	got := enriched[0]
	if got.Title != "Add widget" || got.Author != "rdiaz" || !got.MergedAt.Equal(mergedAt) {
		t.Fatalf("enriched PR #100 = %+v", got)
	}
	if len(got.Files) != 2 || got.Files[1] != "widget.h" {
		t.Fatalf("Files = %v, want widget.c widget.h", got.Files)
	}
	if got.Diff != "diff --git a/widget.c b/widget.c" {
		t.Fatalf("Diff must keep the history-derived text, got %q", got.Diff)
	}
	if got.MergeCommit != "abc" {
		t.Fatalf("MergeCommit = %q, want history sha", got.MergeCommit)
	}
	if enriched[1].Title != "Fix telemetry counter (#101)" {
		t.Fatalf("unlisted PR must keep history metadata, got %+v", enriched[1])
	}
}

func TestEnrichKeepsWindowOnSourceFailure(t *testing.T) {
	window := []PullRequest{{Number: 100, Title: "Merge pull request #100"}}
	source := fakeSource{err: errors.New("gh: auth required")}

	enriched, err := Enrich(context.Background(), window, source, "develop")
	if err == nil {
		t.Fatalf("Enrich() error = nil, want source failure")
	}
	if len(enriched) != 1 || enriched[0].Title != "Merge pull request #100" {
		t.Fatalf("window must be untouched on failure, got %+v", enriched)
	}
}

func TestEnrichWithoutSource(t *testing.T) {
	window := []PullRequest{{Number: 100}}
	enriched, err := Enrich(context.Background(), window, nil, "develop")
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if len(enriched) != 1 {
		t.Fatalf("len(enriched) = %d, want 1", len(enriched))
	}
}

var _ MetadataSource = GHSource{}
