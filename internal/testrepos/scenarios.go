package testrepos

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Fork marks the point a release branch will fork from, returning the SHA
// and tagging it as a release.
func (r *TempRepo) Fork(tb testing.TB, tag string) string {
	tb.Helper()
	r.RunGit(tb, "checkout", r.Base)
	sha := strings.TrimSpace(r.RunGit(tb, "rev-parse", "HEAD"))
	r.Tag(tb, tag)
	return sha
}

// Head returns the current HEAD SHA.
func (r *TempRepo) Head(tb testing.TB) string {
	tb.Helper()
	return strings.TrimSpace(r.RunGit(tb, "rev-parse", "HEAD"))
}

// FileContent reads a repo-relative file from the working tree.
func (r *TempRepo) FileContent(tb testing.TB, rel string) string {
	tb.Helper()
	data, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(rel)))
	if err != nil {
		tb.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}
