// Package testrepos builds scratch git repositories with merged-PR history
// for tests.
package testrepos

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TempRepo represents a temporary git repository that can be reused in tests.
type TempRepo struct {
	Root string
	Base string
}

// New creates a temporary git repository on a develop base branch with an
// initial commit that tests can run against.
func New(tb testing.TB) *TempRepo {
	tb.Helper()
	root, err := os.MkdirTemp("", "releasepilot-test-repo-*")
	if err != nil {
		tb.Fatalf("create temp repo directory: %v", err)
	}

	repo := &TempRepo{Root: root, Base: "develop"}
	tb.Cleanup(func() {
		if cleanupErr := repo.Cleanup(); cleanupErr != nil {
			tb.Fatalf("cleanup temp repo: %v", cleanupErr)
		}
	})

	repo.initialize(tb)
	return repo
}

// RunGit executes git in the repository directory and fails the test if git returns an error.
func (r *TempRepo) RunGit(tb testing.TB, args ...string) string {
	tb.Helper()
	output, err := runGit(r.Root, args...)
	if err != nil {
		tb.Fatalf("git %s failed: %v: %s", strings.Join(args, " "), err, output)
	}
	return output
}

// Cleanup removes the temporary repository root. Missing directories are treated as success.
func (r *TempRepo) Cleanup() error {
	if r == nil || r.Root == "" {
		return nil
	}
	if err := os.RemoveAll(r.Root); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp repo %s: %w", r.Root, err)
	}
	return nil
}

// WriteFile writes a file relative to the repo root, creating directories as
// needed.
func (r *TempRepo) WriteFile(tb testing.TB, rel string, content string) {
	tb.Helper()
	path := filepath.Join(r.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", rel, err)
	}
}

// Commit stages everything and commits with the given message, returning the
// commit SHA.
func (r *TempRepo) Commit(tb testing.TB, message string) string {
	tb.Helper()
	r.RunGit(tb, "add", "-A")
	r.RunGit(tb, "commit", "-m", message)
	return strings.TrimSpace(r.RunGit(tb, "rev-parse", "HEAD"))
}

// MergePR creates a feature branch off the base, applies the given files,
// and merges it back with a pull-request merge commit. Returns the merge
// commit SHA.
func (r *TempRepo) MergePR(tb testing.TB, number int, title string, files map[string]string) string {
	tb.Helper()
	branch := fmt.Sprintf("feature/pr-%d", number)
	r.RunGit(tb, "checkout", "-b", branch, r.Base)
	for rel, content := range files {
		r.WriteFile(tb, rel, content)
	}
	r.Commit(tb, title)
	r.RunGit(tb, "checkout", r.Base)
	r.RunGit(tb, "merge", "--no-ff", "--no-edit", "-m",
		fmt.Sprintf("Merge pull request #%d from acme/%s", number, branch), branch)
	r.RunGit(tb, "branch", "-D", branch)
	return strings.TrimSpace(r.RunGit(tb, "rev-parse", "HEAD"))
}

// Tag creates an annotated release tag on the current HEAD.
func (r *TempRepo) Tag(tb testing.TB, name string) {
	tb.Helper()
	r.RunGit(tb, "tag", "-a", name, "-m", name)
}

// CheckoutReleaseBranch creates (or resets) a release branch from the given
// start point and leaves it checked out.
func (r *TempRepo) CheckoutReleaseBranch(tb testing.TB, name string, start string) {
	tb.Helper()
	r.RunGit(tb, "checkout", "-B", name, start)
}

func (r *TempRepo) initialize(tb testing.TB) {
	tb.Helper()
	r.RunGit(tb, "init", "--initial-branch="+r.Base)
	r.RunGit(tb, "config", "user.name", "Releasepilot Test")
	r.RunGit(tb, "config", "user.email", "test@example.com")

	readme := filepath.Join(r.Root, "README.md")
	if err := os.WriteFile(readme, []byte("# Temp Release Repository\n"), 0o644); err != nil {
		tb.Fatalf("write README: %v", err)
	}

	r.RunGit(tb, "add", "README.md")
	r.RunGit(tb, "commit", "-m", "Initial commit")
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(output), nil
}
