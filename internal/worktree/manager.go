// Package worktree manages isolated git worktrees for release lines, so a
// promotion run never disturbs the operator's checkout.
package worktree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/audit"
	"github.com/cmtonkinson/releasepilot/internal/slug"
)

const (
	// localStateDirName is the relative path for transient releasepilot state.
	localStateDirName = "_releasepilot/_local-state"
	// worktreeDirName holds the per-release worktrees.
	worktreeDirName = "worktrees"
	// metadataDirName holds metadata for release worktrees.
	metadataDirName = "meta"
	// localStateDirMode defines permissions for the local state directory.
	localStateDirMode = 0o755
	// releaseDirPrefix prefixes per-release worktree directories.
	releaseDirPrefix = "release-"
)

// Manager coordinates creation and reuse of release worktrees.
type Manager struct {
	repoRoot      string
	localStateDir string
	auditor       *audit.Logger
}

// Spec defines the inputs needed to locate or create a release worktree.
type Spec struct {
	Version       string
	ReleaseBranch string
	BaseRef       string
}

// Result captures the resolved worktree location and whether it was reused.
type Result struct {
	Path         string
	RelativePath string
	Reused       bool
}

// NewManager constructs a Manager rooted at the provided repository root.
func NewManager(repoRoot string, auditor *audit.Logger) (Manager, error) {
	if strings.TrimSpace(repoRoot) == "" {
		return Manager{}, errors.New("repo root is required")
	}
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return Manager{}, fmt.Errorf("resolve absolute repo root %s: %w", repoRoot, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return Manager{}, fmt.Errorf("stat repo root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return Manager{}, fmt.Errorf("repo root %s is not a directory", absRoot)
	}
	localStateDir := filepath.Join(absRoot, localStateDirName)
	return Manager{repoRoot: absRoot, localStateDir: localStateDir, auditor: auditor}, nil
}

// WorktreePath returns the deterministic worktree path for a release version.
func (manager Manager) WorktreePath(version string) (string, error) {
	if strings.TrimSpace(manager.localStateDir) == "" {
		return "", errors.New("worktree manager is not initialized")
	}
	if err := validateVersion(version); err != nil {
		return "", err
	}
	return filepath.Join(manager.localStateDir, worktreeDirName, releaseDirName(version)), nil
}

// EnsureWorktree returns a release worktree path, creating the release branch
// from the base ref when neither exists yet.
func (manager Manager) EnsureWorktree(spec Spec) (Result, error) {
	if strings.TrimSpace(manager.repoRoot) == "" || strings.TrimSpace(manager.localStateDir) == "" {
		return Result{}, errors.New("worktree manager is not initialized")
	}
	if err := validateVersion(spec.Version); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(spec.ReleaseBranch) == "" {
		return Result{}, errors.New("release branch is required")
	}

	if err := os.MkdirAll(filepath.Join(manager.localStateDir, worktreeDirName), localStateDirMode); err != nil {
		return Result{}, fmt.Errorf("create worktree directory: %w", err)
	}

	path, reused, err := manager.locateExistingWorktree(spec)
	if err != nil {
		return Result{}, err
	}

	if reused {
		if err := manager.ensureMetadata(spec, path); err != nil {
			return Result{}, err
		}
		relative, err := repoRelativePath(manager.repoRoot, path)
		if err != nil {
			return Result{}, err
		}
		return Result{Path: path, RelativePath: relative, Reused: true}, nil
	}

	target, err := manager.WorktreePath(spec.Version)
	if err != nil {
		return Result{}, err
	}

	if err := manager.addWorktree(target, spec); err != nil {
		return Result{}, err
	}

	if err := manager.ensureMetadata(spec, target); err != nil {
		return Result{}, err
	}

	relative, err := repoRelativePath(manager.repoRoot, target)
	if err != nil {
		return Result{}, err
	}
	_ = manager.auditor.Log(audit.Entry{Event: audit.EventWorktreeCreate, Fields: []audit.Field{
		{Key: "version", Value: spec.Version},
		{Key: "branch", Value: spec.ReleaseBranch},
		{Key: "path", Value: relative},
	}})
	return Result{Path: target, RelativePath: relative, Reused: false}, nil
}

// Remove detaches and deletes the worktree for a release version. The release
// branch itself is retained; only the checkout is discarded.
func (manager Manager) Remove(version string) error {
	path, ok, err := manager.ExistingWorktreePath(version)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := manager.runGit("worktree", "remove", "--force", path); err != nil {
		return err
	}
	metaPath := manager.metadataFilePath(version)
	if err := os.Remove(metaPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove metadata %s: %w", metaPath, err)
	}
	relative, relErr := repoRelativePath(manager.repoRoot, path)
	if relErr != nil {
		relative = path
	}
	_ = manager.auditor.Log(audit.Entry{Event: audit.EventWorktreeDelete, Fields: []audit.Field{
		{Key: "version", Value: version},
		{Key: "path", Value: relative},
	}})
	return nil
}

// addWorktree creates the git worktree for the given spec, creating the
// release branch from the base ref when it does not exist yet.
func (manager Manager) addWorktree(path string, spec Spec) error {
	branchExists, err := manager.branchExists(spec.ReleaseBranch)
	if err != nil {
		return err
	}
	if branchExists {
		if _, err := manager.runGit("worktree", "add", path, spec.ReleaseBranch); err != nil {
			return err
		}
		return nil
	}
	if strings.TrimSpace(spec.BaseRef) == "" {
		return fmt.Errorf("branch %q does not exist; base ref is required", spec.ReleaseBranch)
	}
	if _, err := manager.runGit("rev-parse", "--verify", "--quiet", spec.BaseRef+"^{commit}"); err != nil {
		return fmt.Errorf("base ref %q does not resolve to a commit", spec.BaseRef)
	}
	if _, err := manager.runGit("worktree", "add", "-b", spec.ReleaseBranch, path, spec.BaseRef); err != nil {
		return err
	}
	_ = manager.auditor.Log(audit.Entry{Event: audit.EventBranchCreate, Fields: []audit.Field{
		{Key: "branch", Value: spec.ReleaseBranch},
		{Key: "base", Value: spec.BaseRef},
	}})
	return nil
}

func (manager Manager) locateExistingWorktree(spec Spec) (string, bool, error) {
	if meta, ok, err := manager.readMetadata(spec.Version); err != nil {
		return "", false, err
	} else if ok && meta.WorktreeRelPath != "" {
		path := filepath.Join(manager.repoRoot, filepath.FromSlash(meta.WorktreeRelPath))
		if exists, err := pathExists(path); err != nil {
			return "", false, err
		} else if exists {
			if strings.TrimSpace(spec.ReleaseBranch) != "" {
				if err := ensureIsWorktree(path, spec.ReleaseBranch); err != nil {
					return "", false, err
				}
			}
			return path, true, nil
		}
	}

	canonical, err := manager.WorktreePath(spec.Version)
	if err != nil {
		return "", false, err
	}
	if exists, err := pathExists(canonical); err != nil {
		return "", false, err
	} else if exists {
		if strings.TrimSpace(spec.ReleaseBranch) != "" {
			if err := ensureIsWorktree(canonical, spec.ReleaseBranch); err != nil {
				return "", false, err
			}
		}
		return canonical, true, nil
	}
	return "", false, nil
}

// ExistingWorktreePath returns the actual worktree path for a version when present.
func (manager Manager) ExistingWorktreePath(version string) (string, bool, error) {
	if err := validateVersion(version); err != nil {
		return "", false, err
	}
	return manager.locateExistingWorktree(Spec{Version: version})
}

func (manager Manager) ensureMetadata(spec Spec, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("worktree path is required")
	}
	meta := metadata{
		Branch:  spec.ReleaseBranch,
		BaseRef: spec.BaseRef,
	}
	relative, err := repoRelativePath(manager.repoRoot, path)
	if err != nil {
		return err
	}
	meta.WorktreeRelPath = relative
	return manager.writeMetadata(spec.Version, meta)
}

func (manager Manager) metadataDir() string {
	return filepath.Join(manager.localStateDir, worktreeDirName, metadataDirName)
}

func (manager Manager) metadataFilePath(version string) string {
	return filepath.Join(manager.metadataDir(), fmt.Sprintf("%s.json", releaseDirName(version)))
}

type metadata struct {
	WorktreeRelPath string `json:"worktree_rel_path"`
	Branch          string `json:"branch,omitempty"`
	BaseRef         string `json:"base_ref,omitempty"`
}

func (manager Manager) readMetadata(version string) (metadata, bool, error) {
	metaPath := manager.metadataFilePath(version)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return metadata{}, false, nil
		}
		return metadata{}, false, fmt.Errorf("read metadata %s: %w", metaPath, err)
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return metadata{}, false, fmt.Errorf("decode metadata %s: %w", metaPath, err)
	}
	return meta, true, nil
}

func (manager Manager) writeMetadata(version string, meta metadata) error {
	dir := manager.metadataDir()
	if err := os.MkdirAll(dir, localStateDirMode); err != nil {
		return fmt.Errorf("create metadata directory %s: %w", dir, err)
	}
	metaPath := manager.metadataFilePath(version)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata %s: %w", metaPath, err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("write metadata %s: %w", metaPath, err)
	}
	return nil
}

// branchExists reports whether a local branch exists in the repository.
func (manager Manager) branchExists(branch string) (bool, error) {
	if strings.TrimSpace(branch) == "" {
		return false, errors.New("branch is required")
	}
	_, err := manager.runGit("show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	if isExitStatus(err, 1) {
		return false, nil
	}
	return false, err
}

// ensureIsWorktree validates the path is a git worktree on the expected branch.
func ensureIsWorktree(path string, branch string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat worktree path %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("worktree path %s is not a directory", path)
	}
	if err := verifyInsideWorktree(path); err != nil {
		return err
	}
	currentBranch, err := currentBranch(path)
	if err != nil {
		return err
	}
	if currentBranch != branch {
		return fmt.Errorf("worktree at %s is on branch %q, expected %q", path, currentBranch, branch)
	}
	return nil
}

// verifyInsideWorktree confirms the path is a git worktree.
func verifyInsideWorktree(path string) error {
	output, err := runGitWithDir(path, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return fmt.Errorf("verify worktree %s: %w", path, err)
	}
	if strings.TrimSpace(output) != "true" {
		return fmt.Errorf("path %s is not a git worktree", path)
	}
	return nil
}

// currentBranch resolves the active branch in the worktree.
func currentBranch(path string) (string, error) {
	output, err := runGitWithDir(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve worktree branch %s: %w", path, err)
	}
	return strings.TrimSpace(output), nil
}

// pathExists reports whether the path exists on disk.
func pathExists(path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, errors.New("path is required")
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat path %s: %w", path, err)
}

// releaseDirName builds the worktree directory name for a release version.
func releaseDirName(version string) string {
	return releaseDirPrefix + slug.Filename(version)
}

// validateVersion ensures the version string is safe for filesystem use.
func validateVersion(version string) error {
	if strings.TrimSpace(version) == "" {
		return errors.New("version is required")
	}
	if strings.Contains(version, "\\") {
		return fmt.Errorf("version %q must not contain path separators", version)
	}
	if strings.Contains(version, "..") {
		return fmt.Errorf("version %q must not contain '..'", version)
	}
	return nil
}

// repoRelativePath returns a repo-relative path using forward slashes.
func repoRelativePath(root string, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("resolve relative path for %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// runGit executes a git command in the repo root.
func (manager Manager) runGit(args ...string) (string, error) {
	return runGitWithDir(manager.repoRoot, args...)
}

// runGitWithDir runs a git command in the provided directory.
func runGitWithDir(dir string, args ...string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("git directory is required")
	}
	if len(args) == 0 {
		return "", errors.New("git arguments are required")
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// isExitStatus reports whether the error is an exec.ExitError with the given status.
func isExitStatus(err error, status int) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return exitErr.ExitCode() == status
}
