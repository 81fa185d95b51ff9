// Package repo provides git repository discovery and command execution.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// gitDirName is the filesystem entry that marks a git repository root.
const gitDirName = ".git"

// ErrRepoNotFound is returned when no git repository root can be discovered.
var ErrRepoNotFound = errors.New("no git repository found")

// DiscoverRootFromCWD resolves the git repository root from the current working directory.
func DiscoverRootFromCWD() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return DiscoverRoot(cwd)
}

// DiscoverRoot resolves the main repository root by walking upward from
// start. When start sits inside a linked worktree, the worktree's gitfile
// is followed back to the main repository so journal, audit, and report
// state always land in one place.
func DiscoverRoot(start string) (string, error) {
	if start == "" {
		return "", fmt.Errorf("%w: provide a start directory or run inside a repo", ErrRepoNotFound)
	}

	absStart, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %s: %w", start, err)
	}

	absStart, err = filepath.EvalSymlinks(absStart)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks for %s: %w", absStart, err)
	}

	info, err := os.Stat(absStart)
	if err != nil {
		return "", fmt.Errorf("stat start path %s: %w", absStart, err)
	}

	current := absStart
	if !info.IsDir() {
		current = filepath.Dir(absStart)
	}

	for {
		gitPath := filepath.Join(current, gitDirName)
		entry, err := os.Stat(gitPath)
		if err == nil {
			if entry.IsDir() {
				return current, nil
			}
			if entry.Mode().IsRegular() {
				return mainRootFromGitfile(current, gitPath)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", gitPath, err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("%w from %s; run inside a git repo or initialize one with `git init`", ErrRepoNotFound, absStart)
}

// mainRootFromGitfile follows a linked worktree's gitfile back to the main
// repository root. The gitfile holds "gitdir: <main>/.git/worktrees/<name>";
// anything else falls back to the worktree directory itself.
func mainRootFromGitfile(worktreeRoot string, gitPath string) (string, error) {
	data, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("read gitfile %s: %w", gitPath, err)
	}
	target := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "gitdir:"))
	if target == "" {
		return worktreeRoot, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(worktreeRoot, target)
	}

	// <main>/.git/worktrees/<name> -> <main>
	cleaned := filepath.Clean(target)
	parent := filepath.Dir(cleaned)
	if filepath.Base(parent) != "worktrees" {
		return worktreeRoot, nil
	}
	gitDir := filepath.Dir(parent)
	if filepath.Base(gitDir) != gitDirName {
		return worktreeRoot, nil
	}
	mainRoot, err := filepath.EvalSymlinks(filepath.Dir(gitDir))
	if err != nil {
		return "", fmt.Errorf("resolve main repository for worktree %s: %w", worktreeRoot, err)
	}
	return mainRoot, nil
}
