package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git is an explicit repository handle. All version-control operations go
// through this value so that callers never depend on an ambient working
// directory.
type Git struct {
	root string
}

// NewGit constructs a handle rooted at the provided repository root.
func NewGit(root string) (Git, error) {
	if strings.TrimSpace(root) == "" {
		return Git{}, errors.New("repo root is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Git{}, fmt.Errorf("resolve absolute repo root %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return Git{}, fmt.Errorf("stat repo root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return Git{}, fmt.Errorf("repo root %s is not a directory", absRoot)
	}
	return Git{root: absRoot}, nil
}

// Root returns the absolute repository root.
func (g Git) Root() string { return g.root }

// CmdResult captures a finished git command, including output on failure.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout and stderr joined for diagnostic matching.
func (r CmdResult) Combined() string {
	return r.Stdout + "\n" + r.Stderr
}

// Run executes a git command and fails on any non-zero exit.
func (g Git) Run(ctx context.Context, args ...string) (string, error) {
	result, err := g.Exec(ctx, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("git %s failed: %s", strings.Join(args, " "), strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

// Exec executes a git command and reports its outcome without treating a
// non-zero exit as an error. Callers that classify conflict and no-op
// diagnostics need the captured output either way.
func (g Git) Exec(ctx context.Context, args ...string) (CmdResult, error) {
	if len(args) == 0 {
		return CmdResult{}, errors.New("git arguments are required")
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CmdResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run git %s: %w", strings.Join(args, " "), err)
	}
	return result, nil
}
