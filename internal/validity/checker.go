// Package validity confirms that a resolved source file is at least
// syntactically well-formed before its resolution is accepted.
package validity

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const compileTimeout = 10 * time.Second

// cExtensions are the file types the compile check applies to. Anything
// else passes by default.
var cExtensions = map[string]bool{
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true, ".cxx": true,
}

// Checker runs the syntax-only check. When no compiler is available it falls
// back to a structural scan of the file content.
type Checker struct {
	compiler string
}

// NewChecker probes for a C compiler on PATH. A missing compiler is not an
// error; the checker degrades to the structural scan.
func NewChecker() Checker {
	path, err := exec.LookPath("gcc")
	if err != nil {
		return Checker{}
	}
	return Checker{compiler: path}
}

// Check validates one file. Returns nil when the file is acceptable; a
// non-nil error means the resolution that produced this file must be
// discarded.
func (c Checker) Check(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("validity: path is required")
	}
	if !cExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("validity: read %s: %w", path, err)
	}
	if err := scanStructure(string(content)); err != nil {
		return fmt.Errorf("validity: %s: %w", path, err)
	}

	if c.compiler == "" {
		return nil
	}
	return c.compile(ctx, path)
}

// compile runs a syntax-only pass over the file in isolation.
func (c Checker) compile(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, compileTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.compiler, "-fsyntax-only", "-x", "c", path)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// A hung or killed compiler is not evidence against the file.
		return nil
	}
	return fmt.Errorf("validity: syntax check failed for %s: %s", path, firstLines(string(output), 5))
}

// scanStructure rejects files that still carry conflict markers or have
// unbalanced braces. Cheap enough to run even when a compiler follows.
func scanStructure(content string) error {
	for _, marker := range []string{"<<<<<<< ", ">>>>>>> "} {
		if strings.Contains(content, marker) {
			return fmt.Errorf("unresolved conflict marker %q present", strings.TrimSpace(marker))
		}
	}
	if open, close := strings.Count(content, "{"), strings.Count(content, "}"); open != close {
		return fmt.Errorf("unbalanced braces: %d open, %d close", open, close)
	}
	return nil
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
