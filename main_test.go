package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const usageMessage = "USAGE:\n    releasepilot [global options] <command> [command options]"

func buildCLI(t *testing.T) string {
	t.Helper()
	binaryPath := filepath.Join(t.TempDir(), "releasepilot-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build CLI binary: %v\n%s", err, out)
	}
	return binaryPath
}

func TestCLICommands(t *testing.T) {
	binaryPath := buildCLI(t)

	tests := []struct {
		name           string
		args           []string
		expectedExit   int
		expectedOutput string
	}{
		{
			name:           "no arguments shows usage",
			args:           []string{},
			expectedExit:   2,
			expectedOutput: usageMessage,
		},
		{
			name:           "unknown command shows usage",
			args:           []string{"unknown"},
			expectedExit:   2,
			expectedOutput: usageMessage,
		},
		{
			name:           "help exits clean",
			args:           []string{"help"},
			expectedExit:   0,
			expectedOutput: usageMessage,
		},
		{
			name:           "version command",
			args:           []string{"version"},
			expectedExit:   0,
			expectedOutput: "version=dev commit=unknown built_at=unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(binaryPath, tt.args...)
			output, err := cmd.CombinedOutput()

			var exitCode int
			if err != nil {
				if exitError, ok := err.(*exec.ExitError); ok {
					exitCode = exitError.ExitCode()
				} else {
					t.Fatalf("Unexpected error type: %v", err)
				}
			}

			if exitCode != tt.expectedExit {
				t.Errorf("Expected exit code %d, got %d", tt.expectedExit, exitCode)
			}

			outputStr := strings.TrimSpace(string(output))
			if tt.expectedOutput != "" && !strings.Contains(outputStr, tt.expectedOutput) {
				t.Errorf("Expected output to contain %q, got %q", tt.expectedOutput, outputStr)
			}
		})
	}
}

func TestVersionCommandWithMetadata(t *testing.T) {
	binaryPath := filepath.Join(t.TempDir(), "releasepilot-version-metadata")
	ldflags := "-X github.com/cmtonkinson/releasepilot/internal/buildinfo.Version=1.2.3 -X github.com/cmtonkinson/releasepilot/internal/buildinfo.Commit=8d3f2a1 -X github.com/cmtonkinson/releasepilot/internal/buildinfo.BuiltAt=2025-02-14T09:30:00Z"
	cmd := exec.Command("go", "build", "-ldflags", ldflags, "-o", binaryPath, ".")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build CLI binary with metadata: %v\n%s", err, out)
	}

	output, err := exec.Command(binaryPath, "version").CombinedOutput()
	if err != nil {
		t.Fatalf("version command failed: %v, output: %s", err, output)
	}

	outputStr := strings.TrimSpace(string(output))
	expected := "version=1.2.3 commit=8d3f2a1 built_at=2025-02-14T09:30:00Z"
	if outputStr != expected {
		t.Fatalf("Expected %q, got %q", expected, outputStr)
	}
}

func TestPlanOutsideRepositoryFails(t *testing.T) {
	binaryPath := buildCLI(t)

	tempDir, err := os.MkdirTemp("", "releasepilot-no-repo")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cmd := exec.Command(binaryPath, "plan")
	cmd.Dir = tempDir
	output, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("Expected plan to fail outside a repository, output: %s", output)
	}
	exitError, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("Unexpected error type: %v", err)
	}
	if exitError.ExitCode() != 2 {
		t.Fatalf("Expected exit code 2, got %d: %s", exitError.ExitCode(), output)
	}
	if !strings.Contains(string(output), "no git repository") {
		t.Fatalf("Expected repository discovery error, got: %s", output)
	}
}

func TestStatusUnexpectedArguments(t *testing.T) {
	binaryPath := buildCLI(t)

	cmd := exec.Command(binaryPath, "status", "extra")
	output, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("Expected status with stray arguments to fail, output: %s", output)
	}
	exitError, ok := err.(*exec.ExitError)
	if !ok || exitError.ExitCode() != 2 {
		t.Fatalf("Expected exit code 2, got %v: %s", err, output)
	}
	if !strings.Contains(string(output), "unexpected arguments") {
		t.Fatalf("Expected argument error, got: %s", output)
	}
}
