package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
version: "2.5.1"
strategy: include
base_branch: develop
target_branch: main
prs: [101, 105, 108]
component_name: CcspPandM
conflict_policy: skip
conflict_resolution:
  smart_merge: true
  min_confidence: MEDIUM
  safety_prefer: true
llm:
  enabled: true
  provider: anthropic
  model: claude-sonnet-4-5
  api_key_env: ANTHROPIC_API_KEY
  timeout_seconds: 20
  max_calls_per_run: 8
`)

	cfg, err := Load(path, Overrides{}, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Version != "2.5.1" {
		t.Fatalf("Version = %q, want 2.5.1", cfg.Version)
	}
	if !cfg.IsInclude() {
		t.Fatalf("IsInclude() = false, want true")
	}
	if len(cfg.PRs) != 3 || cfg.PRs[0] != 101 {
		t.Fatalf("PRs = %v, want [101 105 108]", cfg.PRs)
	}
	if cfg.ReleaseBranch != "release/2.5.1" {
		t.Fatalf("ReleaseBranch = %q, want release/2.5.1", cfg.ReleaseBranch)
	}
	if cfg.ConflictPolicy != PolicySkip {
		t.Fatalf("ConflictPolicy = %q, want skip", cfg.ConflictPolicy)
	}
	if cfg.ConflictResolution.MinConfidence != "MEDIUM" {
		t.Fatalf("MinConfidence = %q, want MEDIUM", cfg.ConflictResolution.MinConfidence)
	}
	if cfg.LLM.Provider != ProviderAnthropic || cfg.LLM.MaxCallsPerRun != 8 {
		t.Fatalf("LLM = %+v, want anthropic with 8 calls", cfg.LLM)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
version: "1.0.0"
strategy: include
prs: [1]
stratagy_typo: oops
`)

	if _, err := Load(path, Overrides{}, nil); err == nil {
		t.Fatalf("Load() = nil, want unknown-field error")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := Load(path, Overrides{}, nil)
	if err == nil {
		t.Fatalf("Load() = nil, want error")
	}
	if !strings.Contains(err.Error(), "read config") {
		t.Fatalf("Load() error = %v, want read config error", err)
	}
}

func TestLoadRejectsSecondDocument(t *testing.T) {
	path := writeConfig(t, `
version: "1.0.0"
strategy: exclude
---
version: "2.0.0"
`)

	_, err := Load(path, Overrides{}, nil)
	if err == nil || !strings.Contains(err.Error(), "second document") {
		t.Fatalf("Load() error = %v, want second document error", err)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
version: "1.0.0"
strategy: exclude
prs: [7]
conflict_policy: pause
`)

	cfg, err := Load(path, Overrides{
		DryRun:         true,
		DryRunSet:      true,
		ConflictPolicy: PolicySkip,
		ReleaseBranch:  "rel/hotfix",
	}, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.DryRun {
		t.Fatalf("DryRun = false, want true")
	}
	if cfg.ConflictPolicy != PolicySkip {
		t.Fatalf("ConflictPolicy = %q, want skip", cfg.ConflictPolicy)
	}
	if cfg.ReleaseBranch != "rel/hotfix" {
		t.Fatalf("ReleaseBranch = %q, want rel/hotfix", cfg.ReleaseBranch)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
strategy: include
`)

	_, err := Load(path, Overrides{}, nil)
	if err == nil || !strings.Contains(err.Error(), "'version' is required") {
		t.Fatalf("Load() error = %v, want version required", err)
	}
}
