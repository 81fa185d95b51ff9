// Package config defines the release configuration model for releasepilot.
package config

import "strings"

// Config defines the full configuration surface for a release run.
type Config struct {
	Version            string             `yaml:"version"`
	Strategy           string             `yaml:"strategy"`
	BaseBranch         string             `yaml:"base_branch"`
	TargetBranch       string             `yaml:"target_branch"`
	ReleaseBranch      string             `yaml:"release_branch"`
	PRs                []int              `yaml:"prs"`
	ComponentName      string             `yaml:"component_name"`
	DryRun             bool               `yaml:"dry_run"`
	ConflictPolicy     string             `yaml:"conflict_policy"`
	Notify             []string           `yaml:"notify"`
	ConflictResolution ResolutionConfig   `yaml:"conflict_resolution"`
	LLM                LLMConfig          `yaml:"llm"`
}

// ResolutionConfig captures hunk-level conflict resolution settings.
type ResolutionConfig struct {
	SmartMerge    bool   `yaml:"smart_merge"`
	MinConfidence string `yaml:"min_confidence"` // "HIGH", "MEDIUM", or "LOW"
	SafetyPrefer  bool   `yaml:"safety_prefer"`
}

// LLMConfig captures the external decision capability settings.
type LLMConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Provider       string  `yaml:"provider"` // "openai", "anthropic", or "generic"
	Model          string  `yaml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Endpoint       string  `yaml:"endpoint"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxCallsPerRun int     `yaml:"max_calls_per_run"`
}

// Release strategies.
const (
	StrategyInclude = "include"
	StrategyExclude = "exclude"
)

// Conflict policies.
const (
	PolicyPause = "pause"
	PolicySkip  = "skip"
)

// Built-in LLM provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGeneric   = "generic"
)

// IsInclude reports whether the configured strategy is include.
func (c Config) IsInclude() bool {
	return strings.EqualFold(strings.TrimSpace(c.Strategy), StrategyInclude)
}

// OperationName returns the git operation implied by the strategy.
func (c Config) OperationName() string {
	if c.IsInclude() {
		return "cherry-pick"
	}
	return "revert"
}
