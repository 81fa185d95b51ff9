// Package config provides default configuration handling.
package config

import (
	"fmt"
	"strings"
)

const (
	defaultBaseBranch     = "develop"
	defaultTargetBranch   = "main"
	defaultConflictPolicy = PolicyPause
	defaultMinConfidence  = "LOW"
	defaultProvider       = ProviderOpenAI
	defaultModel          = "gpt-4o-mini"
	defaultAPIKeyEnv      = "OPENAI_API_KEY"
	defaultTemperature    = 0.1
	defaultTimeoutSecs    = 10
	defaultMaxCalls       = 5
)

// Defaults returns the documented configuration defaults.
//
// Defaults:
// - base_branch: "develop"
// - target_branch: "main"
// - release_branch: "release/<version>"
// - conflict_policy: "pause"
// - conflict_resolution.smart_merge: true
// - conflict_resolution.min_confidence: "LOW"
// - conflict_resolution.safety_prefer: true
// - llm.provider: "openai"
// - llm.model: "gpt-4o-mini"
// - llm.api_key_env: "OPENAI_API_KEY"
// - llm.temperature: 0.1
// - llm.timeout_seconds: 10
// - llm.max_calls_per_run: 5
func Defaults() Config {
	return Config{
		BaseBranch:     defaultBaseBranch,
		TargetBranch:   defaultTargetBranch,
		ConflictPolicy: defaultConflictPolicy,
		ConflictResolution: ResolutionConfig{
			SmartMerge:    true,
			MinConfidence: defaultMinConfidence,
			SafetyPrefer:  true,
		},
		LLM: LLMConfig{
			Provider:       defaultProvider,
			Model:          defaultModel,
			APIKeyEnv:      defaultAPIKeyEnv,
			Temperature:    defaultTemperature,
			TimeoutSeconds: defaultTimeoutSecs,
			MaxCallsPerRun: defaultMaxCalls,
		},
	}
}

// ApplyDefaults fills missing or invalid values with documented defaults.
func ApplyDefaults(cfg Config, warn func(string)) Config {
	defaults := Defaults()

	cfg.Strategy = strings.ToLower(strings.TrimSpace(cfg.Strategy))
	cfg.BaseBranch = normalizeString(cfg.BaseBranch, defaults.BaseBranch, "base_branch", warn)
	cfg.TargetBranch = normalizeString(cfg.TargetBranch, defaults.TargetBranch, "target_branch", warn)
	if strings.TrimSpace(cfg.ReleaseBranch) == "" && strings.TrimSpace(cfg.Version) != "" {
		cfg.ReleaseBranch = "release/" + strings.TrimSpace(cfg.Version)
	}
	cfg.ConflictPolicy = normalizeChoice(
		cfg.ConflictPolicy,
		defaults.ConflictPolicy,
		"conflict_policy",
		[]string{PolicyPause, PolicySkip},
		warn,
	)
	cfg.ConflictResolution.MinConfidence = normalizeChoice(
		strings.ToUpper(strings.TrimSpace(cfg.ConflictResolution.MinConfidence)),
		defaults.ConflictResolution.MinConfidence,
		"conflict_resolution.min_confidence",
		[]string{"HIGH", "MEDIUM", "LOW"},
		warn,
	)

	cfg.LLM.Provider = normalizeChoice(
		strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)),
		defaults.LLM.Provider,
		"llm.provider",
		[]string{ProviderOpenAI, ProviderAnthropic, ProviderGeneric},
		warn,
	)
	cfg.LLM.Model = normalizeString(cfg.LLM.Model, defaults.LLM.Model, "llm.model", warn)
	cfg.LLM.APIKeyEnv = normalizeString(cfg.LLM.APIKeyEnv, defaults.LLM.APIKeyEnv, "llm.api_key_env", warn)
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		emitWarning(warn, fmt.Sprintf("llm.temperature %v out of range; using %v", cfg.LLM.Temperature, defaults.LLM.Temperature))
		cfg.LLM.Temperature = defaults.LLM.Temperature
	}
	cfg.LLM.TimeoutSeconds = normalizePositiveInt(cfg.LLM.TimeoutSeconds, defaults.LLM.TimeoutSeconds, "llm.timeout_seconds", warn)
	cfg.LLM.MaxCallsPerRun = normalizePositiveInt(cfg.LLM.MaxCallsPerRun, defaults.LLM.MaxCallsPerRun, "llm.max_calls_per_run", warn)

	return cfg
}

// Validate checks the configuration for schema errors. Schema errors are the
// only configuration problems that abort a run.
func Validate(cfg Config) error {
	var problems []string
	if strings.TrimSpace(cfg.Version) == "" {
		problems = append(problems, "'version' is required")
	}
	if cfg.Strategy != StrategyInclude && cfg.Strategy != StrategyExclude {
		problems = append(problems, fmt.Sprintf("'strategy' must be %q or %q (got: %q)", StrategyInclude, StrategyExclude, cfg.Strategy))
	}
	if cfg.Strategy == StrategyInclude && len(cfg.PRs) == 0 {
		problems = append(problems, "'prs' list is required when strategy is 'include'")
	}
	for _, n := range cfg.PRs {
		if n <= 0 {
			problems = append(problems, fmt.Sprintf("'prs' entries must be positive integers (got: %d)", n))
			break
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
}

// normalizeString keeps non-blank values and falls back to a default.
func normalizeString(value string, fallback string, field string, warn func(string)) string {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		return trimmed
	}
	if value != "" {
		emitWarning(warn, fmt.Sprintf("%s is blank; using %q", field, fallback))
	}
	return fallback
}

// normalizeChoice keeps values from the allowed set and falls back to a default.
func normalizeChoice(value string, fallback string, field string, allowed []string, warn func(string)) string {
	if value == "" {
		return fallback
	}
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	emitWarning(warn, fmt.Sprintf("%s %q is not one of %v; using %q", field, value, allowed, fallback))
	return fallback
}

// normalizePositiveInt keeps positive values and falls back to a default.
func normalizePositiveInt(value int, fallback int, field string, warn func(string)) int {
	if value > 0 {
		return value
	}
	if value != 0 {
		emitWarning(warn, fmt.Sprintf("%s %d must be positive; using %d", field, value, fallback))
	}
	return fallback
}

// emitWarning sends a warning to the configured sink.
func emitWarning(warn func(string), message string) {
	if warn == nil {
		return
	}
	warn(message)
}
