// Package plan assembles the release plan: which PRs are admitted, in what
// order they are applied, and the dependency validation report attached to
// the run.
package plan

import (
	"fmt"
	"sort"

	"github.com/cmtonkinson/releasepilot/internal/classify"
	"github.com/cmtonkinson/releasepilot/internal/config"
	"github.com/cmtonkinson/releasepilot/internal/decision"
	"github.com/cmtonkinson/releasepilot/internal/deps"
	"github.com/cmtonkinson/releasepilot/internal/pr"
)

// ReleasePlan is the immutable input to execution. Targets is the ordered
// list of PRs the state machine operates on: oldest-first cherry-picks for
// the include strategy, newest-first reverts for the exclude strategy.
type ReleasePlan struct {
	Strategy      string
	Operation     string
	Version       string
	Component     string
	BaseRef       string
	ReleaseBranch string

	Targets      []pr.PullRequest
	Admitted     []int
	Excluded     []int
	ManualReview []int
	Unknown      []int

	Decisions  []decision.Decision
	Validation deps.Report
}

// Build assembles the plan from the loaded configuration, the discovered
// release window, and any capability decisions. Configured PRs without a
// capability decision get a synthesized one; a capability decision for a
// configured PR overrides the configuration. Configured PRs absent from the
// window are recorded in Unknown, never silently dropped.
func Build(cfg config.Config, window []pr.PullRequest, decisions []decision.Decision) (ReleasePlan, error) {
	if cfg.Strategy != config.StrategyInclude && cfg.Strategy != config.StrategyExclude {
		return ReleasePlan{}, fmt.Errorf("plan: unknown strategy %q", cfg.Strategy)
	}

	byNumber := make(map[int]pr.PullRequest, len(window))
	for _, p := range window {
		byNumber[p.Number] = p
	}

	merged := mergeDecisions(cfg, decisions)

	var admitted, excluded, manual, unknown []int
	for _, d := range merged {
		if _, known := byNumber[d.PR]; !known {
			unknown = append(unknown, d.PR)
			continue
		}
		switch d.Kind {
		case decision.Include:
			admitted = append(admitted, d.PR)
		case decision.Exclude:
			excluded = append(excluded, d.PR)
		default:
			manual = append(manual, d.PR)
		}
	}

	if cfg.Strategy == config.StrategyExclude {
		// Every window PR not explicitly excluded or flagged is admitted;
		// the release branch forks from base and already carries them.
		marked := make(map[int]bool)
		for _, n := range excluded {
			marked[n] = true
		}
		for _, n := range manual {
			marked[n] = true
		}
		for _, n := range admitted {
			marked[n] = true
		}
		for _, p := range window {
			if !marked[p.Number] {
				admitted = append(admitted, p.Number)
			}
		}
	}
	sort.Ints(admitted)
	sort.Ints(excluded)
	sort.Ints(manual)
	sort.Ints(unknown)

	targets := orderTargets(cfg, byNumber, admitted, excluded)

	graph := deps.FromDecisions(merged)
	report := deps.Validate(graph, admitted, excluded)

	return ReleasePlan{
		Strategy:      cfg.Strategy,
		Operation:     cfg.OperationName(),
		Version:       cfg.Version,
		Component:     cfg.ComponentName,
		BaseRef:       cfg.BaseBranch,
		ReleaseBranch: cfg.ReleaseBranch,
		Targets:       targets,
		Admitted:      admitted,
		Excluded:      excluded,
		ManualReview:  manual,
		Unknown:       unknown,
		Decisions:     merged,
		Validation:    report,
	}, nil
}

// mergeDecisions combines configured PR lists with capability decisions.
// The configured kind depends on strategy: listed PRs are INCLUDE under
// include and EXCLUDE under exclude.
func mergeDecisions(cfg config.Config, decisions []decision.Decision) []decision.Decision {
	configuredKind := decision.Include
	rationale := "listed in release configuration"
	if cfg.Strategy == config.StrategyExclude {
		configuredKind = decision.Exclude
		rationale = "listed for exclusion in release configuration"
	}

	fromCapability := make(map[int]decision.Decision, len(decisions))
	for _, d := range decisions {
		fromCapability[d.PR] = d
	}

	var merged []decision.Decision
	seen := make(map[int]bool)
	for _, number := range cfg.PRs {
		if seen[number] {
			continue
		}
		seen[number] = true
		if d, ok := fromCapability[number]; ok {
			merged = append(merged, d)
			continue
		}
		merged = append(merged, decision.Decision{
			PR:         number,
			Kind:       configuredKind,
			Confidence: classify.TierHigh,
			Rationale:  rationale,
		})
	}
	for _, d := range decisions {
		if !seen[d.PR] {
			seen[d.PR] = true
			merged = append(merged, d)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].PR < merged[j].PR })
	return merged
}

// orderTargets picks and orders the PRs the state machine will operate on.
func orderTargets(cfg config.Config, byNumber map[int]pr.PullRequest, admitted, excluded []int) []pr.PullRequest {
	numbers := admitted
	if cfg.Strategy == config.StrategyExclude {
		numbers = excluded
	}

	targets := make([]pr.PullRequest, 0, len(numbers))
	for _, n := range numbers {
		targets = append(targets, byNumber[n])
	}
	sort.Sort(pr.ByMergeTime(targets))
	if cfg.Strategy == config.StrategyExclude {
		// Reverts run newest-first so each revert sees the tree state the
		// original commit landed on.
		for i, j := 0, len(targets)-1; i < j; i, j = i+1, j-1 {
			targets[i], targets[j] = targets[j], targets[i]
		}
	}
	return targets
}
