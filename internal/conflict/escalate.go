package conflict

import (
	"context"
	"fmt"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/audit"
	"github.com/cmtonkinson/releasepilot/internal/llm"
)

const escalationSystemPrompt = `You are an expert C/C++ developer specializing in embedded systems.
Your task is to resolve a Git merge conflict by producing the CORRECT merged code.

RULES:
1. Output ONLY the resolved C code, no markdown, no explanations
2. The output must be syntactically valid C that compiles
3. Do NOT invent new function calls, variables, or logic not present in either side
4. Preserve ALL safety improvements (NULL checks, bounds checks, error handling)
5. Preserve ALL functional changes from the intended side
6. If both sides add different features, include BOTH if they don't conflict
7. When in doubt, prefer the side that adds safety checks or error handling
8. If one side should win outright, you may answer with the single word OURS or THEIRS`

// SiblingPR is release-plan context included in escalation prompts.
type SiblingPR struct {
	Number int
	Title  string
}

// EscalationMeta carries the PR-level context of an escalation.
type EscalationMeta struct {
	PRNumber int
	Diff     string
	Mode     string
	Strategy string
	Siblings []SiblingPR
}

// Escalator forwards unresolved hunks to the external decision capability,
// applying a run-scoped call budget and structural guards on the response.
// Every round trip is appended to the audit trail, accepted or not.
type Escalator struct {
	provider    llm.Provider
	budget      *llm.Budget
	model       string
	temperature float64
	auditor     *audit.Logger
}

// NewEscalator builds an escalator over a provider. The model name is only
// recorded as provenance on custom resolutions. A nil auditor discards the
// escalation trail.
func NewEscalator(provider llm.Provider, budget *llm.Budget, model string, temperature float64, auditor *audit.Logger) *Escalator {
	return &Escalator{
		provider:    provider,
		budget:      budget,
		model:       model,
		temperature: temperature,
		auditor:     auditor,
	}
}

// Escalate asks the provider to resolve one hunk. On success the hunk is
// resolved in place: OURS/THEIRS answers map to the matching side, anything
// else becomes a custom resolution subject to the response guards. All
// failure modes leave the hunk unresolved and return the error for auditing.
func (e *Escalator) Escalate(ctx context.Context, path string, h *Hunk, meta EscalationMeta) error {
	if e == nil || e.provider == nil {
		return fmt.Errorf("no escalation capability configured")
	}
	if err := e.budget.Acquire(); err != nil {
		e.audit(meta.PRNumber, path, h, "budget_exhausted", "", "", err)
		return err
	}

	prompt := buildEscalationPrompt(path, h, meta)
	response, err := e.provider.Complete(ctx, llm.Request{
		System:      escalationSystemPrompt,
		Prompt:      prompt,
		Temperature: e.temperature,
	})
	if err != nil {
		e.audit(meta.PRNumber, path, h, "provider_error", prompt, "", err)
		return fmt.Errorf("escalate hunk %d in %s: %w", h.Index, path, err)
	}

	switch strings.ToUpper(strings.TrimSpace(response)) {
	case "OURS":
		h.resolve(OutcomeOurs, h.Ours, "escalation chose ours")
		h.Provenance = Provenance{Provider: e.provider.Name(), Model: e.model}
		e.audit(meta.PRNumber, path, h, string(OutcomeOurs), prompt, response, nil)
		return nil
	case "THEIRS":
		h.resolve(OutcomeTheirs, h.Theirs, "escalation chose theirs")
		h.Provenance = Provenance{Provider: e.provider.Name(), Model: e.model}
		e.audit(meta.PRNumber, path, h, string(OutcomeTheirs), prompt, response, nil)
		return nil
	}

	resolved := splitResponseLines(stripFences(response))
	if err := guardResponse(resolved, h.Ours, h.Theirs); err != nil {
		e.audit(meta.PRNumber, path, h, "guard_rejected", prompt, response, err)
		return err
	}

	h.resolve(OutcomeCustom, resolved, fmt.Sprintf("escalation merged %d+%d lines into %d",
		len(h.Ours), len(h.Theirs), len(resolved)))
	h.Provenance = Provenance{Provider: e.provider.Name(), Model: e.model}
	e.audit(meta.PRNumber, path, h, string(OutcomeCustom), prompt, response, nil)
	return nil
}

// audit appends one escalation round trip with the full prompt and raw
// response.
func (e *Escalator) audit(pr int, path string, h *Hunk, outcome string, prompt string, response string, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	_ = e.auditor.LogEscalation(pr, path, h.Index, e.provider.Name(), e.model, outcome, prompt, response, reason)
}

// splitResponseLines breaks a response into lines, dropping trailing blanks.
func splitResponseLines(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// buildEscalationPrompt renders the hunk with its surrounding context and
// the release-plan metadata.
func buildEscalationPrompt(path string, h *Hunk, meta EscalationMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Conflict in `%s` (hunk %d)\n\n", path, h.Index)
	fmt.Fprintf(&b, "### Operation: %s\n", strings.ToUpper(meta.Mode))
	switch meta.Mode {
	case "revert":
		b.WriteString("We are reverting a PR's commit from the release branch. 'THEIRS' is the change being reverted; we want to UNDO its effect.\n")
	default:
		b.WriteString("We are cherry-picking a PR's commit into the release branch. 'THEIRS' is the incoming PR change we want to include.\n")
	}
	fmt.Fprintf(&b, "\n### Classification: %s (confidence %s)\n", h.Classification, h.Tier)

	if len(meta.Siblings) > 0 {
		fmt.Fprintf(&b, "\n### Context: %s release in progress, PRs in this run:\n", strings.ToUpper(meta.Strategy))
		for _, pr := range meta.Siblings {
			fmt.Fprintf(&b, "  - PR #%d: %s\n", pr.Number, pr.Title)
		}
	}

	writeBlock := func(title string, lines []string) {
		fmt.Fprintf(&b, "\n### %s:\n```c\n", title)
		if len(lines) == 0 {
			b.WriteString("// (none)\n")
		} else {
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	writeBlock("Code BEFORE the conflict (context)", h.ContextBefore)
	writeBlock("OURS side (current branch)", h.Ours)
	writeBlock("THEIRS side (incoming change)", h.Theirs)
	writeBlock("Code AFTER the conflict (context)", h.ContextAfter)

	if meta.Diff != "" {
		fmt.Fprintf(&b, "\n### Full PR #%d diff:\n```diff\n%s\n```\n", meta.PRNumber, truncate(meta.Diff, 8000))
	}

	b.WriteString("\nProduce the correctly merged code for this conflict hunk. Output ONLY the resolved C code lines, or the single word OURS or THEIRS.")
	return b.String()
}

// truncate caps prompt sections so one huge diff cannot blow the context
// window.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
