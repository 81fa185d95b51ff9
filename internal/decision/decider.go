package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/classify"
	"github.com/cmtonkinson/releasepilot/internal/llm"
	"github.com/cmtonkinson/releasepilot/internal/pr"
)

const decisionSystemPrompt = `You are an expert release engineer for embedded systems.
Your task is to decide whether a Pull Request should be INCLUDED or EXCLUDED from a release branch.

RULES:
1. Respond with a JSON object ONLY (no markdown, no extra text)
2. Consider the full context: PR changes, conflicts, dependencies, release strategy
3. Be conservative: when in doubt, flag for MANUAL_REVIEW
4. NEVER suggest code changes, only decide on the entire PR
5. Consider both technical and strategic factors

JSON Response Format:
{
  "decision": "INCLUDE" | "EXCLUDE" | "MANUAL_REVIEW",
  "confidence": "HIGH" | "MEDIUM" | "LOW",
  "rationale": "Brief explanation of the decision (2-3 sentences)",
  "requires_prs": [123, 456]
}`

// Request is the full context handed to the capability for one PR.
type Request struct {
	PR        pr.PullRequest
	Analysis  classify.Analysis
	Conflicts []string
	Siblings  []pr.PullRequest
	Strategy  string
	Version   string
	Base      string
}

// Decider runs PR-level decisions through the provider under the run budget.
type Decider struct {
	provider    llm.Provider
	budget      *llm.Budget
	temperature float64
}

// NewDecider builds a Decider. A nil provider yields MANUAL_REVIEW for every
// PR rather than failing.
func NewDecider(provider llm.Provider, budget *llm.Budget, temperature float64) *Decider {
	return &Decider{provider: provider, budget: budget, temperature: temperature}
}

// Decide renders a verdict for one PR. Provider errors and timeouts
// downgrade to MANUAL_REVIEW; they never abort the run.
func (d *Decider) Decide(ctx context.Context, req Request) Decision {
	if d == nil || d.provider == nil {
		return manualReview(req.PR.Number, "no decision capability configured")
	}
	if err := d.budget.Acquire(); err != nil {
		if errors.Is(err, llm.ErrBudgetExhausted) {
			return manualReview(req.PR.Number, "decision call budget exhausted")
		}
		return manualReview(req.PR.Number, err.Error())
	}

	response, err := d.provider.Complete(ctx, llm.Request{
		System:      decisionSystemPrompt,
		Prompt:      buildDecisionPrompt(req),
		Temperature: d.temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return manualReview(req.PR.Number, "decision capability timed out")
		}
		return manualReview(req.PR.Number, fmt.Sprintf("decision capability failed: %v", err))
	}
	return ParseResponse(req.PR.Number, response)
}

func manualReview(prNumber int, rationale string) Decision {
	return Decision{
		PR:         prNumber,
		Kind:       ManualReview,
		Confidence: classify.TierLow,
		Rationale:  rationale,
	}
}

// buildDecisionPrompt renders the PR, its semantic analysis, detected
// conflicts and the sibling PRs of the release window.
func buildDecisionPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Release Strategy: %s\n\n", strings.ToUpper(req.Strategy))
	fmt.Fprintf(&b, "### PR to Evaluate\n**PR #%d**: %s\n", req.PR.Number, req.PR.Title)
	fmt.Fprintf(&b, "- Author: %s\n", req.PR.Author)
	if !req.PR.MergedAt.IsZero() {
		fmt.Fprintf(&b, "- Merged: %s\n", req.PR.MergedAt.Format("2006-01-02 15:04"))
	}
	if len(req.PR.Files) > 0 {
		fmt.Fprintf(&b, "- Files modified (%d):\n", len(req.PR.Files))
		for _, file := range req.PR.Files {
			fmt.Fprintf(&b, "  - %s\n", file)
		}
	}

	fmt.Fprintf(&b, "\n### Code Pattern Analysis\n%s\n", req.Analysis.Summary)
	fmt.Fprintf(&b, "- Dominant change type: %s (confidence %s)\n", req.Analysis.DominantType, req.Analysis.Confidence)
	fmt.Fprintf(&b, "- NULL checks added: %d, error handling added: %d, safety patterns added: %d\n",
		req.Analysis.NullChecksAdded, req.Analysis.ErrorHandlingAdded, req.Analysis.SafetyPatternsAdded)

	if req.PR.Diff != "" {
		fmt.Fprintf(&b, "\n### PR Diff Summary\n```diff\n%s\n```\n", truncate(req.PR.Diff, 8000))
	}

	b.WriteString("\n### Detected Conflicts\n")
	if len(req.Conflicts) == 0 {
		b.WriteString("none\n")
	} else {
		for _, c := range req.Conflicts {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if len(req.Siblings) > 0 {
		b.WriteString("\n### Context: Other PRs in This Release\n")
		for _, sibling := range req.Siblings {
			if sibling.Number == req.PR.Number {
				continue
			}
			fmt.Fprintf(&b, "- PR #%d: %s\n", sibling.Number, sibling.Title)
		}
	}

	fmt.Fprintf(&b, "\n### Current Release Plan\n- Strategy: %s\n- Target version: %s\n- Base branch: %s\n",
		req.Strategy, req.Version, req.Base)
	fmt.Fprintf(&b, "\nDecide whether PR #%d should be INCLUDED in the %s release. Respond with the JSON decision object.",
		req.PR.Number, req.Version)
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
