package conflict

import (
	"context"
	"errors"

	"github.com/cmtonkinson/releasepilot/internal/llm"
)

// ResolveFileHunks runs the full pipeline over every hunk in a file:
// deterministic rules first, then escalation for whatever remains. Hunks
// that neither path resolves are left unresolved with the failure recorded
// in their reason; the caller checks f.Resolved() to decide the operation's
// fate.
func ResolveFileHunks(ctx context.Context, f *File, opts Options, esc *Escalator, meta EscalationMeta) []Summary {
	budgetSpent := false
	for _, h := range f.Hunks() {
		if Resolve(h, opts) {
			continue
		}
		if esc == nil || budgetSpent {
			if h.Reason == "" {
				h.Reason = "no escalation available"
			}
			continue
		}
		if err := esc.Escalate(ctx, f.Path, h, meta); err != nil {
			h.Reason = err.Error()
			if errors.Is(err, llm.ErrBudgetExhausted) {
				budgetSpent = true
			}
		}
	}
	return f.Summaries()
}
