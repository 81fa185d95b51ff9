package conflict

import (
	"fmt"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/classify"
)

// Options controls rule-based resolution.
type Options struct {
	// SafetyPrefer permits MEDIUM hunks to resolve to the side carrying the
	// safety pattern. When false, MEDIUM hunks escalate.
	SafetyPrefer bool
	// MinConfidence is the lowest tier a rule resolution may carry and still
	// be accepted without escalation.
	MinConfidence classify.Tier
}

// Resolve applies the deterministic resolution rules to a classified hunk.
// It reports whether the hunk was resolved; LOW hunks and anything below
// MinConfidence are left unresolved for escalation.
func Resolve(h *Hunk, opts Options) bool {
	if h.IsResolved() {
		return true
	}

	switch h.Classification {
	case classify.WhitespaceOnly:
		if !classify.TierHigh.AtLeast(opts.MinConfidence) {
			return false
		}
		h.resolve(OutcomeOurs, h.Ours, "sides are identical modulo whitespace, kept ours")
		return true

	case classify.BraceStyle:
		if !classify.TierHigh.AtLeast(opts.MinConfidence) {
			return false
		}
		h.resolve(OutcomeOurs, h.Ours, "brace placement only, kept ours as style of record")
		return true

	case classify.IncludeReorder:
		if !classify.TierHigh.AtLeast(opts.MinConfidence) {
			return false
		}
		h.resolve(OutcomeMerged, mergeIncludeDirectives(h.Ours, h.Theirs),
			"merged include directives from both sides")
		return true

	case classify.CommentOnly:
		if !classify.TierHigh.AtLeast(opts.MinConfidence) {
			return false
		}
		h.resolve(OutcomeMerged, mergeCommentLines(h.Ours, h.Theirs),
			"kept distinct comment lines from both sides")
		return true

	case classify.NullCheckAdded, classify.ErrorHandlingAdded, classify.SafetyImprovement:
		if !opts.SafetyPrefer || !classify.TierMedium.AtLeast(opts.MinConfidence) {
			return false
		}
		side := classify.SafetySide(h.Classification, h.Ours, h.Theirs)
		switch side {
		case classify.SideOurs:
			h.resolve(OutcomeOurs, h.Ours, fmt.Sprintf("%s on ours, preferred the safety side", h.Classification))
			return true
		case classify.SideTheirs:
			h.resolve(OutcomeTheirs, h.Theirs, fmt.Sprintf("%s on theirs, preferred the safety side", h.Classification))
			return true
		}
		return false
	}

	// functional and mixed hunks always escalate.
	return false
}

// mergeIncludeDirectives unions the include directives of both sides.
// Duplicates are dropped on whitespace-normalized text; quoted (local)
// includes come first, then angle-bracket (system) includes, each group in
// its original relative order with ours ahead of theirs.
func mergeIncludeDirectives(ours, theirs []string) []string {
	seen := make(map[string]struct{})
	var local, system []string

	for _, line := range combined(ours, theirs) {
		if !classify.IsInclude(line) {
			continue
		}
		key := stripSpace(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if strings.Contains(line, `"`) {
			local = append(local, line)
		} else {
			system = append(system, line)
		}
	}
	return append(local, system...)
}

// mergeCommentLines concatenates the distinct comment lines of both sides,
// ours first.
func mergeCommentLines(ours, theirs []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range combined(ours, theirs) {
		key := stripSpace(line)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

// combined returns ours followed by theirs without mutating either.
func combined(ours, theirs []string) []string {
	out := make([]string, 0, len(ours)+len(theirs))
	out = append(out, ours...)
	out = append(out, theirs...)
	return out
}

// stripSpace removes all whitespace from a line for dedup comparison.
func stripSpace(line string) string {
	return strings.Join(strings.Fields(line), "")
}
