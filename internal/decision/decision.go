// Package decision renders and parses PR-level INCLUDE/EXCLUDE verdicts from
// the external decision capability.
package decision

import (
	"encoding/json"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/classify"
)

// Kind is the strategic verdict for one PR.
type Kind string

const (
	Include      Kind = "INCLUDE"
	Exclude      Kind = "EXCLUDE"
	ManualReview Kind = "MANUAL_REVIEW"
)

// Decision is the per-PR output of the decision step. Produced once per PR
// per run; immutable.
type Decision struct {
	PR         int           `json:"pr"`
	Kind       Kind          `json:"decision"`
	Confidence classify.Tier `json:"confidence"`
	Rationale  string        `json:"rationale"`
	Requires   []int         `json:"requires,omitempty"`
}

// rawDecision mirrors the JSON contract. requires_prs is the documented
// field name; requires is accepted as a lenient alias.
type rawDecision struct {
	Decision    string `json:"decision"`
	Confidence  string `json:"confidence"`
	Rationale   string `json:"rationale"`
	RequiresPRs []int  `json:"requires_prs"`
	Requires    []int  `json:"requires"`
}

// ParseResponse interprets a capability response for one PR. Malformed or
// missing fields degrade to MANUAL_REVIEW with LOW confidence and an empty
// requires set; parsing never fails.
func ParseResponse(prNumber int, raw string) Decision {
	fallback := Decision{
		PR:         prNumber,
		Kind:       ManualReview,
		Confidence: classify.TierLow,
		Rationale:  "decision response was malformed",
	}

	payload := extractJSONObject(raw)
	if payload == "" {
		return fallback
	}

	var parsed rawDecision
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return fallback
	}

	kind := Kind(strings.ToUpper(strings.TrimSpace(parsed.Decision)))
	if kind != Include && kind != Exclude && kind != ManualReview {
		return fallback
	}

	confidence, err := classify.ParseTier(parsed.Confidence)
	if err != nil {
		confidence = classify.TierLow
	}

	requires := parsed.RequiresPRs
	if len(requires) == 0 {
		requires = parsed.Requires
	}

	return Decision{
		PR:         prNumber,
		Kind:       kind,
		Confidence: confidence,
		Rationale:  strings.TrimSpace(parsed.Rationale),
		Requires:   dedupPositive(requires),
	}
}

// extractJSONObject pulls the outermost JSON object out of a response that
// may be wrapped in markdown fences or prose.
func extractJSONObject(raw string) string {
	s := raw
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// dedupPositive drops non-positive and repeated PR numbers, preserving
// order.
func dedupPositive(numbers []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, n := range numbers {
		if n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
