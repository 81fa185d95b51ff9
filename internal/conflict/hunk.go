// Package conflict parses version-control conflict markers into hunks,
// resolves them by deterministic rule where confidence allows, and escalates
// the rest to the external decision capability. Everything here operates on
// in-memory buffers; the working tree is never touched.
package conflict

import "github.com/cmtonkinson/releasepilot/internal/classify"

// Outcome records how a hunk was resolved.
type Outcome string

const (
	OutcomeNone   Outcome = ""
	OutcomeOurs   Outcome = "ours"
	OutcomeTheirs Outcome = "theirs"
	OutcomeMerged Outcome = "merged"
	OutcomeCustom Outcome = "custom"
)

// Provenance identifies the external capability that produced a custom
// resolution. Rule-based outcomes carry an empty Provenance.
type Provenance struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Hunk is one conflicting region bounded by conflict markers. Ours and
// Theirs hold the two sides without their marker lines. Classification and
// Tier are assigned at parse time; Outcome and Resolved are filled in by the
// resolver or the escalator.
type Hunk struct {
	Index          int
	Ours           []string
	Theirs         []string
	OursLabel      string
	TheirsLabel    string
	ContextBefore  []string
	ContextAfter   []string
	Classification classify.Classification
	Tier           classify.Tier

	Outcome    Outcome
	Resolved   []string
	Reason     string
	Provenance Provenance
}

// IsResolved reports whether an outcome has been recorded.
func (h *Hunk) IsResolved() bool {
	return h.Outcome != OutcomeNone
}

// resolve records an outcome and its resulting lines.
func (h *Hunk) resolve(outcome Outcome, lines []string, reason string) {
	h.Outcome = outcome
	h.Resolved = lines
	h.Reason = reason
}

// Summary is the per-hunk audit record emitted after file resolution.
type Summary struct {
	File           string                  `json:"file"`
	Hunk           int                     `json:"hunk"`
	Classification classify.Classification `json:"classification"`
	Tier           classify.Tier           `json:"confidence"`
	Outcome        Outcome                 `json:"outcome"`
	Reason         string                  `json:"reason"`
	Provenance     Provenance              `json:"provenance,omitempty"`
}

// Summarize builds the audit record for a hunk within the named file.
func (h *Hunk) Summarize(path string) Summary {
	return Summary{
		File:           path,
		Hunk:           h.Index,
		Classification: h.Classification,
		Tier:           h.Tier,
		Outcome:        h.Outcome,
		Reason:         h.Reason,
		Provenance:     h.Provenance,
	}
}
