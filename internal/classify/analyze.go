package classify

import (
	"fmt"
	"strings"
)

// Analysis summarizes the semantic character of a whole PR diff. It feeds
// the decision prompt and the per-PR conflict-analysis audit record.
type Analysis struct {
	DominantType        Classification `json:"dominant_type"`
	NullChecksAdded     int            `json:"null_checks_added"`
	ErrorHandlingAdded  int            `json:"error_handling_added"`
	SafetyPatternsAdded int            `json:"safety_patterns_added"`
	FunctionalChanges   int            `json:"functional_changes"`
	CosmeticOnly        bool           `json:"cosmetic_only"`
	SafetyFocused       bool           `json:"safety_focused"`
	Confidence          Tier           `json:"confidence"`
	Summary             string         `json:"summary"`
}

// AnalyzeDiff classifies a full unified diff at PR granularity. Added and
// removed lines are pooled across all files; the dominant change type is
// derived from the same precedence ladder used for conflict hunks.
func AnalyzeDiff(diff string) Analysis {
	var added, removed []string
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added = append(added, line[1:])
		case strings.HasPrefix(line, "-"):
			removed = append(removed, line[1:])
		}
	}

	nullChecks := countMatches(added, reNullCheck) - countMatches(removed, reNullCheck)
	errorHandling := countMatches(added, reErrorHandling) - countMatches(removed, reErrorHandling)
	safetyPatterns := countMatches(added, reSafety) - countMatches(removed, reSafety)

	dominant, _ := Classify(removed, added)

	cosmeticOnly := dominant == WhitespaceOnly || dominant == IncludeReorder ||
		dominant == CommentOnly || dominant == BraceStyle
	safetyFocused := dominant == NullCheckAdded || dominant == ErrorHandlingAdded ||
		dominant == SafetyImprovement ||
		nullChecks+errorHandling+safetyPatterns > 2

	functional := 0
	for _, line := range added {
		if normalizeLine(line) == "" {
			continue
		}
		if matches(reCommentLine, line) || matches(reInclude, line) {
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed == "{" || trimmed == "}" {
			continue
		}
		functional++
	}

	confidence := TierLow
	switch total := len(added) + len(removed); {
	case total < 10:
		confidence = TierHigh
	case total < 50:
		confidence = TierMedium
	}

	var summary string
	switch {
	case cosmeticOnly:
		summary = fmt.Sprintf("cosmetic changes only (%s)", dominant)
	case safetyFocused:
		summary = fmt.Sprintf("safety improvements: %d NULL checks, %d error handlers, %d safety patterns",
			max(nullChecks, 0), max(errorHandling, 0), max(safetyPatterns, 0))
	default:
		summary = fmt.Sprintf("functional changes: %d lines modified", functional)
	}

	return Analysis{
		DominantType:        dominant,
		NullChecksAdded:     max(nullChecks, 0),
		ErrorHandlingAdded:  max(errorHandling, 0),
		SafetyPatternsAdded: max(safetyPatterns, 0),
		FunctionalChanges:   functional,
		CosmeticOnly:        cosmeticOnly,
		SafetyFocused:       safetyFocused,
		Confidence:          confidence,
		Summary:             summary,
	}
}
