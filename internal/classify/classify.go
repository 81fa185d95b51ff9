// Package classify assigns a change type and confidence tier to conflicting
// regions of C/C++ source. Classification is a pure function over the two
// sides of a conflict; it never touches the working tree.
package classify

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Classification describes the semantic nature of a conflicting change.
type Classification string

const (
	WhitespaceOnly     Classification = "whitespace_only"
	IncludeReorder     Classification = "include_reorder"
	CommentOnly        Classification = "comment_only"
	BraceStyle         Classification = "brace_style"
	NullCheckAdded     Classification = "null_check_added"
	ErrorHandlingAdded Classification = "error_handling_added"
	SafetyImprovement  Classification = "safety_improvement"
	Functional         Classification = "functional"
	Mixed              Classification = "mixed"
)

// Tier is the confidence level attached to a classification. HIGH permits
// rule-only resolution, MEDIUM permits rule resolution biased toward the
// safety side, LOW always escalates.
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
)

// Rank maps tiers to a comparable ordering with HIGH highest.
func (t Tier) Rank() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	}
	return 0
}

// AtLeast reports whether t meets or exceeds the given minimum tier.
func (t Tier) AtLeast(min Tier) bool {
	return t.Rank() >= min.Rank()
}

// ParseTier converts a case-insensitive tier label.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(TierHigh):
		return TierHigh, nil
	case string(TierMedium):
		return TierMedium, nil
	case string(TierLow):
		return TierLow, nil
	}
	return "", fmt.Errorf("unknown confidence tier: %q", s)
}

// Side identifies which side of a conflict a property belongs to.
type Side int

const (
	SideNone Side = iota
	SideOurs
	SideTheirs
)

// String returns the conflict-marker name for the side.
func (s Side) String() string {
	switch s {
	case SideOurs:
		return "ours"
	case SideTheirs:
		return "theirs"
	}
	return "none"
}

// Classify assigns a change type and confidence tier to the two sides of a
// conflict hunk. Checks run in fixed precedence order and stop at the first
// match, so a hunk that qualifies for a HIGH rule is never downgraded by a
// later MEDIUM or LOW check.
func Classify(ours, theirs []string) (Classification, Tier) {
	normOurs := normalizeLines(ours)
	normTheirs := normalizeLines(theirs)

	if equalLines(normOurs, normTheirs) {
		return WhitespaceOnly, TierHigh
	}
	if allIncludes(ours) && allIncludes(theirs) {
		return IncludeReorder, TierHigh
	}
	if allComments(ours) && allComments(theirs) {
		return CommentOnly, TierHigh
	}
	if braceStyleOnly(normOurs, normTheirs) {
		return BraceStyle, TierHigh
	}

	oursNull := anyMatch(ours, reNullCheck)
	theirsNull := anyMatch(theirs, reNullCheck)
	if oursNull != theirsNull {
		return NullCheckAdded, TierMedium
	}

	oursErr := anyMatch(ours, reErrorHandling)
	theirsErr := anyMatch(theirs, reErrorHandling)
	if oursErr != theirsErr {
		return ErrorHandlingAdded, TierMedium
	}

	if countMatches(ours, reSafety) != countMatches(theirs, reSafety) {
		return SafetyImprovement, TierMedium
	}

	if patternSpread(ours) >= 2 && patternSpread(theirs) >= 2 {
		return Mixed, TierLow
	}
	return Functional, TierLow
}

// SafetySide identifies which side of a MEDIUM-classified hunk carries the
// safety pattern. HIGH and LOW classifications have no safety side.
func SafetySide(c Classification, ours, theirs []string) Side {
	switch c {
	case NullCheckAdded:
		return exclusiveSide(ours, theirs, reNullCheck)
	case ErrorHandlingAdded:
		return exclusiveSide(ours, theirs, reErrorHandling)
	case SafetyImprovement:
		oursCount := countMatches(ours, reSafety)
		theirsCount := countMatches(theirs, reSafety)
		if oursCount > theirsCount {
			return SideOurs
		}
		if theirsCount > oursCount {
			return SideTheirs
		}
	}
	return SideNone
}

// exclusiveSide returns the side that matches the pattern when exactly one
// side does.
func exclusiveSide(ours, theirs []string, re *regexp2.Regexp) Side {
	oursHas := anyMatch(ours, re)
	theirsHas := anyMatch(theirs, re)
	switch {
	case oursHas && !theirsHas:
		return SideOurs
	case theirsHas && !oursHas:
		return SideTheirs
	}
	return SideNone
}

// braceStyleOnly reports whether two normalized line sets hold the same
// characters in the same order and differ only in where line breaks fall.
// This covers K&R versus Allman brace placement, where the brace moves
// between lines without changing the token stream.
func braceStyleOnly(normOurs, normTheirs []string) bool {
	if equalLines(normOurs, normTheirs) {
		return false
	}
	return strings.Join(normOurs, "") == strings.Join(normTheirs, "")
}

// patternSpread counts how many distinct pattern families appear in the lines.
// Two or more on both sides marks a hunk as mixed rather than a single
// functional change.
func patternSpread(lines []string) int {
	spread := 0
	if anyMatch(lines, reNullCheck) {
		spread++
	}
	if anyMatch(lines, reErrorHandling) {
		spread++
	}
	if anyMatch(lines, reSafety) {
		spread++
	}
	if anyMatch(lines, reResourceAcquire) {
		spread++
	}
	if anyMatch(lines, reInclude) {
		spread++
	}
	if anyMatch(lines, reCommentLine) {
		spread++
	}
	return spread
}

// equalLines compares two line slices element-wise.
func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
