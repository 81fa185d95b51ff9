package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

// reFunctionCall matches an identifier followed by an opening parenthesis.
var reFunctionCall = regexp2.MustCompile(`\b([a-zA-Z_]\w*)\s*\(`, regexp2.RE2)

// cKeywords look like calls but are control flow or operators.
var cKeywords = map[string]struct{}{
	"if": {}, "for": {}, "while": {}, "switch": {}, "return": {},
	"sizeof": {}, "typeof": {}, "defined": {}, "else": {}, "case": {}, "do": {},
}

// safeStdlib are common C library functions a model may reasonably introduce
// even when neither side used them.
var safeStdlib = map[string]struct{}{
	"printf": {}, "fprintf": {}, "snprintf": {}, "strcmp": {}, "strncmp": {},
	"strlen": {}, "malloc": {}, "calloc": {}, "realloc": {}, "free": {},
	"memset": {}, "memcpy": {}, "close": {}, "fclose": {}, "open": {}, "fopen": {},
}

// GuardError rejects an escalation response that failed a structural check.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string {
	return "escalation response rejected: " + e.Reason
}

// guardResponse runs all structural checks over a proposed resolution.
func guardResponse(resolved, ours, theirs []string) error {
	if len(resolved) == 0 || strings.TrimSpace(strings.Join(resolved, "")) == "" {
		return &GuardError{Reason: "empty response"}
	}
	if !balancedDelimiters(resolved) {
		return &GuardError{Reason: "unbalanced braces, parentheses or brackets"}
	}
	if invented := inventedCalls(resolved, ours, theirs); len(invented) > 0 {
		return &GuardError{Reason: fmt.Sprintf("introduced function calls absent from both sides: %s", strings.Join(invented, ", "))}
	}
	if limit := 2*maxLen(ours, theirs) + 5; len(resolved) > limit {
		return &GuardError{Reason: fmt.Sprintf("response has %d lines, limit is %d", len(resolved), limit)}
	}
	return nil
}

// balancedDelimiters checks that braces, parentheses and brackets pair up
// over the whole resolution.
func balancedDelimiters(lines []string) bool {
	code := strings.Join(lines, "\n")
	return strings.Count(code, "{") == strings.Count(code, "}") &&
		strings.Count(code, "(") == strings.Count(code, ")") &&
		strings.Count(code, "[") == strings.Count(code, "]")
}

// inventedCalls returns call names in resolved that appear in neither input
// side nor the stdlib allowlist, sorted for stable error messages.
func inventedCalls(resolved, ours, theirs []string) []string {
	allowed := functionCalls(ours)
	for name := range functionCalls(theirs) {
		allowed[name] = struct{}{}
	}

	var out []string
	for name := range functionCalls(resolved) {
		if _, ok := allowed[name]; ok {
			continue
		}
		if _, ok := safeStdlib[name]; ok {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// functionCalls extracts called identifiers, skipping preprocessor lines and
// comments.
func functionCalls(lines []string) map[string]struct{} {
	calls := make(map[string]struct{})
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "/*") {
			continue
		}
		match, err := reFunctionCall.FindStringMatch(line)
		for err == nil && match != nil {
			name := match.GroupByNumber(1).String()
			if _, keyword := cKeywords[name]; !keyword {
				calls[name] = struct{}{}
			}
			match, err = reFunctionCall.FindNextMatch(match)
		}
	}
	return calls
}

// stripFences removes a leading and trailing markdown code fence.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return content
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func maxLen(a, b []string) int {
	if len(a) > len(b) {
		return len(a)
	}
	return len(b)
}
