package classify

import (
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// Pattern matchers for C/C++ source lines. Compiled once at init in RE2 mode
// so match behavior stays linear on untrusted diff content.
var (
	reInclude      = regexp2.MustCompile(`^\s*#\s*include\s+[<"].*[>"]`, regexp2.RE2)
	reCommentLine  = regexp2.MustCompile(`^\s*(/\*.*\*/|//.*|\*.*|\*/)\s*$`, regexp2.RE2)
	reCommentStart = regexp2.MustCompile(`^\s*/\*`, regexp2.RE2)
	reCommentEnd   = regexp2.MustCompile(`\*/\s*$`, regexp2.RE2)

	reNullCheck = regexp2.MustCompile(
		`if\s*\(\s*!?\s*\w+\s*(==|!=)\s*NULL\s*\)|`+
			`if\s*\(\s*NULL\s*(==|!=)\s*\w+\s*\)|`+
			`if\s*\(\s*!\s*\w+\s*\)|`+
			`if\s*\(\s*\w+\s*\)`,
		regexp2.RE2|regexp2.IgnoreCase)

	reErrorHandling = regexp2.MustCompile(
		`return\s+ANSC_STATUS_FAILURE|`+
			`return\s+ANSC_STATUS_SUCCESS|`+
			`return\s+(-1|NULL|false|FALSE)|`+
			`exit\s*\(\s*1\s*\)|`+
			`CcspTraceError|CcspTraceWarning|CcspTraceInfo|`+
			`ERR_CHK|ERROR_CHK|`+
			`goto\s+\w*error\w*|goto\s+\w*fail\w*|goto\s+cleanup`,
		regexp2.RE2|regexp2.IgnoreCase)

	reSafety = regexp2.MustCompile(
		`if\s*\(\s*!\s*\w+\s*\)|`+
			`if\s*\(\s*\w+\s*==\s*NULL|`+
			`if\s*\(\s*NULL\s*==|`+
			`snprintf\s*\(|`+
			`strncpy\s*\(|`+
			`strncat\s*\(|`+
			`close\s*\(\s*\w+\s*\)|`+
			`free\s*\(\s*\w+\s*\)|`+
			`fclose\s*\(|`+
			`va_end\s*\(|`+
			`pthread_mutex_unlock|`+
			`memset\s*\(\s*\w+\s*,\s*0`,
		regexp2.RE2|regexp2.IgnoreCase)

	reResourceAcquire = regexp2.MustCompile(
		`malloc\s*\(|calloc\s*\(|realloc\s*\(|`+
			`fopen\s*\(|open\s*\(|socket\s*\(|`+
			`pthread_mutex_lock`,
		regexp2.RE2|regexp2.IgnoreCase)
)

// matches reports whether a single line matches the pattern. Match errors
// (regexp2 timeouts) are treated as no-match.
func matches(re *regexp2.Regexp, line string) bool {
	ok, err := re.MatchString(line)
	return err == nil && ok
}

// anyMatch reports whether any line matches the pattern.
func anyMatch(lines []string, re *regexp2.Regexp) bool {
	for _, line := range lines {
		if matches(re, line) {
			return true
		}
	}
	return false
}

// countMatches counts the lines that match the pattern.
func countMatches(lines []string, re *regexp2.Regexp) int {
	count := 0
	for _, line := range lines {
		if matches(re, line) {
			count++
		}
	}
	return count
}

// normalizeLine strips all whitespace so that lines can be compared modulo
// formatting.
func normalizeLine(line string) string {
	var b strings.Builder
	for _, r := range line {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeLines returns the whitespace-stripped non-empty lines.
func normalizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if normalized := normalizeLine(line); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}

// nonBlank returns the lines with non-whitespace content.
func nonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// allIncludes reports whether every non-blank line is an include directive.
func allIncludes(lines []string) bool {
	kept := nonBlank(lines)
	if len(kept) == 0 {
		return false
	}
	for _, line := range kept {
		if !matches(reInclude, line) {
			return false
		}
	}
	return true
}

// allComments reports whether every non-blank line is comment text, tracking
// multi-line block comments.
func allComments(lines []string) bool {
	kept := nonBlank(lines)
	if len(kept) == 0 {
		return false
	}
	inBlock := false
	for _, line := range kept {
		if inBlock {
			if matches(reCommentEnd, line) {
				inBlock = false
			}
			continue
		}
		if matches(reCommentLine, line) {
			continue
		}
		if matches(reCommentStart, line) {
			if !matches(reCommentEnd, line) {
				inBlock = true
			}
			continue
		}
		return false
	}
	return true
}

// IsInclude reports whether a line is a C preprocessor include directive.
func IsInclude(line string) bool {
	return matches(reInclude, line)
}

// IsCommentLine reports whether a line is comment-only.
func IsCommentLine(line string) bool {
	return matches(reCommentLine, line)
}
