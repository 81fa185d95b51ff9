// Package slug normalizes free-form names for filesystem use.
package slug

import "strings"

// Slugify converts the provided text to a lowercase ASCII slug with hyphens.
func Slugify(text string) string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return ""
	}

	var builder strings.Builder
	builder.Grow(len(clean))
	prevHyphen := false
	for _, r := range strings.ToLower(clean) {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
			prevHyphen = false
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				builder.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	return strings.Trim(builder.String(), "-")
}

// Filename flattens a release version or branch name into a single path
// segment. Case and dots are preserved so "2.5.1" stays recognizable;
// separators and other unsafe characters collapse to hyphens.
func Filename(text string) string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return ""
	}

	var builder strings.Builder
	builder.Grow(len(clean))
	prevHyphen := false
	for _, r := range clean {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_':
			builder.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				builder.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	return strings.Trim(builder.String(), "-")
}
