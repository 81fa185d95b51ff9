package format

import (
	"fmt"
	"strings"
	"time"
)

// DurationShort formats a duration into a short string (e.g., "1h2m3s").
func DurationShort(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int64(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

// Tokens formats an integer token count with thousand separators (e.g., "1,234").
func Tokens(n int) string {
	if n < 0 {
		n = 0
	}
	s := fmt.Sprintf("%d", n)
	var result strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// PRRef formats a pull request number as "#123". Returns an empty string if
// the number is non-positive.
func PRRef(number int) string {
	if number <= 0 {
		return ""
	}
	return fmt.Sprintf("#%d", number)
}

// PRList formats a list of pull request numbers as "#1, #2, #3".
func PRList(numbers []int) string {
	if len(numbers) == 0 {
		return ""
	}
	refs := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if ref := PRRef(n); ref != "" {
			refs = append(refs, ref)
		}
	}
	return strings.Join(refs, ", ")
}
