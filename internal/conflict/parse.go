package conflict

import (
	"fmt"
	"strings"

	"github.com/cmtonkinson/releasepilot/internal/classify"
)

const (
	markerOurs   = "<<<<<<< "
	markerSplit  = "======="
	markerTheirs = ">>>>>>> "

	// Lines of surrounding file content attached to each hunk for escalation.
	contextWindow = 10
)

// ClassificationError reports a conflict buffer that cannot be parsed into
// hunks. Callers treat the file as LOW confidence and unresolved rather than
// aborting the run.
type ClassificationError struct {
	Path   string
	Line   int
	Detail string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("cannot parse conflict markers in %s at line %d: %s", e.Path, e.Line, e.Detail)
}

// File is a parsed conflicted file: literal text interleaved with hunks.
// Render reassembles the file once every hunk is resolved.
type File struct {
	Path            string
	segments        []segment
	hunks           []*Hunk
	trailingNewline bool
}

// segment is either a literal run of lines or a pointer to a hunk.
type segment struct {
	lines []string
	hunk  *Hunk
}

// Hunks returns the parsed conflict hunks in file order.
func (f *File) Hunks() []*Hunk { return f.hunks }

// Resolved reports whether every hunk has a recorded outcome.
func (f *File) Resolved() bool {
	for _, h := range f.hunks {
		if !h.IsResolved() {
			return false
		}
	}
	return true
}

// Render reassembles the file with every hunk replaced by its resolution.
func (f *File) Render() (string, error) {
	var out []string
	for _, seg := range f.segments {
		if seg.hunk == nil {
			out = append(out, seg.lines...)
			continue
		}
		if !seg.hunk.IsResolved() {
			return "", fmt.Errorf("hunk %d in %s is unresolved", seg.hunk.Index, f.Path)
		}
		out = append(out, seg.hunk.Resolved...)
	}
	content := strings.Join(out, "\n")
	if f.trailingNewline && content != "" {
		content += "\n"
	}
	return content, nil
}

// Summaries collects the audit records for all hunks.
func (f *File) Summaries() []Summary {
	out := make([]Summary, 0, len(f.hunks))
	for _, h := range f.hunks {
		out = append(out, h.Summarize(f.Path))
	}
	return out
}

// ParseFile splits conflicted file content into literal segments and hunks.
// Each hunk is classified as it is parsed and carries a window of
// surrounding lines for escalation context. Stray or unterminated markers
// produce a ClassificationError.
func ParseFile(path, content string) (*File, error) {
	f := &File{
		Path:            path,
		trailingNewline: strings.HasSuffix(content, "\n"),
	}
	raw := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	const (
		stateText = iota
		stateOurs
		stateTheirs
	)
	state := stateText

	var literal []string
	var current *Hunk
	var start int
	hunkIndex := 0

	flushLiteral := func() {
		if len(literal) > 0 {
			f.segments = append(f.segments, segment{lines: literal})
			literal = nil
		}
	}

	for i, line := range raw {
		switch {
		case strings.HasPrefix(line, markerOurs):
			if state != stateText {
				return nil, &ClassificationError{Path: path, Line: i + 1, Detail: "nested conflict start marker"}
			}
			flushLiteral()
			hunkIndex++
			current = &Hunk{
				Index:         hunkIndex,
				OursLabel:     strings.TrimPrefix(line, markerOurs),
				ContextBefore: window(raw, i-contextWindow, i),
			}
			start = i
			state = stateOurs

		case line == markerSplit || strings.HasPrefix(line, markerSplit+" "):
			if state == stateOurs {
				state = stateTheirs
				continue
			}
			if state == stateTheirs {
				return nil, &ClassificationError{Path: path, Line: i + 1, Detail: "duplicate separator marker"}
			}
			// Plain text that happens to start with equals signs.
			literal = append(literal, line)

		case strings.HasPrefix(line, markerTheirs):
			if state != stateTheirs {
				return nil, &ClassificationError{Path: path, Line: i + 1, Detail: "conflict end marker without separator"}
			}
			current.TheirsLabel = strings.TrimPrefix(line, markerTheirs)
			current.ContextAfter = window(raw, i+1, i+1+contextWindow)
			current.Classification, current.Tier = classify.Classify(current.Ours, current.Theirs)
			f.segments = append(f.segments, segment{hunk: current})
			f.hunks = append(f.hunks, current)
			current = nil
			state = stateText

		default:
			switch state {
			case stateOurs:
				current.Ours = append(current.Ours, line)
			case stateTheirs:
				current.Theirs = append(current.Theirs, line)
			default:
				literal = append(literal, line)
			}
		}
	}

	if state != stateText {
		return nil, &ClassificationError{Path: path, Line: start + 1, Detail: "unterminated conflict block"}
	}
	flushLiteral()
	return f, nil
}

// HasMarkers reports whether content contains a conflict start marker.
func HasMarkers(content string) bool {
	return strings.Contains(content, markerOurs)
}

// window clamps a half-open line range to the buffer.
func window(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	out := make([]string, to-from)
	copy(out, lines[from:to])
	return out
}
