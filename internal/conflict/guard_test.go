package conflict

import (
	"strings"
	"testing"
)

func TestGuardResponseAccepts(t *testing.T) {
	ours := []string{"process(data);"}
	theirs := []string{"if (data == NULL) return;", "process(data);"}
	resolved := []string{"if (data == NULL)", "{", "    return;", "}", "process(data);"}

	if err := guardResponse(resolved, ours, theirs); err != nil {
		t.Fatalf("guardResponse() error = %v, want nil", err)
	}
}

func TestGuardResponseRejectsUnbalanced(t *testing.T) {
	resolved := []string{"if (data == NULL) {", "    return;"}
	err := guardResponse(resolved, []string{"a();"}, []string{"b();"})
	if err == nil || !strings.Contains(err.Error(), "unbalanced") {
		t.Fatalf("guardResponse() error = %v, want unbalanced rejection", err)
	}
}

func TestGuardResponseRejectsInventedCalls(t *testing.T) {
	ours := []string{"process(data);"}
	theirs := []string{"validate(data);"}
	resolved := []string{"sanitize_input(data);", "process(data);"}

	err := guardResponse(resolved, ours, theirs)
	if err == nil || !strings.Contains(err.Error(), "sanitize_input") {
		t.Fatalf("guardResponse() error = %v, want invented-call rejection", err)
	}
}

func TestGuardResponseAllowsStdlibCalls(t *testing.T) {
	ours := []string{"copy(dst, src);"}
	theirs := []string{"copy_all(dst, src);"}
	resolved := []string{"memset(dst, 0, len);", "copy(dst, src);"}

	if err := guardResponse(resolved, ours, theirs); err != nil {
		t.Fatalf("guardResponse() error = %v, stdlib calls should be allowed", err)
	}
}

func TestGuardResponseIgnoresCallsInCommentsAndPreprocessor(t *testing.T) {
	ours := []string{"run();"}
	theirs := []string{"run();"}
	resolved := []string{"// helper(x) is described here", "#define WRAP(x) x", "run();"}

	if err := guardResponse(resolved, ours, theirs); err != nil {
		t.Fatalf("guardResponse() error = %v, comment and preprocessor lines should be skipped", err)
	}
}

func TestGuardResponseRejectsOverlongOutput(t *testing.T) {
	ours := []string{"a();"}
	theirs := []string{"b();"}
	resolved := make([]string, 2*1+5+1)
	for i := range resolved {
		resolved[i] = "a();"
	}
	err := guardResponse(resolved, ours, theirs)
	if err == nil || !strings.Contains(err.Error(), "limit") {
		t.Fatalf("guardResponse() error = %v, want length rejection", err)
	}
}

func TestGuardResponseRejectsEmpty(t *testing.T) {
	if err := guardResponse(nil, []string{"a();"}, []string{"b();"}); err == nil {
		t.Fatalf("guardResponse() = nil for empty response")
	}
	if err := guardResponse([]string{"   "}, []string{"a();"}, []string{"b();"}); err == nil {
		t.Fatalf("guardResponse() = nil for blank response")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "c fence",
			in:   "```c\nint x = 1;\n```",
			want: "int x = 1;",
		},
		{
			name: "bare fence",
			in:   "```\nint x = 1;\n```",
			want: "int x = 1;",
		},
		{
			name: "no fence",
			in:   "int x = 1;",
			want: "int x = 1;",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripFences(tc.in); got != tc.want {
				t.Fatalf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFunctionCallsSkipsKeywords(t *testing.T) {
	calls := functionCalls([]string{"if (check(x)) { return do_work(x); }", "while (poll())"})
	for _, want := range []string{"check", "do_work", "poll"} {
		if _, ok := calls[want]; !ok {
			t.Fatalf("functionCalls() missing %q: %v", want, calls)
		}
	}
	for _, keyword := range []string{"if", "while", "return"} {
		if _, ok := calls[keyword]; ok {
			t.Fatalf("functionCalls() treated keyword %q as a call", keyword)
		}
	}
}
