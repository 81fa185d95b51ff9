package conflict

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cmtonkinson/releasepilot/internal/audit"
	"github.com/cmtonkinson/releasepilot/internal/classify"
	"github.com/cmtonkinson/releasepilot/internal/llm"
)

// fakeProvider returns canned responses in order.
type fakeProvider struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no canned response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func functionalHunk() *Hunk {
	h := &Hunk{
		Index:  1,
		Ours:   []string{"total = base * 2;"},
		Theirs: []string{"total = base * 4;"},
	}
	h.Classification, h.Tier = classify.Classify(h.Ours, h.Theirs)
	return h
}

func TestEscalateOursTag(t *testing.T) {
	provider := &fakeProvider{responses: []string{"OURS"}}
	esc := NewEscalator(provider, llm.NewBudget(3), "test-model", 0.1, nil)

	h := functionalHunk()
	if err := esc.Escalate(context.Background(), "x.c", h, EscalationMeta{Mode: "cherry-pick"}); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if h.Outcome != OutcomeOurs {
		t.Fatalf("Outcome = %q, want ours", h.Outcome)
	}
	if h.Provenance.Provider != "fake" || h.Provenance.Model != "test-model" {
		t.Fatalf("Provenance = %+v", h.Provenance)
	}
}

func TestEscalateCustomResolution(t *testing.T) {
	provider := &fakeProvider{responses: []string{"```c\ntotal = base * 4;\n```"}}
	esc := NewEscalator(provider, llm.NewBudget(3), "test-model", 0.1, nil)

	h := functionalHunk()
	if err := esc.Escalate(context.Background(), "x.c", h, EscalationMeta{Mode: "cherry-pick"}); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if h.Outcome != OutcomeCustom {
		t.Fatalf("Outcome = %q, want custom", h.Outcome)
	}
	if len(h.Resolved) != 1 || h.Resolved[0] != "total = base * 4;" {
		t.Fatalf("Resolved = %q", h.Resolved)
	}
}

func TestEscalateRejectsGuardFailure(t *testing.T) {
	provider := &fakeProvider{responses: []string{"launch_missiles(total);"}}
	esc := NewEscalator(provider, llm.NewBudget(3), "test-model", 0.1, nil)

	h := functionalHunk()
	err := esc.Escalate(context.Background(), "x.c", h, EscalationMeta{Mode: "cherry-pick"})
	var guardErr *GuardError
	if !errors.As(err, &guardErr) {
		t.Fatalf("Escalate() error = %v, want *GuardError", err)
	}
	if h.IsResolved() {
		t.Fatalf("hunk must stay unresolved after a rejected response")
	}
}

func TestEscalateBudgetExhaustion(t *testing.T) {
	provider := &fakeProvider{responses: []string{"OURS", "OURS"}}
	esc := NewEscalator(provider, llm.NewBudget(1), "test-model", 0.1, nil)

	first := functionalHunk()
	if err := esc.Escalate(context.Background(), "x.c", first, EscalationMeta{}); err != nil {
		t.Fatalf("first Escalate() error = %v", err)
	}

	second := functionalHunk()
	err := esc.Escalate(context.Background(), "x.c", second, EscalationMeta{})
	if !errors.Is(err, llm.ErrBudgetExhausted) {
		t.Fatalf("second Escalate() error = %v, want ErrBudgetExhausted", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 (budget must gate the call)", provider.calls)
	}
}

func TestEscalatePromptCarriesContext(t *testing.T) {
	provider := &fakeProvider{responses: []string{"OURS"}}
	esc := NewEscalator(provider, llm.NewBudget(1), "test-model", 0.1, nil)

	h := functionalHunk()
	h.ContextBefore = []string{"int before;"}
	h.ContextAfter = []string{"int after;"}
	meta := EscalationMeta{
		PRNumber: 135,
		Mode:     "revert",
		Strategy: "exclude",
		Diff:     "diff --git a/x.c b/x.c",
		Siblings: []SiblingPR{{Number: 130, Title: "harden parser"}},
	}
	if err := esc.Escalate(context.Background(), "x.c", h, meta); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}

	prompt := provider.prompts[0]
	for _, want := range []string{
		"Operation: REVERT",
		"int before;",
		"int after;",
		"total = base * 2;",
		"total = base * 4;",
		"PR #130: harden parser",
		"PR #135 diff",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestEscalateAuditsEveryRoundTrip(t *testing.T) {
	root := t.TempDir()
	auditor, err := audit.NewLogger(root, io.Discard)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	provider := &fakeProvider{responses: []string{"THEIRS", "launch_missiles(total);"}}
	esc := NewEscalator(provider, llm.NewBudget(3), "test-model", 0.1, auditor)

	resolved := functionalHunk()
	meta := EscalationMeta{PRNumber: 135, Mode: "cherry-pick"}
	if err := esc.Escalate(context.Background(), "x.c", resolved, meta); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}

	rejected := functionalHunk()
	var guardErr *GuardError
	if err := esc.Escalate(context.Background(), "x.c", rejected, meta); !errors.As(err, &guardErr) {
		t.Fatalf("Escalate() error = %v, want *GuardError", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "_releasepilot", "_local-state", "audit.log"))
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2:\n%s", len(lines), data)
	}
	for i, line := range lines {
		for _, want := range []string{"event=escalation", "pr=135", "path=x.c", "provider=fake", "model=test-model", "prompt=", "response="} {
			if !strings.Contains(line, want) {
				t.Fatalf("line %d missing %q: %s", i, want, line)
			}
		}
	}
	if !strings.Contains(lines[0], "outcome=theirs") {
		t.Fatalf("first line should record the accepted outcome: %s", lines[0])
	}
	if !strings.Contains(lines[1], "outcome=guard_rejected") || !strings.Contains(lines[1], "reason=") {
		t.Fatalf("second line should record the rejection and its reason: %s", lines[1])
	}
}

func TestResolveFileHunksPipeline(t *testing.T) {
	content := strings.Join([]string{
		"<<<<<<< HEAD",
		`#include "a.h"`,
		"=======",
		`#include "b.h"`,
		">>>>>>> pick",
		"int main(void) { return 0; }",
		"<<<<<<< HEAD",
		"total = 1;",
		"=======",
		"total = 2;",
		">>>>>>> pick",
	}, "\n") + "\n"

	f, err := ParseFile("x.c", content)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	provider := &fakeProvider{responses: []string{"THEIRS"}}
	esc := NewEscalator(provider, llm.NewBudget(2), "test-model", 0.1, nil)
	opts := Options{SafetyPrefer: true, MinConfidence: classify.TierLow}

	summaries := ResolveFileHunks(context.Background(), f, opts, esc, EscalationMeta{Mode: "cherry-pick"})
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if !f.Resolved() {
		t.Fatalf("Resolved() = false, summaries: %+v", summaries)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 (include hunk resolves by rule)", provider.calls)
	}
	if summaries[0].Outcome != OutcomeMerged {
		t.Fatalf("first outcome = %q, want merged", summaries[0].Outcome)
	}
	if summaries[1].Outcome != OutcomeTheirs {
		t.Fatalf("second outcome = %q, want theirs", summaries[1].Outcome)
	}
}

func TestResolveFileHunksWithoutEscalator(t *testing.T) {
	content := "<<<<<<< HEAD\ntotal = 1;\n=======\ntotal = 2;\n>>>>>>> pick\n"
	f, err := ParseFile("x.c", content)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	ResolveFileHunks(context.Background(), f, Options{MinConfidence: classify.TierLow}, nil, EscalationMeta{})
	if f.Resolved() {
		t.Fatalf("LOW hunk resolved without escalation")
	}
}
