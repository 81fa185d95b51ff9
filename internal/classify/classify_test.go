package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		ours     []string
		theirs   []string
		wantType Classification
		wantTier Tier
	}{
		{
			name:     "whitespace only",
			ours:     []string{"int x = 1;", "    return x;"},
			theirs:   []string{"int  x  =  1;", "\treturn x;"},
			wantType: WhitespaceOnly,
			wantTier: TierHigh,
		},
		{
			name:     "include reorder",
			ours:     []string{`#include "local.h"`, "#include <stdio.h>"},
			theirs:   []string{"#include <stdio.h>", `#include "local.h"`, "#include <stdlib.h>"},
			wantType: IncludeReorder,
			wantTier: TierHigh,
		},
		{
			name:     "comment only",
			ours:     []string{"/* old explanation */"},
			theirs:   []string{"// new explanation", "// with a second line"},
			wantType: CommentOnly,
			wantTier: TierHigh,
		},
		{
			name:     "comment block spanning lines",
			ours:     []string{"/*", " * multi-line block", " */"},
			theirs:   []string{"// condensed comment"},
			wantType: CommentOnly,
			wantTier: TierHigh,
		},
		{
			name:     "brace style",
			ours:     []string{"if (ready) {", "    run();", "}"},
			theirs:   []string{"if (ready)", "{", "    run();", "}"},
			wantType: BraceStyle,
			wantTier: TierHigh,
		},
		{
			name:     "null check added on theirs",
			ours:     []string{"pValue->count = total;"},
			theirs:   []string{"if (pValue == NULL)", "    return;", "pValue->count = total;"},
			wantType: NullCheckAdded,
			wantTier: TierMedium,
		},
		{
			name:     "error handling added on ours",
			ours:     []string{"CcspTraceError((\"alloc failed\\n\"));", "return ANSC_STATUS_FAILURE;"},
			theirs:   []string{"proceed(pCtx);"},
			wantType: ErrorHandlingAdded,
			wantTier: TierMedium,
		},
		{
			name:     "safety density differs",
			ours:     []string{"sprintf(buf, fmt, value);", "strcpy(dst, src);"},
			theirs:   []string{"snprintf(buf, sizeof(buf), fmt, value);", "strncpy(dst, src, sizeof(dst));"},
			wantType: SafetyImprovement,
			wantTier: TierMedium,
		},
		{
			name:     "plain functional",
			ours:     []string{"total = count * 2;"},
			theirs:   []string{"total = count * 4;"},
			wantType: Functional,
			wantTier: TierLow,
		},
		{
			name: "mixed pattern families on both sides",
			ours: []string{
				"#include <stdio.h>",
				"pBuf = malloc(size);",
				"if (pBuf == NULL) return NULL;",
				"compute(pBuf);",
			},
			theirs: []string{
				"#include <stdlib.h>",
				"pBuf = calloc(1, size);",
				"if (!pBuf) goto alloc_error;",
				"transform(pBuf, size);",
			},
			wantType: Mixed,
			wantTier: TierLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotType, gotTier := Classify(tc.ours, tc.theirs)
			if gotType != tc.wantType {
				t.Fatalf("Classify() type = %q, want %q", gotType, tc.wantType)
			}
			if gotTier != tc.wantTier {
				t.Fatalf("Classify() tier = %q, want %q", gotTier, tc.wantTier)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	ours := []string{"int x = 1;"}
	theirs := []string{"int x = 1;  "}
	firstType, firstTier := Classify(ours, theirs)
	secondType, secondTier := Classify(ours, theirs)
	if firstType != secondType || firstTier != secondTier {
		t.Fatalf("Classify() not deterministic: (%q,%q) vs (%q,%q)", firstType, firstTier, secondType, secondTier)
	}
	if firstType != WhitespaceOnly {
		t.Fatalf("Classify() = %q, want whitespace_only", firstType)
	}
}

func TestSafetySide(t *testing.T) {
	tests := []struct {
		name   string
		class  Classification
		ours   []string
		theirs []string
		want   Side
	}{
		{
			name:   "null check on theirs",
			class:  NullCheckAdded,
			ours:   []string{"use(ptr);"},
			theirs: []string{"if (ptr == NULL) return;", "use(ptr);"},
			want:   SideTheirs,
		},
		{
			name:   "error handling on ours",
			class:  ErrorHandlingAdded,
			ours:   []string{"return ANSC_STATUS_FAILURE;"},
			theirs: []string{"continueWork();"},
			want:   SideOurs,
		},
		{
			name:   "safety density toward theirs",
			class:  SafetyImprovement,
			ours:   []string{"sprintf(buf, fmt);"},
			theirs: []string{"snprintf(buf, sizeof(buf), fmt);", "free(tmp);"},
			want:   SideTheirs,
		},
		{
			name:   "high classification has no side",
			class:  WhitespaceOnly,
			ours:   []string{"a"},
			theirs: []string{"a "},
			want:   SideNone,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SafetySide(tc.class, tc.ours, tc.theirs); got != tc.want {
				t.Fatalf("SafetySide() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTierOrdering(t *testing.T) {
	if !TierHigh.AtLeast(TierMedium) || !TierHigh.AtLeast(TierLow) {
		t.Fatalf("HIGH should satisfy every minimum")
	}
	if TierLow.AtLeast(TierMedium) {
		t.Fatalf("LOW must not satisfy a MEDIUM minimum")
	}
	if !TierMedium.AtLeast(TierMedium) {
		t.Fatalf("a tier should satisfy itself")
	}
}

func TestParseTier(t *testing.T) {
	got, err := ParseTier(" medium ")
	if err != nil {
		t.Fatalf("ParseTier() error = %v", err)
	}
	if got != TierMedium {
		t.Fatalf("ParseTier() = %q, want MEDIUM", got)
	}
	if _, err := ParseTier("certain"); err == nil {
		t.Fatalf("ParseTier() = nil error for invalid tier")
	}
}
