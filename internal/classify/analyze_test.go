package classify

import (
	"strings"
	"testing"
)

func TestAnalyzeDiffCosmetic(t *testing.T) {
	diff := strings.Join([]string{
		"--- a/src/util.c",
		"+++ b/src/util.c",
		"@@ -1,3 +1,3 @@",
		"-#include <stdio.h>",
		`-#include "util.h"`,
		`+#include "util.h"`,
		"+#include <stdio.h>",
	}, "\n")

	got := AnalyzeDiff(diff)
	if got.DominantType != IncludeReorder {
		t.Fatalf("DominantType = %q, want include_reorder", got.DominantType)
	}
	if !got.CosmeticOnly {
		t.Fatalf("CosmeticOnly = false, want true")
	}
	if got.Confidence != TierHigh {
		t.Fatalf("Confidence = %q, want HIGH for a small diff", got.Confidence)
	}
}

func TestAnalyzeDiffSafetyFocused(t *testing.T) {
	diff := strings.Join([]string{
		"--- a/src/dm.c",
		"+++ b/src/dm.c",
		"@@ -10,2 +10,6 @@",
		"+if (pEntry == NULL)",
		"+{",
		"+    CcspTraceError((\"pEntry is NULL\\n\"));",
		"+    return ANSC_STATUS_FAILURE;",
		"+}",
		" pEntry->count = total;",
	}, "\n")

	got := AnalyzeDiff(diff)
	if !got.SafetyFocused {
		t.Fatalf("SafetyFocused = false, want true (analysis: %+v)", got)
	}
	if got.NullChecksAdded == 0 {
		t.Fatalf("NullChecksAdded = 0, want > 0")
	}
	if got.ErrorHandlingAdded == 0 {
		t.Fatalf("ErrorHandlingAdded = 0, want > 0")
	}
}

func TestAnalyzeDiffFunctionalCounts(t *testing.T) {
	diff := strings.Join([]string{
		"+int total = base * factor;",
		"+apply(total);",
		"+// explains the multiplier",
		"+#include <math.h>",
		"+{",
	}, "\n")

	got := AnalyzeDiff(diff)
	if got.FunctionalChanges != 2 {
		t.Fatalf("FunctionalChanges = %d, want 2 (comments, includes and braces excluded)", got.FunctionalChanges)
	}
}

func TestAnalyzeDiffConfidenceScalesWithSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("+some_call(arg);\n")
	}
	got := AnalyzeDiff(b.String())
	if got.Confidence != TierLow {
		t.Fatalf("Confidence = %q, want LOW for a large diff", got.Confidence)
	}
}
