// Package report generates markdown release reports for component owners.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cmtonkinson/releasepilot/internal/conflict"
	"github.com/cmtonkinson/releasepilot/internal/decision"
	"github.com/cmtonkinson/releasepilot/internal/execute"
	"github.com/cmtonkinson/releasepilot/internal/format"
	"github.com/cmtonkinson/releasepilot/internal/plan"
	"github.com/cmtonkinson/releasepilot/internal/pr"
	"github.com/cmtonkinson/releasepilot/internal/slug"
)

const (
	reportsDirName = "_releasepilot/_local-state/reports"
	reportsDirMode = 0o755
)

// Data collects everything a release report covers.
type Data struct {
	Plan        plan.ReleasePlan
	Window      []pr.PullRequest
	LastTag     string
	Records     []execute.Record
	ExitCode    int
	DryRun      bool
	Elapsed     time.Duration
	GeneratedAt time.Time
}

// Generator writes release reports under the repository's local state.
type Generator struct {
	outputDir string
}

// NewGenerator builds a Generator rooted at the provided repository root.
func NewGenerator(repoRoot string) (Generator, error) {
	if strings.TrimSpace(repoRoot) == "" {
		return Generator{}, fmt.Errorf("report: repo root is required")
	}
	dir := filepath.Join(repoRoot, filepath.FromSlash(reportsDirName))
	if err := os.MkdirAll(dir, reportsDirMode); err != nil {
		return Generator{}, fmt.Errorf("report: create %s: %w", dir, err)
	}
	return Generator{outputDir: dir}, nil
}

// Generate renders the report and writes it to a timestamped file, returning
// the file path.
func (g Generator) Generate(data Data) (string, error) {
	if g.outputDir == "" {
		return "", fmt.Errorf("report: generator is not initialized")
	}
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
		data.GeneratedAt = generated
	}
	component := slug.Slugify(data.Plan.Component)
	if component == "" {
		component = "release"
	}
	name := fmt.Sprintf("%s_%s_report_%s.md", component, data.Plan.Version, generated.Format("20060102_150405"))
	path := filepath.Join(g.outputDir, name)
	if err := os.WriteFile(path, []byte(Render(data)), 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}

// Render produces the full markdown report.
func Render(data Data) string {
	var b strings.Builder
	writeHeader(&b, data)
	writeSummary(&b, data)
	writeDiscovery(&b, data)
	writeDecisions(&b, data)
	writeDependencyValidation(&b, data)
	writeExecution(&b, data)
	writeRecommendations(&b, data)
	writeNextSteps(&b, data)
	return b.String()
}

func writeHeader(b *strings.Builder, data Data) {
	component := data.Plan.Component
	if component == "" {
		component = "release"
	}
	fmt.Fprintf(b, "# Release Report: %s v%s\n\n", component, data.Plan.Version)
	fmt.Fprintf(b, "**Generated**: %s\n\n", data.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(b, "**Strategy**: %s\n\n", strings.ToUpper(data.Plan.Strategy))
	mode := "live execution"
	if data.DryRun {
		mode = "dry run (simulation)"
	}
	fmt.Fprintf(b, "**Mode**: %s\n\n", mode)
	b.WriteString("---\n\n")
}

func writeSummary(b *strings.Builder, data Data) {
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- **Base Branch**: %s\n", data.Plan.BaseRef)
	fmt.Fprintf(b, "- **Release Branch**: %s\n", data.Plan.ReleaseBranch)
	fmt.Fprintf(b, "- **Execution Time**: %s\n", format.DurationShort(data.Elapsed))
	fmt.Fprintf(b, "- **PRs Discovered**: %d\n", len(data.Window))
	fmt.Fprintf(b, "- **Admitted**: %d\n", len(data.Plan.Admitted))
	fmt.Fprintf(b, "- **Excluded**: %d\n", len(data.Plan.Excluded))
	fmt.Fprintf(b, "- **Manual Review**: %d\n", len(data.Plan.ManualReview))

	applied, skipped, failed := tally(data.Records)
	fmt.Fprintf(b, "- **Applied**: %d\n", applied)
	fmt.Fprintf(b, "- **Skipped**: %d\n", skipped)
	fmt.Fprintf(b, "- **Failed**: %d\n", failed)
	fmt.Fprintf(b, "- **Exit Code**: %d\n\n", data.ExitCode)
	b.WriteString("---\n\n")
}

func writeDiscovery(b *strings.Builder, data Data) {
	b.WriteString("## PR Discovery\n\n")
	if data.LastTag != "" {
		fmt.Fprintf(b, "**Last Tag**: `%s`\n\n", data.LastTag)
		fmt.Fprintf(b, "**PRs Merged Since Tag**: %d\n\n", len(data.Window))
	} else {
		b.WriteString("**Note**: no tags found, the window covers the configured PR list only\n\n")
	}
	if len(data.Plan.Unknown) > 0 {
		fmt.Fprintf(b, "**Configured but not found in window**: %s\n\n", format.PRList(data.Plan.Unknown))
	}
	b.WriteString("---\n\n")
}

func writeDecisions(b *strings.Builder, data Data) {
	b.WriteString("## Decisions\n\n")
	if len(data.Plan.Decisions) == 0 {
		b.WriteString("*No decisions recorded*\n\n---\n\n")
		return
	}

	titles := make(map[int]string, len(data.Window))
	for _, item := range data.Window {
		titles[item.Number] = item.Title
	}

	decisions := append([]decision.Decision(nil), data.Plan.Decisions...)
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].PR < decisions[j].PR })

	for _, dec := range decisions {
		title := titles[dec.PR]
		if title != "" {
			fmt.Fprintf(b, "### PR #%d: %s\n\n", dec.PR, title)
		} else {
			fmt.Fprintf(b, "### PR #%d\n\n", dec.PR)
		}
		fmt.Fprintf(b, "**Decision**: %s (%s)\n\n", dec.Kind, dec.Confidence)
		if dec.Rationale != "" {
			fmt.Fprintf(b, "**Rationale**: %s\n\n", dec.Rationale)
		}
		if len(dec.Requires) > 0 {
			fmt.Fprintf(b, "**Requires**: %s\n\n", format.PRList(dec.Requires))
		}
	}
	b.WriteString("---\n\n")
}

func writeDependencyValidation(b *strings.Builder, data Data) {
	b.WriteString("## Dependency Validation\n\n")
	report := data.Plan.Validation
	if report.Clean() {
		b.WriteString("No dependency issues detected.\n\n---\n\n")
		return
	}
	if len(report.Warnings) > 0 {
		b.WriteString("### Warnings\n\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(b, "- %s\n", warning.Detail)
		}
		b.WriteString("\n")
	}
	if len(report.Recommendations) > 0 {
		b.WriteString("### Recommendations\n\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(b, "- Consider admitting PR #%d, required by %s\n", rec.PR, format.PRList(rec.Dependents))
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
}

func writeExecution(b *strings.Builder, data Data) {
	if data.DryRun {
		b.WriteString("## Dry Run\n\n")
		b.WriteString("This was a simulation. No git operations were performed.\n\n---\n\n")
		return
	}

	b.WriteString("## Execution Results\n\n")
	if len(data.Records) == 0 {
		b.WriteString("*No PRs were processed*\n\n---\n\n")
		return
	}

	b.WriteString("| PR | Operation | State | Commit | Detail |\n")
	b.WriteString("|----|-----------|-------|--------|--------|\n")
	for _, rec := range data.Records {
		commit := rec.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Fprintf(b, "| #%d | %s | %s | %s | %s |\n",
			rec.PR, rec.Operation, rec.State, commit, strings.ReplaceAll(rec.Detail, "|", "\\|"))
	}
	b.WriteString("\n")

	writeResolutions(b, data.Records)
	b.WriteString("---\n\n")
}

func writeResolutions(b *strings.Builder, records []execute.Record) {
	var summaries []conflict.Summary
	for _, rec := range records {
		summaries = append(summaries, rec.Hunks...)
	}
	if len(summaries) == 0 {
		return
	}

	byTier := make(map[string]int)
	escalated := 0
	for _, s := range summaries {
		byTier[string(s.Tier)]++
		if s.Provenance.Provider != "" {
			escalated++
		}
	}

	b.WriteString("### Conflict Resolution\n\n")
	fmt.Fprintf(b, "**Hunks Resolved**: %d (%d via escalation)\n\n", len(summaries), escalated)
	tiers := make([]string, 0, len(byTier))
	for tier := range byTier {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		fmt.Fprintf(b, "- **%s**: %d\n", tier, byTier[tier])
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, data Data) {
	b.WriteString("## Recommendations\n\n")

	var recommendations []string
	if len(data.Plan.ManualReview) > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"**Manual review required**: %s held out of the plan pending human review",
			format.PRList(data.Plan.ManualReview)))
	}
	_, skipped, failed := tally(data.Records)
	if failed > 0 || skipped > 0 {
		var held []int
		for _, rec := range data.Records {
			if rec.State == execute.StateFailedManual || rec.State == execute.StateSkipped {
				held = append(held, rec.PR)
			}
		}
		sort.Ints(held)
		recommendations = append(recommendations, fmt.Sprintf(
			"**Apply manually**: %s could not be promoted automatically", format.PRList(held)))
	}
	if len(data.Plan.Validation.Recommendations) > 0 {
		var add []int
		for _, rec := range data.Plan.Validation.Recommendations {
			add = append(add, rec.PR)
		}
		recommendations = append(recommendations, fmt.Sprintf(
			"**Add missing dependencies**: consider admitting %s", format.PRList(add)))
	}
	if data.Plan.Strategy == "include" && len(data.Window) > len(data.Plan.Admitted)+len(data.Plan.Excluded)+len(data.Plan.ManualReview) {
		recommendations = append(recommendations,
			"**Unconfigured PRs**: the window contains PRs with no decision, review whether any should be included")
	}

	if len(recommendations) == 0 {
		b.WriteString("No specific recommendations. The release plan looks good.\n\n---\n\n")
		return
	}
	for i, rec := range recommendations {
		fmt.Fprintf(b, "%d. %s\n\n", i+1, rec)
	}
	b.WriteString("---\n\n")
}

func writeNextSteps(b *strings.Builder, data Data) {
	b.WriteString("## Next Steps\n\n")
	_, _, failed := tally(data.Records)
	switch {
	case data.DryRun:
		b.WriteString("1. Review the decisions and dependency warnings above\n")
		b.WriteString("2. Update the release configuration if needed\n")
		b.WriteString("3. Run again without `--dry-run` to execute the release\n")
	case failed > 0:
		b.WriteString("1. Resolve the failed PRs manually on the release branch\n")
		b.WriteString("2. Re-run to resume; completed PRs will not be reapplied\n")
		b.WriteString("3. Test the release branch before merging\n")
	default:
		fmt.Fprintf(b, "1. Test the release branch: `%s`\n", data.Plan.ReleaseBranch)
		b.WriteString("2. Open a pull request for review\n")
		b.WriteString("3. Merge after approval\n")
	}
}

func tally(records []execute.Record) (applied int, skipped int, failed int) {
	for _, rec := range records {
		switch rec.State {
		case execute.StateAppliedClean, execute.StateAppliedNoop, execute.StateAppliedResolved:
			applied++
		case execute.StateSkipped:
			skipped++
		case execute.StateFailedManual:
			failed++
		}
	}
	return applied, skipped, failed
}
