package execute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmtonkinson/releasepilot/internal/audit"
	"github.com/cmtonkinson/releasepilot/internal/config"
	"github.com/cmtonkinson/releasepilot/internal/conflict"
	"github.com/cmtonkinson/releasepilot/internal/plan"
	"github.com/cmtonkinson/releasepilot/internal/pr"
	"github.com/cmtonkinson/releasepilot/internal/repo"
	"github.com/cmtonkinson/releasepilot/internal/validity"
)

// Exit codes for the execution driver.
const (
	ExitOK       = 0
	ExitInternal = 1
	ExitHalted   = 2
)

// Runner drives the per-PR state machine over a release plan. Execution is
// strictly sequential: the working tree is the only shared resource and
// every operation depends on the tree state the previous one left behind.
type Runner struct {
	Git       repo.Git
	Policy    string
	DryRun    bool
	Options   conflict.Options
	Escalator *conflict.Escalator
	Checker   validity.Checker
	Auditor   *audit.Logger
	Journal   *Journal
	Now       func() time.Time

	// PreviewRef is the commit a dry run previews against, typically the
	// release branch tip or the fork point. Empty means HEAD.
	PreviewRef string

	previewHead string
}

// Result is the outcome of one run.
type Result struct {
	Records  []Record
	Resumed  []int
	ExitCode int
	HaltedPR int
}

// Run processes every target PR of the plan in order. PR-level failures
// never return an error; they surface as FAILED_MANUAL/SKIPPED records and
// exit code 2. An error return means the run itself is broken (exit 1).
func (r *Runner) Run(ctx context.Context, p plan.ReleasePlan) (Result, error) {
	if p.Operation == "" {
		return Result{}, fmt.Errorf("execute: plan has no operation")
	}
	if r.Policy == "" {
		r.Policy = config.PolicyPause
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	replayed := map[int]Record{}
	if r.Journal != nil {
		all, err := r.Journal.Replay()
		if err != nil {
			return Result{}, err
		}
		replayed = TerminalStates(all)
		if len(replayed) > 0 {
			_ = r.Auditor.LogJournalReplay(len(replayed))
		}
	}

	if r.DryRun {
		ref := r.PreviewRef
		if ref == "" {
			ref = "HEAD"
		}
		head, err := r.Git.Run(ctx, "rev-parse", "--verify", ref+"^{commit}")
		if err != nil {
			return Result{}, fmt.Errorf("execute: resolve preview ref %s: %w", ref, err)
		}
		r.previewHead = strings.TrimSpace(head)
	}

	_ = r.Auditor.LogRunStart(p.Version, p.Strategy, len(p.Targets), r.DryRun)

	var result Result
	halted := false
	for _, target := range p.Targets {
		if prior, done := replayed[target.Number]; done {
			result.Resumed = append(result.Resumed, target.Number)
			result.Records = append(result.Records, prior)
			continue
		}

		rec := Record{
			PR:        target.Number,
			Operation: p.Operation,
			State:     StatePending,
			Commit:    target.MergeCommit,
			Timestamp: now(),
		}
		if halted {
			// Prior failure under the pause policy; this PR stays PENDING.
			result.Records = append(result.Records, rec)
			continue
		}

		final, err := r.executeOne(ctx, p, target, &rec)
		if err != nil {
			return Result{}, err
		}
		result.Records = append(result.Records, rec)
		if final == StateFailedManual && r.Policy == config.PolicyPause {
			halted = true
			result.HaltedPR = target.Number
		}
	}

	applied, skipped, failed := tally(result.Records)
	result.ExitCode = ExitOK
	if skipped > 0 || failed > 0 {
		result.ExitCode = ExitHalted
	}
	_ = r.Auditor.LogRunOutcome(applied, skipped, failed, result.ExitCode)
	return result, nil
}

// executeOne runs the git operation for a single PR and walks the record
// through the state machine.
func (r *Runner) executeOne(ctx context.Context, p plan.ReleasePlan, target pr.PullRequest, rec *Record) (State, error) {
	if strings.TrimSpace(target.MergeCommit) == "" {
		return "", fmt.Errorf("execute: PR #%d has no merge commit", target.Number)
	}

	if r.DryRun {
		return r.executeDry(ctx, p, target, rec)
	}

	res, err := r.Git.Exec(ctx, r.operationArgs(p.Operation, target.MergeCommit)...)
	if err != nil {
		return "", fmt.Errorf("execute: %s PR #%d: %w", p.Operation, target.Number, err)
	}

	switch classifyOutcome(res, p.Operation) {
	case outcomeClean:
		return StateAppliedClean, r.record(rec, StateAppliedClean, "")

	case outcomeNoop:
		// The change is already present in the target line. Clear the
		// stopped sequencer and move on.
		_, _ = r.Git.Exec(ctx, p.Operation, "--skip")
		return StateAppliedNoop, r.record(rec, StateAppliedNoop, "change already present in target line")

	default:
		files, err := unmergedFiles(ctx, r.Git)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			// Failed without conflicts: bad object, dirty tree, missing
			// tool. Not a PR-level outcome.
			return "", fmt.Errorf("execute: %s PR #%d failed without conflicts: %s",
				p.Operation, target.Number, strings.TrimSpace(res.Combined()))
		}
		if err := r.record(rec, StateInConflict, strings.Join(files, ", ")); err != nil {
			return "", err
		}
		return r.resolveConflicts(ctx, p, target, rec)
	}
}

// executeDry previews one operation with merge-tree so a dry run reports the
// states and hunk classifications a real run would face, without touching the
// working tree or any ref. Clean applications advance an in-memory preview
// commit so later PRs are previewed against the tree the run would actually
// produce.
func (r *Runner) executeDry(ctx context.Context, p plan.ReleasePlan, target pr.PullRequest, rec *Record) (State, error) {
	// Cherry-picking C replays C^1..C onto the preview head; reverting C
	// merges toward C^1 with C as the base.
	base := target.MergeCommit + "^1"
	theirs := target.MergeCommit
	if p.Operation == "revert" {
		base = target.MergeCommit
		theirs = target.MergeCommit + "^1"
	}

	res, err := r.Git.Exec(ctx, "merge-tree", "--write-tree", "--name-only", "--merge-base="+base, r.previewHead, theirs)
	if err != nil {
		return "", fmt.Errorf("execute: preview %s PR #%d: %w", p.Operation, target.Number, err)
	}
	if res.ExitCode > 1 {
		return "", fmt.Errorf("execute: preview %s PR #%d: %s", p.Operation, target.Number, strings.TrimSpace(res.Combined()))
	}
	lines := strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n")
	tree := strings.TrimSpace(lines[0])

	if res.ExitCode == 0 {
		prevTree, err := r.Git.Run(ctx, "rev-parse", r.previewHead+"^{tree}")
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(prevTree) == tree {
			return StateAppliedNoop, r.record(rec, StateAppliedNoop, "dry-run: change already present in target line")
		}
		next, err := r.Git.Run(ctx, "commit-tree", tree, "-p", r.previewHead, "-m",
			fmt.Sprintf("preview %s %s", p.Operation, target.MergeCommit))
		if err != nil {
			return "", err
		}
		r.previewHead = strings.TrimSpace(next)
		return StateAppliedClean, r.record(rec, StateAppliedClean, fmt.Sprintf("dry-run: %s applies cleanly", p.Operation))
	}

	var conflicted []string
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		conflicted = append(conflicted, line)
	}
	if err := r.record(rec, StateInConflict, strings.Join(conflicted, ", ")); err != nil {
		return "", err
	}

	meta := conflict.EscalationMeta{
		PRNumber: target.Number,
		Diff:     target.Diff,
		Mode:     p.Operation,
		Strategy: p.Strategy,
		Siblings: siblings(p.Targets, target.Number),
	}
	var unresolved []string
	for _, path := range conflicted {
		ok, err := r.previewMarkers(ctx, tree, path, meta, rec)
		if err != nil {
			return "", err
		}
		if !ok {
			unresolved = append(unresolved, path)
		}
	}

	if len(unresolved) > 0 {
		detail := fmt.Sprintf("dry-run: unresolved: %s", strings.Join(unresolved, ", "))
		if r.Policy == config.PolicySkip {
			return StateSkipped, r.record(rec, StateSkipped, detail)
		}
		return StateFailedManual, r.record(rec, StateFailedManual, detail)
	}
	// The resolved content never becomes a preview commit, so later PRs are
	// previewed against the last clean head.
	return StateAppliedResolved, r.record(rec, StateAppliedResolved, "dry-run: conflicts resolve by rules")
}

// previewMarkers classifies the conflicted hunks of one file from the
// merge-tree result. Escalation is rules-only in a dry run; hunks a real run
// would escalate are reported as unresolved.
func (r *Runner) previewMarkers(ctx context.Context, tree string, path string, meta conflict.EscalationMeta, rec *Record) (bool, error) {
	res, err := r.Git.Exec(ctx, "show", tree+":"+path)
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		// Delete/modify and similar conflicts leave no merged blob to classify.
		return false, nil
	}
	if !conflict.HasMarkers(res.Stdout) {
		return false, nil
	}

	file, err := conflict.ParseFile(path, res.Stdout)
	if err != nil {
		_ = r.Auditor.Log(audit.Entry{
			PR:    rec.PR,
			Event: audit.EventHunkResolution,
			Fields: []audit.Field{
				{Key: "path", Value: path},
				{Key: "outcome", Value: "parse_error"},
				{Key: "reason", Value: err.Error()},
			},
		})
		return false, nil
	}

	summaries := conflict.ResolveFileHunks(ctx, file, r.Options, nil, meta)
	for _, s := range summaries {
		_ = r.Auditor.LogHunkResolution(rec.PR, s.File, s.Hunk, string(s.Classification), string(s.Tier), string(s.Outcome), s.Reason)
	}
	rec.Hunks = append(rec.Hunks, summaries...)
	return file.Resolved(), nil
}

// resolveConflicts routes every unmerged file through the appropriate
// resolution and finishes or abandons the stopped operation.
func (r *Runner) resolveConflicts(ctx context.Context, p plan.ReleasePlan, target pr.PullRequest, rec *Record) (State, error) {
	statusOut, err := r.Git.Run(ctx, "status", "--porcelain")
	if err != nil {
		return "", err
	}

	// In a cherry-pick the incoming PR commit is "theirs"; in a revert the
	// current branch is what we want to keep.
	prefer := "theirs"
	if p.Operation == "revert" {
		prefer = "ours"
	}

	meta := conflict.EscalationMeta{
		PRNumber: target.Number,
		Diff:     target.Diff,
		Mode:     p.Operation,
		Strategy: p.Strategy,
		Siblings: siblings(p.Targets, target.Number),
	}

	var unresolved []string
	for _, entry := range conflictEntries(parsePorcelain(statusOut)) {
		ok, err := r.resolveEntry(ctx, entry, p.Operation, prefer, meta, rec)
		if err != nil {
			return "", err
		}
		if !ok {
			unresolved = append(unresolved, entry.Path)
		}
	}

	if len(unresolved) > 0 {
		return r.abandon(ctx, p.Operation, rec, fmt.Sprintf("unresolved: %s", strings.Join(unresolved, ", ")))
	}

	cont, err := r.Git.Exec(ctx, "-c", "core.editor=true", p.Operation, "--continue")
	if err != nil {
		return "", err
	}
	if cont.ExitCode != 0 {
		if classifyOutcome(cont, p.Operation) == outcomeNoop {
			_, _ = r.Git.Exec(ctx, p.Operation, "--skip")
			return StateAppliedResolved, r.record(rec, StateAppliedResolved, "resolution left an empty commit; skipped")
		}
		return r.abandon(ctx, p.Operation, rec, fmt.Sprintf("%s --continue failed: %s", p.Operation, strings.TrimSpace(cont.Combined())))
	}
	return StateAppliedResolved, r.record(rec, StateAppliedResolved, "")
}

// resolveEntry handles one porcelain conflict entry. Returns false when the
// file could not be resolved.
func (r *Runner) resolveEntry(ctx context.Context, entry statusEntry, operation string, prefer string, meta conflict.EscalationMeta, rec *Record) (bool, error) {
	switch entry.XY {
	case "UU":
		return r.resolveMarkers(ctx, entry.Path, meta, rec)

	case "DU":
		// Deleted in ours, modified in theirs.
		if operation == "cherry-pick" {
			return r.checkoutSide(ctx, entry.Path, "theirs")
		}
		return r.checkoutSide(ctx, entry.Path, "ours")

	case "UD":
		// Modified in ours, deleted in theirs.
		if operation == "cherry-pick" {
			_, err := r.Git.Exec(ctx, "rm", "-f", "--", entry.Path)
			return err == nil, err
		}
		return r.checkoutSide(ctx, entry.Path, "ours")

	case "AA", "RD", "DR", "RR":
		return r.checkoutSide(ctx, entry.Path, prefer)

	case "DD":
		_, err := r.Git.Exec(ctx, "rm", "-f", "--", entry.Path)
		return err == nil, err

	default:
		return false, nil
	}
}

// resolveMarkers runs the hunk classifier/resolver pipeline over a
// modify/modify conflict and validates the result before accepting it.
func (r *Runner) resolveMarkers(ctx context.Context, path string, meta conflict.EscalationMeta, rec *Record) (bool, error) {
	fullPath := filepath.Join(r.Git.Root(), path)
	original, err := os.ReadFile(fullPath)
	if err != nil {
		return false, fmt.Errorf("execute: read %s: %w", path, err)
	}

	if !conflict.HasMarkers(string(original)) {
		return r.stage(ctx, path)
	}

	file, err := conflict.ParseFile(path, string(original))
	if err != nil {
		// Stray or nested markers degrade to manual handling for the file.
		_ = r.Auditor.Log(audit.Entry{
			PR:    rec.PR,
			Event: audit.EventHunkResolution,
			Fields: []audit.Field{
				{Key: "path", Value: path},
				{Key: "outcome", Value: "parse_error"},
				{Key: "reason", Value: err.Error()},
			},
		})
		return false, nil
	}

	summaries := conflict.ResolveFileHunks(ctx, file, r.Options, r.Escalator, meta)
	for _, s := range summaries {
		_ = r.Auditor.LogHunkResolution(rec.PR, s.File, s.Hunk, string(s.Classification), string(s.Tier), string(s.Outcome), s.Reason)
	}
	rec.Hunks = append(rec.Hunks, summaries...)

	if !file.Resolved() {
		return false, nil
	}

	rendered, err := file.Render()
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(fullPath, []byte(rendered), 0o644); err != nil {
		return false, fmt.Errorf("execute: write %s: %w", path, err)
	}
	if err := r.Checker.Check(ctx, fullPath); err != nil {
		// A structurally broken resolution is discarded; the file goes back
		// to its conflicted state and the PR takes the manual path.
		if restoreErr := os.WriteFile(fullPath, original, 0o644); restoreErr != nil {
			return false, fmt.Errorf("execute: restore %s: %w", path, restoreErr)
		}
		_ = r.Auditor.Log(audit.Entry{
			PR:    rec.PR,
			Event: audit.EventHunkResolution,
			Fields: []audit.Field{
				{Key: "path", Value: path},
				{Key: "outcome", Value: "validity_rejected"},
				{Key: "reason", Value: err.Error()},
			},
		})
		return false, nil
	}

	return r.stage(ctx, path)
}

// abandon aborts the stopped operation and records the policy outcome.
func (r *Runner) abandon(ctx context.Context, operation string, rec *Record, detail string) (State, error) {
	_, _ = r.Git.Exec(ctx, operation, "--abort")
	if r.Policy == config.PolicySkip {
		return StateSkipped, r.record(rec, StateSkipped, detail)
	}
	return StateFailedManual, r.record(rec, StateFailedManual, detail)
}

// record applies a state transition, journals it, and audits it.
func (r *Runner) record(rec *Record, to State, detail string) error {
	if err := ValidateTransition(rec.State, to); err != nil {
		return err
	}
	from := rec.State
	rec.State = to
	if detail != "" {
		rec.Detail = detail
	}
	if r.Now != nil {
		rec.Timestamp = r.Now()
	} else {
		rec.Timestamp = time.Now()
	}
	_ = r.Auditor.LogPRTransition(rec.PR, rec.Operation, string(from), string(to), detail)
	if r.Journal != nil && !r.DryRun {
		if err := r.Journal.Append(*rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) operationArgs(operation string, commit string) []string {
	if operation == "revert" {
		return []string{"revert", "--no-edit", "-m", "1", commit}
	}
	return []string{"cherry-pick", "-m", "1", commit}
}

func (r *Runner) checkoutSide(ctx context.Context, path string, side string) (bool, error) {
	res, err := r.Git.Exec(ctx, "checkout", "--"+side, "--", path)
	if err != nil || res.ExitCode != 0 {
		return false, err
	}
	return r.stage(ctx, path)
}

func (r *Runner) stage(ctx context.Context, path string) (bool, error) {
	if _, err := r.Git.Run(ctx, "add", "--", path); err != nil {
		return false, err
	}
	return true, nil
}

// siblings lists the other PRs in the run for escalation context.
func siblings(targets []pr.PullRequest, self int) []conflict.SiblingPR {
	var out []conflict.SiblingPR
	for _, t := range targets {
		if t.Number == self {
			continue
		}
		out = append(out, conflict.SiblingPR{Number: t.Number, Title: t.Title})
	}
	return out
}

func tally(records []Record) (applied, skipped, failed int) {
	for _, rec := range records {
		switch {
		case rec.State.Applied():
			applied++
		case rec.State == StateSkipped:
			skipped++
		case rec.State == StateFailedManual:
			failed++
		}
	}
	return applied, skipped, failed
}
