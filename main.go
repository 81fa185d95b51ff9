// Command releasepilot automates selective promotion of merged PRs into a
// release line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmtonkinson/releasepilot/internal/audit"
	"github.com/cmtonkinson/releasepilot/internal/buildinfo"
	"github.com/cmtonkinson/releasepilot/internal/classify"
	"github.com/cmtonkinson/releasepilot/internal/config"
	"github.com/cmtonkinson/releasepilot/internal/conflict"
	"github.com/cmtonkinson/releasepilot/internal/decision"
	"github.com/cmtonkinson/releasepilot/internal/deps"
	"github.com/cmtonkinson/releasepilot/internal/display"
	"github.com/cmtonkinson/releasepilot/internal/execute"
	"github.com/cmtonkinson/releasepilot/internal/llm"
	"github.com/cmtonkinson/releasepilot/internal/plan"
	"github.com/cmtonkinson/releasepilot/internal/pr"
	"github.com/cmtonkinson/releasepilot/internal/report"
	"github.com/cmtonkinson/releasepilot/internal/repo"
	"github.com/cmtonkinson/releasepilot/internal/runlock"
	"github.com/cmtonkinson/releasepilot/internal/status"
	"github.com/cmtonkinson/releasepilot/internal/tui"
	"github.com/cmtonkinson/releasepilot/internal/validity"
	"github.com/cmtonkinson/releasepilot/internal/worktree"
)

const usage = `releasepilot - selective PR promotion into release lines

USAGE:
    releasepilot [global options] <command> [command options]

GLOBAL OPTIONS:
    -v, --verbose    Enable verbose output for debugging

COMMANDS:
    plan             Discover merged PRs, decide the release set, and print the plan
    run              Execute the plan: cherry-pick or revert PRs on the release branch
    status           Display promotion status for a release from its journal
    version          Print version and build information

Run 'releasepilot <command> -h' for command-specific help.
`

func main() {
	globalFlags := flag.NewFlagSet("releasepilot", flag.ExitOnError)
	globalFlags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	verbose := globalFlags.Bool("v", false, "")
	verboseLong := globalFlags.Bool("verbose", false, "")

	if len(os.Args) < 2 {
		globalFlags.Usage()
		os.Exit(2)
	}

	args := os.Args[1:]
	for len(args) > 0 && (args[0] == "-v" || args[0] == "--verbose") {
		if args[0] == "-v" {
			*verbose = true
		} else {
			*verboseLong = true
		}
		args = args[1:]
	}
	isVerbose := *verbose || *verboseLong

	if len(args) == 0 {
		globalFlags.Usage()
		os.Exit(2)
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "plan":
		runPlan(isVerbose, commandArgs)
	case "run":
		runRun(isVerbose, commandArgs)
	case "status":
		runStatus(commandArgs)
	case "version":
		runVersion()
	case "-h", "--help", "help":
		globalFlags.Usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "releasepilot: unknown command %q\n\n", command)
		globalFlags.Usage()
		os.Exit(2)
	}
}

func runPlan(verbose bool, args []string) {
	flags := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := flags.String("config", config.DefaultFileName, "")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, `USAGE:
    releasepilot plan [options]

DESCRIPTION:
    Discover PRs merged into the base branch since the last release tag,
    decide the release set, validate dependencies, and print the resulting
    plan. No git operations are performed on the release branch.

OPTIONS:
    --config <path>    Release configuration file (default: release.yaml)
    -h, --help         Show this help message
`)
	}
	flags.Parse(args)

	if flags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "releasepilot plan: unexpected arguments\n\n")
		flags.Usage()
		os.Exit(2)
	}

	repoRoot, err := repo.DiscoverRootFromCWD()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg, err := loadConfig(repoRoot, *configPath, config.Overrides{}, verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	auditor, err := audit.NewLogger(repoRoot, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	git, err := repo.NewGit(repoRoot)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	discovery, err := pr.Discover(ctx, git, cfg.BaseBranch)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	discovery.PRs = enrichWindow(ctx, cfg, discovery.PRs)

	decisions := capabilityDecisions(ctx, cfg, discovery.PRs, auditor)
	p, err := plan.Build(cfg, discovery.PRs, decisions)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	_ = auditor.LogDepsValidation(len(p.Validation.Warnings), len(p.Validation.Recommendations))
	_ = auditor.WriteSnapshot("plan", p)

	if discovery.LastTag != "" {
		fmt.Printf("window: %d PRs merged into %s since %s\n\n", len(discovery.PRs), cfg.BaseBranch, discovery.LastTag)
	} else {
		fmt.Printf("window: %d PRs merged into %s (no release tag found)\n\n", len(discovery.PRs), cfg.BaseBranch)
	}
	fmt.Print(display.GetSummary(p, discovery.PRs).String())
	if len(p.Unknown) > 0 {
		fmt.Printf("\nwarning: configured PRs not found in the window: %v\n", p.Unknown)
	}
	fmt.Printf("\norder of operations (%s):", p.Operation)
	for _, target := range p.Targets {
		fmt.Printf(" #%d", target.Number)
	}
	fmt.Println()
}

func runRun(verbose bool, args []string) {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := flags.String("config", config.DefaultFileName, "")
	dryRun := flags.Bool("dry-run", false, "")
	policy := flags.String("policy", "", "")
	branch := flags.String("branch", "", "")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, `USAGE:
    releasepilot run [options]

DESCRIPTION:
    Build the release plan and execute it in an isolated worktree on the
    release branch. Include strategy cherry-picks admitted PRs oldest-first;
    exclude strategy reverts excluded PRs newest-first. A halted or skipped
    run can be re-run to resume; already-applied PRs are not reapplied.

    Exit code is 0 when every PR applied, 2 when any PR was skipped or needs
    manual resolution, and 1 on internal errors.

OPTIONS:
    --config <path>    Release configuration file (default: release.yaml)
    --dry-run          Simulate without touching the release branch
    --policy <name>    Conflict policy override: pause or skip
    --branch <name>    Release branch override
    -h, --help         Show this help message
`)
	}
	flags.Parse(args)

	if flags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "releasepilot run: unexpected arguments\n\n")
		flags.Usage()
		os.Exit(2)
	}

	overrides := config.Overrides{
		ConflictPolicy: *policy,
		ReleaseBranch:  *branch,
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "dry-run" {
			overrides.DryRun = *dryRun
			overrides.DryRunSet = true
		}
	})

	repoRoot, err := repo.DiscoverRootFromCWD()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg, err := loadConfig(repoRoot, *configPath, overrides, verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	lock, err := runlock.Acquire(repoRoot, cfg.Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	code := executeRelease(repoRoot, cfg)
	_ = lock.Release()
	os.Exit(code)
}

// executeRelease performs discovery, planning, and execution for a locked run.
// It returns the process exit code instead of exiting so the run lock can be
// released on every path.
func executeRelease(repoRoot string, cfg config.Config) int {
	auditor, err := audit.NewLogger(repoRoot, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return execute.ExitInternal
	}

	ctx := context.Background()
	started := time.Now()

	baseGit, err := repo.NewGit(repoRoot)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return execute.ExitInternal
	}
	discovery, err := pr.Discover(ctx, baseGit, cfg.BaseBranch)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return execute.ExitInternal
	}
	discovery.PRs = enrichWindow(ctx, cfg, discovery.PRs)

	decisions := capabilityDecisions(ctx, cfg, discovery.PRs, auditor)
	p, err := plan.Build(cfg, discovery.PRs, decisions)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return execute.ExitInternal
	}
	_ = auditor.LogDepsValidation(len(p.Validation.Warnings), len(p.Validation.Recommendations))
	for _, warning := range p.Validation.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning.Detail)
	}

	// Include builds the release from the last tagged state; exclude prunes
	// a branch that already carries the window.
	baseRef := cfg.BaseBranch
	if cfg.IsInclude() {
		if discovery.LastTag != "" {
			baseRef = discovery.LastTag
		} else {
			fmt.Fprintf(os.Stderr, "warning: no release tag found, forking %s from %s\n", cfg.ReleaseBranch, cfg.BaseBranch)
		}
	}

	// A dry run previews against the ref a real run would execute on without
	// creating the branch or the worktree.
	runGit := baseGit
	previewRef := ""
	var tree worktree.Result
	if cfg.DryRun {
		previewRef = baseRef
		if res, err := baseGit.Exec(ctx, "rev-parse", "--verify", "refs/heads/"+cfg.ReleaseBranch); err == nil && res.ExitCode == 0 {
			previewRef = cfg.ReleaseBranch
		}
	} else {
		manager, err := worktree.NewManager(repoRoot, auditor)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return execute.ExitInternal
		}
		tree, err = manager.EnsureWorktree(worktree.Spec{
			Version:       cfg.Version,
			ReleaseBranch: cfg.ReleaseBranch,
			BaseRef:       baseRef,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return execute.ExitInternal
		}
		runGit, err = repo.NewGit(tree.Path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return execute.ExitInternal
		}
	}

	journal, err := execute.OpenJournal(repoRoot, cfg.Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return execute.ExitInternal
	}

	minConfidence, err := classify.ParseTier(cfg.ConflictResolution.MinConfidence)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return execute.ExitInternal
	}

	runner := &execute.Runner{
		Git:        runGit,
		Policy:     cfg.ConflictPolicy,
		DryRun:     cfg.DryRun,
		PreviewRef: previewRef,
		Options: conflict.Options{
			SafetyPrefer:  cfg.ConflictResolution.SafetyPrefer,
			MinConfidence: minConfidence,
		},
		Escalator: newEscalator(cfg, auditor),
		Checker:   validity.NewChecker(),
		Auditor:   auditor,
		Journal:   journal,
	}
	result, err := runner.Run(ctx, p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return execute.ExitInternal
	}

	generator, err := report.NewGenerator(repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	} else {
		path, err := generator.Generate(report.Data{
			Plan:     p,
			Window:   discovery.PRs,
			LastTag:  discovery.LastTag,
			Records:  result.Records,
			ExitCode: result.ExitCode,
			DryRun:   cfg.DryRun,
			Elapsed:  time.Since(started),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else {
			fmt.Printf("report: %s\n", relPath(repoRoot, path))
		}
	}

	for _, rec := range result.Records {
		fmt.Printf("PR #%d: %s", rec.PR, rec.State)
		if rec.Detail != "" {
			fmt.Printf(" (%s)", rec.Detail)
		}
		fmt.Println()
	}
	if result.HaltedPR != 0 {
		fmt.Fprintf(os.Stderr, "halted on PR #%d; resolve manually in %s and re-run to resume\n",
			result.HaltedPR, tree.RelativePath)
	}
	return result.ExitCode
}

func runStatus(args []string) {
	flags := flag.NewFlagSet("status", flag.ExitOnError)
	version := flags.String("version", "", "")
	watch := flags.Bool("watch", false, "")
	watchShort := flags.Bool("w", false, "")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, `USAGE:
    releasepilot status [options]

DESCRIPTION:
    Display promotion status for a release, replayed from its journal.
    Default mode shows a static snapshot; watch mode provides live updates.

OPTIONS:
    --version <v>    Release version (default: most recent journal)
    -w, --watch      Enable interactive watch mode with live updates
    -h, --help       Show this help message
`)
	}
	flags.Parse(args)

	watchMode := *watch || *watchShort

	if flags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "releasepilot status: unexpected arguments\n\n")
		flags.Usage()
		os.Exit(2)
	}

	repoRoot, err := repo.DiscoverRootFromCWD()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if watchMode {
		if err := tui.Run(repoRoot, *version); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	summary, err := status.GetSummary(repoRoot, *version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Println(summary.String())
	if !summary.Done() {
		os.Exit(2)
	}
}

func runVersion() {
	fmt.Println(buildinfo.String())
}

// loadConfig resolves the config path against the repo root and applies
// overrides. Default-substitution warnings surface only in verbose mode.
func loadConfig(repoRoot string, path string, overrides config.Overrides, verbose bool) (config.Config, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	warn := func(string) {}
	if verbose {
		warn = func(msg string) { fmt.Fprintf(os.Stderr, "config: %s\n", msg) }
	}
	return config.Load(path, overrides, warn)
}

// capabilityDecisions asks the configured provider for a verdict on every
// configured PR whose diff is not purely cosmetic. Any capability failure
// degrades to configuration-only planning.
func capabilityDecisions(ctx context.Context, cfg config.Config, window []pr.PullRequest, auditor *audit.Logger) []decision.Decision {
	if !cfg.LLM.Enabled {
		return nil
	}
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: decision capability unavailable: %v\n", err)
		return nil
	}
	budget := llm.NewBudget(cfg.LLM.MaxCallsPerRun)
	decider := decision.NewDecider(provider, budget, cfg.LLM.Temperature)

	overlapHints := make(map[int][]string)
	for _, overlap := range deps.InferOverlaps(cfg.PRs, window) {
		overlapHints[overlap.PR] = append(overlapHints[overlap.PR], fmt.Sprintf(
			"shares %s with earlier PR #%d", strings.Join(overlap.SharedFiles, ", "), overlap.DependsOn))
	}

	byNumber := make(map[int]pr.PullRequest, len(window))
	for _, p := range window {
		byNumber[p.Number] = p
	}

	var out []decision.Decision
	for _, number := range cfg.PRs {
		target, ok := byNumber[number]
		if !ok {
			continue
		}
		analysis := classify.AnalyzeDiff(target.Diff)
		if analysis.CosmeticOnly && len(overlapHints[number]) == 0 {
			continue
		}
		dec := decider.Decide(ctx, decision.Request{
			PR:        target,
			Analysis:  analysis,
			Conflicts: overlapHints[number],
			Siblings:  siblingsOf(window, number),
			Strategy:  cfg.Strategy,
			Version:   cfg.Version,
			Base:      cfg.BaseBranch,
		})
		_ = auditor.LogDecision(dec.PR, string(dec.Kind), string(dec.Confidence), dec.Rationale)
		out = append(out, dec)
	}
	return out
}

// newEscalator wires the hunk-escalation capability when smart merge and the
// provider are both enabled.
func newEscalator(cfg config.Config, auditor *audit.Logger) *conflict.Escalator {
	if !cfg.LLM.Enabled || !cfg.ConflictResolution.SmartMerge {
		return nil
	}
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: escalation capability unavailable: %v\n", err)
		return nil
	}
	budget := llm.NewBudget(cfg.LLM.MaxCallsPerRun)
	return conflict.NewEscalator(provider, budget, cfg.LLM.Model, cfg.LLM.Temperature, auditor)
}

// enrichWindow overlays gh metadata onto the discovered window when the gh
// CLI is available, keeping history-only discovery when it is not.
func enrichWindow(ctx context.Context, cfg config.Config, window []pr.PullRequest) []pr.PullRequest {
	source := pr.GHSource{}
	if !source.Available() {
		return window
	}
	enriched, err := pr.Enrich(ctx, window, source, cfg.BaseBranch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: gh metadata unavailable, using git history only: %v\n", err)
		return window
	}
	return enriched
}

func siblingsOf(window []pr.PullRequest, number int) []pr.PullRequest {
	siblings := make([]pr.PullRequest, 0, len(window))
	for _, p := range window {
		if p.Number == number {
			continue
		}
		siblings = append(siblings, p)
	}
	return siblings
}

func relPath(root string, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
