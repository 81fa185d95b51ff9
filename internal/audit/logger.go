// Package audit provides append-only audit logging for release runs.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// localStateDirName is the relative path for transient run state.
	localStateDirName = "_releasepilot/_local-state"
	// auditLogFileName is the filename used for audit logging.
	auditLogFileName = "audit.log"
	// snapshotDirName holds machine-readable JSON snapshot records.
	snapshotDirName = "snapshots"
	// auditLogFileMode defines the permissions for the audit log file.
	auditLogFileMode = 0o644
	// auditLogDirMode defines the permissions for the audit log directory.
	auditLogDirMode = 0o755
)

const (
	// EventRunStart records the start of a release run.
	EventRunStart = "run.start"
	// EventRunOutcome records the final outcome of a release run.
	EventRunOutcome = "run.outcome"
	// EventPRTransition records execution state transitions for a PR.
	EventPRTransition = "pr.transition"
	// EventHunkResolution records a per-hunk conflict resolution.
	EventHunkResolution = "hunk.resolution"
	// EventEscalation records an escalation round-trip for a hunk.
	EventEscalation = "escalation"
	// EventDecision records a PR-level INCLUDE/EXCLUDE decision.
	EventDecision = "decision"
	// EventDepsValidation records the dependency validation pass.
	EventDepsValidation = "deps.validation"
	// EventJournalReplay records terminal states recovered on resume.
	EventJournalReplay = "journal.replay"
	// EventBranchCreate records release branch creation.
	EventBranchCreate = "branch.create"
	// EventWorktreeCreate records worktree creation.
	EventWorktreeCreate = "worktree.create"
	// EventWorktreeDelete records worktree deletion.
	EventWorktreeDelete = "worktree.delete"
)

// Logger appends audit entries to a log file.
type Logger struct {
	root     string
	path     string
	warnings io.Writer
	now      func() time.Time
	mu       sync.Mutex
}

// Field represents a logfmt key/value pair.
type Field struct {
	Key   string
	Value string
}

// Entry captures the required audit log fields and any optional fields.
// PR is zero for run-level events.
type Entry struct {
	PR     int
	Event  string
	Fields []Field
}

// NewLogger builds an audit logger rooted at the provided repo.
func NewLogger(repoRoot string, warnings io.Writer) (*Logger, error) {
	if repoRoot == "" {
		return nil, errors.New("repo root is required")
	}
	if warnings == nil {
		warnings = os.Stderr
	}
	stateDir := filepath.Join(repoRoot, filepath.FromSlash(localStateDirName))
	return &Logger{
		root:     stateDir,
		path:     filepath.Join(stateDir, auditLogFileName),
		warnings: warnings,
		now:      time.Now,
	}, nil
}

// Log writes a generic audit entry to the log file. A nil logger discards
// the entry so callers can audit unconditionally.
func (logger *Logger) Log(entry Entry) error {
	if logger == nil {
		return nil
	}
	logger.mu.Lock()
	defer logger.mu.Unlock()

	line, err := logger.formatEntry(entry)
	if err != nil {
		logger.warnf("audit log entry rejected: %v", err)
		return err
	}
	if err := logger.appendLine(line); err != nil {
		logger.warnf("audit log write failed for %s: %v", logger.path, err)
		return err
	}
	return nil
}

// LogRunStart records the beginning of a run.
func (logger *Logger) LogRunStart(version string, strategy string, targets int, dryRun bool) error {
	return logger.Log(Entry{
		Event: EventRunStart,
		Fields: []Field{
			{Key: "version", Value: version},
			{Key: "strategy", Value: strategy},
			{Key: "targets", Value: strconv.Itoa(targets)},
			{Key: "dry_run", Value: strconv.FormatBool(dryRun)},
		},
	})
}

// LogRunOutcome records the final tally of a run.
func (logger *Logger) LogRunOutcome(applied int, skipped int, failed int, exitCode int) error {
	return logger.Log(Entry{
		Event: EventRunOutcome,
		Fields: []Field{
			{Key: "applied", Value: strconv.Itoa(applied)},
			{Key: "skipped", Value: strconv.Itoa(skipped)},
			{Key: "failed", Value: strconv.Itoa(failed)},
			{Key: "exit_code", Value: strconv.Itoa(exitCode)},
		},
	})
}

// LogPRTransition records an execution state transition for a PR.
func (logger *Logger) LogPRTransition(pr int, operation string, from string, to string, detail string) error {
	if from == "" || to == "" {
		return fmt.Errorf("pr transition requires from and to states")
	}
	return logger.Log(Entry{
		PR:    pr,
		Event: EventPRTransition,
		Fields: []Field{
			{Key: "operation", Value: operation},
			{Key: "from", Value: from},
			{Key: "to", Value: to},
			{Key: "detail", Value: detail},
		},
	})
}

// LogHunkResolution records one hunk's classification and chosen resolution.
func (logger *Logger) LogHunkResolution(pr int, path string, hunk int, classification string, tier string, outcome string, reason string) error {
	return logger.Log(Entry{
		PR:    pr,
		Event: EventHunkResolution,
		Fields: []Field{
			{Key: "path", Value: path},
			{Key: "hunk", Value: strconv.Itoa(hunk)},
			{Key: "classification", Value: classification},
			{Key: "tier", Value: tier},
			{Key: "outcome", Value: outcome},
			{Key: "reason", Value: reason},
		},
	})
}

// LogEscalation records one escalation round trip with its full prompt and
// raw response, whether or not the response was accepted.
func (logger *Logger) LogEscalation(pr int, path string, hunk int, provider string, model string, outcome string, prompt string, response string, reason string) error {
	return logger.Log(Entry{
		PR:    pr,
		Event: EventEscalation,
		Fields: []Field{
			{Key: "path", Value: path},
			{Key: "hunk", Value: strconv.Itoa(hunk)},
			{Key: "provider", Value: provider},
			{Key: "model", Value: model},
			{Key: "outcome", Value: outcome},
			{Key: "prompt", Value: prompt},
			{Key: "response", Value: response},
			{Key: "reason", Value: reason},
		},
	})
}

// LogDecision records a PR-level decision with its confidence and rationale.
func (logger *Logger) LogDecision(pr int, kind string, confidence string, rationale string) error {
	return logger.Log(Entry{
		PR:    pr,
		Event: EventDecision,
		Fields: []Field{
			{Key: "kind", Value: kind},
			{Key: "confidence", Value: confidence},
			{Key: "rationale", Value: rationale},
		},
	})
}

// LogDepsValidation records the size of the dependency validation report.
func (logger *Logger) LogDepsValidation(warnings int, recommendations int) error {
	return logger.Log(Entry{
		Event: EventDepsValidation,
		Fields: []Field{
			{Key: "warnings", Value: strconv.Itoa(warnings)},
			{Key: "recommendations", Value: strconv.Itoa(recommendations)},
		},
	})
}

// LogJournalReplay records how many terminal states a resume recovered.
func (logger *Logger) LogJournalReplay(recovered int) error {
	return logger.Log(Entry{
		Event: EventJournalReplay,
		Fields: []Field{
			{Key: "recovered", Value: strconv.Itoa(recovered)},
		},
	})
}

// WriteSnapshot persists a machine-readable JSON record alongside the audit
// log, one file per name. A nil logger discards the snapshot.
func (logger *Logger) WriteSnapshot(name string, payload any) error {
	if logger == nil {
		return nil
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("snapshot name is required")
	}
	dir := filepath.Join(logger.root, snapshotDirName)
	if err := os.MkdirAll(dir, auditLogDirMode); err != nil {
		return fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", name, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, append(data, '\n'), auditLogFileMode); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// formatEntry renders an audit entry in logfmt-style order.
func (logger *Logger) formatEntry(entry Entry) (string, error) {
	if entry.Event == "" {
		return "", errors.New("event is required")
	}
	now := logger.now
	if now == nil {
		now = time.Now
	}

	ts := now().UTC().Format(time.RFC3339)
	fields := []string{
		formatField("ts", ts),
		formatField("event", entry.Event),
	}
	if entry.PR > 0 {
		fields = append(fields, formatField("pr", strconv.Itoa(entry.PR)))
	}

	for _, field := range entry.Fields {
		if field.Value == "" {
			continue
		}
		if field.Key == "" {
			return "", errors.New("field key is required")
		}
		fields = append(fields, formatField(field.Key, field.Value))
	}
	return strings.Join(fields, " "), nil
}

// formatField encodes a logfmt key/value pair.
func formatField(key string, value string) string {
	encoded := sanitizeValue(value)
	if needsQuoting(encoded) {
		return fmt.Sprintf(`%s="%s"`, key, escapeLogfmt(encoded))
	}
	return fmt.Sprintf("%s=%s", key, encoded)
}

// sanitizeValue ensures values stay single-line.
func sanitizeValue(value string) string {
	value = strings.ReplaceAll(value, "\n", `\n`)
	return strings.ReplaceAll(value, "\r", `\r`)
}

// needsQuoting reports whether the value needs logfmt quoting.
func needsQuoting(value string) bool {
	if value == "" {
		return true
	}
	for _, r := range value {
		if r == ' ' || r == '\t' || r == '\n' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}

// escapeLogfmt escapes characters that must be quoted in logfmt values.
func escapeLogfmt(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}

// appendLine writes the log entry to the audit log file.
func (logger *Logger) appendLine(line string) error {
	if logger.path == "" {
		return errors.New("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(logger.path), auditLogDirMode); err != nil {
		return fmt.Errorf("create audit log directory %s: %w", filepath.Dir(logger.path), err)
	}
	file, err := os.OpenFile(logger.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, auditLogFileMode)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", logger.path, err)
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		_ = file.Close()
		return fmt.Errorf("write audit log %s: %w", logger.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close audit log %s: %w", logger.path, err)
	}
	return nil
}

// warnf writes a warning message to the configured warnings writer.
func (logger *Logger) warnf(format string, args ...any) {
	if logger == nil || logger.warnings == nil {
		return
	}
	_, _ = fmt.Fprintf(logger.warnings, format+"\n", args...)
}
