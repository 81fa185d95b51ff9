package execute

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	journalDirName  = "_releasepilot/_local-state/journal"
	journalFileName = "records.jsonl"
	journalDirMode  = 0o755
	journalFileMode = 0o644
)

// Journal persists ExecutionRecords as JSON lines so a halted run can be
// resumed without reapplying PRs. One line per state transition, append-only.
type Journal struct {
	path string
	mu   sync.Mutex
}

// OpenJournal creates the journal directory under repoRoot and returns the
// journal for this release version.
func OpenJournal(repoRoot string, version string) (*Journal, error) {
	if strings.TrimSpace(repoRoot) == "" {
		return nil, fmt.Errorf("journal: repo root is required")
	}
	if strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("journal: version is required")
	}
	dir := filepath.Join(repoRoot, filepath.FromSlash(journalDirName), version)
	if err := os.MkdirAll(dir, journalDirMode); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Journal{path: filepath.Join(dir, journalFileName)}, nil
}

// Append writes one record to the journal.
func (j *Journal) Append(rec Record) error {
	if rec.PR <= 0 {
		return fmt.Errorf("journal: record needs a positive PR number")
	}
	if rec.State == "" {
		return fmt.Errorf("journal: record needs a state")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal record for PR #%d: %w", rec.PR, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, journalFileMode)
	if err != nil {
		return fmt.Errorf("journal: open %s: %w", j.path, err)
	}
	defer file.Close()
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("journal: append to %s: %w", j.path, err)
	}
	return nil
}

// Replay reads the journal and returns the latest record per PR. Missing
// journal files yield an empty map: a fresh run. Corrupt lines are skipped
// so a torn final write cannot block resumption.
func (j *Journal) Replay() (map[int]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]Record{}, nil
		}
		return nil, fmt.Errorf("journal: open %s: %w", j.path, err)
	}
	defer file.Close()

	records := make(map[int]Record)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records[rec.PR] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: read %s: %w", j.path, err)
	}
	return records, nil
}

// JournalVersions lists the release versions with a journal under repoRoot,
// most recently written first.
func JournalVersions(repoRoot string) ([]string, error) {
	dir := filepath.Join(repoRoot, filepath.FromSlash(journalDirName))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: read %s: %w", dir, err)
	}
	type stamped struct {
		version string
		modTime int64
	}
	var found []stamped
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, entry.Name(), journalFileName))
		if err != nil {
			continue
		}
		found = append(found, stamped{version: entry.Name(), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].modTime != found[j].modTime {
			return found[i].modTime > found[j].modTime
		}
		return found[i].version > found[j].version
	})
	versions := make([]string, len(found))
	for i, s := range found {
		versions[i] = s.version
	}
	return versions, nil
}

// TerminalStates filters a replayed record set down to the PRs whose last
// state permits no further operation.
func TerminalStates(records map[int]Record) map[int]Record {
	out := make(map[int]Record)
	for pr, rec := range records {
		if rec.State.Terminal() {
			out[pr] = rec
		}
	}
	return out
}
