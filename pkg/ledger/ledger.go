package ledger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"typeporter/pkg/logger"
)

// Stage names used by the pipeline
const (
	StageDiscover = "discover"
	StageArchive  = "archive"
)

var stageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Ledger is the durable record of completed work items, one append-only
// line-oriented log per stage. Keys are derived from source URLs, never
// local paths, so re-runs are idempotent. An entry is appended only
// after the side effect it guards is durably visible (write-then-mark).
type Ledger struct {
	dir    string
	mu     sync.RWMutex
	stages map[string]map[string]struct{}
	files  map[string]*os.File
	logger logger.Logger
}

// Open loads all stage logs under dir, replaying them into in-memory
// key sets. The directory is created if missing.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &Ledger{
		dir:    dir,
		stages: make(map[string]map[string]struct{}),
		files:  make(map[string]*os.File),
		logger: logger.GetLogger(),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".log") {
			continue
		}
		stage := strings.TrimSuffix(name, ".log")
		if err := l.replay(stage); err != nil {
			return nil, fmt.Errorf("failed to replay %s ledger: %w", stage, err)
		}
	}

	return l, nil
}

// replay reads one stage log into memory. Duplicate keys collapse into
// one entry; a torn final line (no trailing newline, crash mid-append)
// is discarded so the interrupted item runs again.
func (l *Ledger) replay(stage string) error {
	file, err := os.Open(l.logPath(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	keys := make(map[string]struct{})
	reader := bufio.NewReader(file)
	torn := false
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			if line != "" {
				torn = true
			}
			break
		}
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(line, "\n")
		if key != "" {
			keys[key] = struct{}{}
		}
	}

	l.mu.Lock()
	l.stages[stage] = keys
	l.mu.Unlock()

	fields := map[string]interface{}{"stage": stage, "entries": len(keys)}
	if torn {
		l.logger.WarnWithFields("ledger log ended mid-line, discarding torn entry", fields)
	} else {
		l.logger.DebugWithFields("ledger replayed", fields)
	}

	return nil
}

// IsDone reports whether the work item was completed in a prior or the
// current run
func (l *Ledger) IsDone(stage, key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys, ok := l.stages[stage]
	if !ok {
		return false
	}
	_, done := keys[key]
	return done
}

// MarkDone appends the key to the stage log and records it in memory.
// Call only after the guarded side effect is durably visible. Marking
// an already-done key is a no-op.
func (l *Ledger) MarkDone(stage, key string) error {
	if !stageNamePattern.MatchString(stage) {
		return fmt.Errorf("invalid ledger stage name %q", stage)
	}
	if key == "" || strings.ContainsAny(key, "\n\r") {
		return fmt.Errorf("invalid ledger key %q", key)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if keys, ok := l.stages[stage]; ok {
		if _, done := keys[key]; done {
			return nil
		}
	}

	file, err := l.stageFile(stage)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger log: %w", err)
	}

	if l.stages[stage] == nil {
		l.stages[stage] = make(map[string]struct{})
	}
	l.stages[stage][key] = struct{}{}

	return nil
}

// Invalidate drops a key from the in-memory set so the item is treated
// as pending again. The log keeps the stale line; re-completion appends
// a duplicate, which replay tolerates.
func (l *Ledger) Invalidate(stage, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if keys, ok := l.stages[stage]; ok {
		delete(keys, key)
	}
}

// VerifyArtifact checks the ledger against the filesystem: a key is
// only honored as done when its artifact still exists. A marked key
// with a missing artifact is invalidated and reported not done.
func (l *Ledger) VerifyArtifact(stage, key, artifactPath string) bool {
	if !l.IsDone(stage, key) {
		return false
	}
	if _, err := os.Stat(artifactPath); err == nil {
		return true
	}

	l.logger.WarnWithFields("ledger marks item done but artifact is missing, re-running", map[string]interface{}{
		"stage":    stage,
		"key":      key,
		"artifact": artifactPath,
	})
	l.Invalidate(stage, key)
	return false
}

// CountDone returns the number of completed items in a stage
func (l *Ledger) CountDone(stage string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.stages[stage])
}

// Keys returns a snapshot of the completed keys in a stage
func (l *Ledger) Keys(stage string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.stages[stage]))
	for key := range l.stages[stage] {
		keys = append(keys, key)
	}
	return keys
}

// Close flushes and closes all open stage logs
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for stage, file := range l.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s ledger log: %w", stage, err)
		}
		delete(l.files, stage)
	}
	return firstErr
}

// stageFile returns the open append handle for a stage, opening it on
// first use. Caller holds l.mu.
func (l *Ledger) stageFile(stage string) (*os.File, error) {
	if file, ok := l.files[stage]; ok {
		return file, nil
	}

	file, err := os.OpenFile(l.logPath(stage), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger log for stage %s: %w", stage, err)
	}
	l.files[stage] = file
	return file, nil
}

func (l *Ledger) logPath(stage string) string {
	return filepath.Join(l.dir, stage+".log")
}
