package logbook

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/netwatch/netmon/internal/models"
	"github.com/netwatch/netmon/pkg/file"
)

// Aggregator is the shared, append-only journal all device monitors write
// into. A single mutex guards every operation; a batch passed to Append is
// never interleaved with another goroutine's batch.
type Aggregator struct {
	mu      sync.Mutex
	entries []models.LogEntry
	fileOps file.FileOperations
}

// NewAggregator creates an empty journal that persists through fileOps.
func NewAggregator(fileOps file.FileOperations) *Aggregator {
	return &Aggregator{
		fileOps: fileOps,
	}
}

// Append atomically adds an ordered batch of entries.
func (a *Aggregator) Append(entries ...models.LogEntry) {
	if len(entries) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entries...)
}

// Snapshot returns a copy of all current entries in append order.
func (a *Aggregator) Snapshot() []models.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.LogEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the current number of entries.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Clear empties the journal. Appends racing with Clear land in the fresh
// sequence.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
}

// SaveTo writes the concatenated message bodies of a snapshot to path.
// Entries carry their own separators, so no extra delimiters are added.
func (a *Aggregator) SaveTo(path string) error {
	snapshot := a.Snapshot()

	var sb strings.Builder
	for _, e := range snapshot {
		sb.WriteString(e.Message)
	}

	if err := a.fileOps.WriteFile(path, sb.String()); err != nil {
		return fmt.Errorf("failed to save log to %s: %w", path, err)
	}
	return nil
}

// SaveTimestamped saves the journal into dir under a local-timestamp name,
// pattern log_<YYYYMMDD>_<HHMMSS>.txt, and returns the path written.
func (a *Aggregator) SaveTimestamped(dir string) (string, error) {
	name := fmt.Sprintf("log_%s.txt", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := a.SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
