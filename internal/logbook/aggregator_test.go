package logbook_test

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/netwatch/netmon/internal/logbook"
	"github.com/netwatch/netmon/internal/models"
	"github.com/netwatch/netmon/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(device, message string) models.LogEntry {
	return models.LogEntry{
		Timestamp:  time.Now(),
		DeviceAddr: device,
		Message:    message,
		Severity:   models.SeverityNormal,
	}
}

// TestAggregator_AppendAndSnapshot tests that entries come back in append order.
func TestAggregator_AppendAndSnapshot(t *testing.T) {
	a := logbook.NewAggregator(file.NewFileService())

	a.Append(entry("10.0.0.1", "first\n"))
	a.Append(entry("10.0.0.2", "second\n"), entry("10.0.0.2", "third\n"))

	snapshot := a.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "first\n", snapshot[0].Message)
	assert.Equal(t, "second\n", snapshot[1].Message)
	assert.Equal(t, "third\n", snapshot[2].Message)
	assert.Equal(t, 3, a.Len())
}

// TestAggregator_SnapshotIsolation tests that mutating a snapshot does not
// affect the journal.
func TestAggregator_SnapshotIsolation(t *testing.T) {
	a := logbook.NewAggregator(file.NewFileService())
	a.Append(entry("10.0.0.1", "original\n"))

	snapshot := a.Snapshot()
	snapshot[0].Message = "mutated\n"

	assert.Equal(t, "original\n", a.Snapshot()[0].Message)
}

// TestAggregator_ConcurrentBatches tests that concurrent batches land whole:
// the journal holds the union of all entries and no batch is interleaved
// with another writer's entries.
func TestAggregator_ConcurrentBatches(t *testing.T) {
	a := logbook.NewAggregator(file.NewFileService())

	const writers = 8
	const batchesPerWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			device := fmt.Sprintf("10.0.0.%d", w)
			for b := 0; b < batchesPerWriter; b++ {
				a.Append(
					entry(device, fmt.Sprintf("%d/%d/0", w, b)),
					entry(device, fmt.Sprintf("%d/%d/1", w, b)),
					entry(device, fmt.Sprintf("%d/%d/2", w, b)),
				)
			}
		}(w)
	}
	wg.Wait()

	snapshot := a.Snapshot()
	require.Len(t, snapshot, writers*batchesPerWriter*3)

	// Every batch of three must be contiguous in the snapshot.
	for i := 0; i < len(snapshot); i += 3 {
		prefix := snapshot[i].Message[:len(snapshot[i].Message)-1]
		assert.Equal(t, prefix+"0", snapshot[i].Message)
		assert.Equal(t, prefix+"1", snapshot[i+1].Message)
		assert.Equal(t, prefix+"2", snapshot[i+2].Message)
	}
}

// TestAggregator_Clear tests that appends after a clear start a fresh sequence.
func TestAggregator_Clear(t *testing.T) {
	a := logbook.NewAggregator(file.NewFileService())
	a.Append(entry("10.0.0.1", "before\n"))

	a.Clear()
	assert.Equal(t, 0, a.Len())

	a.Append(entry("10.0.0.1", "after\n"))
	snapshot := a.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "after\n", snapshot[0].Message)
}

// TestAggregator_SaveTo tests that persistence concatenates message bodies
// with no extra separators.
func TestAggregator_SaveTo(t *testing.T) {
	a := logbook.NewAggregator(file.NewFileService())
	a.Append(entry("10.0.0.1", "[12:00:00] "), entry("10.0.0.1", "Reply received\n"))

	path := filepath.Join(t.TempDir(), "journal.txt")
	require.NoError(t, a.SaveTo(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[12:00:00] Reply received\n", string(data))
}

// TestAggregator_SaveTimestamped tests the saved file naming pattern.
func TestAggregator_SaveTimestamped(t *testing.T) {
	a := logbook.NewAggregator(file.NewFileService())
	a.Append(entry("10.0.0.1", "line\n"))

	dir := t.TempDir()
	path, err := a.SaveTimestamped(dir)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^log_\d{8}_\d{6}\.txt$`), filepath.Base(path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
