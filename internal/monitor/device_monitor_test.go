package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netwatch/netmon/internal/logbook"
	"github.com/netwatch/netmon/internal/models"
	"github.com/netwatch/netmon/internal/monitor"
	"github.com/netwatch/netmon/pkg/file"
	"github.com/netwatch/netmon/pkg/probe"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 5 * time.Millisecond

// scriptedProber replays a fixed sequence of outcomes and records the
// wall-clock time of every call. Once the script is exhausted it blocks
// until the monitor cancels the probe, which keeps sample counts exact.
type scriptedProber struct {
	mu        sync.Mutex
	reachable []bool
	errs      []error
	callTimes []time.Time
}

func (p *scriptedProber) Probe(ctx context.Context, host string) (probe.Result, error) {
	p.mu.Lock()
	i := len(p.callTimes)
	p.callTimes = append(p.callTimes, time.Now())
	p.mu.Unlock()

	if i >= len(p.reachable) {
		<-ctx.Done()
		return probe.Result{}, &probe.ExecError{Host: host, Err: ctx.Err()}
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return probe.Result{}, p.errs[i]
	}
	if p.reachable[i] {
		return probe.Result{Reachable: true, Output: "reply from " + host}, nil
	}
	return probe.Result{Reachable: false, Output: "100% loss"}, nil
}

func (p *scriptedProber) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callTimes)
}

func (p *scriptedProber) callTime(i int) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callTimes[i]
}

func newTestMonitor(t *testing.T, prober probe.Prober, historySize int) (*monitor.DeviceMonitor, *logbook.Aggregator) {
	t.Helper()
	journal := logbook.NewAggregator(file.NewFileService())
	m := monitor.NewDeviceMonitor(
		models.Device{Addr: "10.0.0.1", Name: "gateway"},
		prober,
		journal,
		testInterval,
		historySize,
		zerolog.Nop(),
	)
	return m, journal
}

// runUntilCalls starts the monitor, waits for at least n probe calls and
// stops it again.
func runUntilCalls(t *testing.T, m *monitor.DeviceMonitor, p *scriptedProber, n int) {
	t.Helper()
	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return p.calls() >= n },
		2*time.Second, time.Millisecond)
	require.NoError(t, m.Stop())
}

// TestDeviceMonitor_StartStopContract tests the double start/stop guards.
func TestDeviceMonitor_StartStopContract(t *testing.T) {
	p := &scriptedProber{reachable: []bool{true}}
	m, _ := newTestMonitor(t, p, 0)

	require.NoError(t, m.Start())
	err := m.Start()
	require.Error(t, err)
	assert.Equal(t, "device monitor is already running", err.Error())

	require.NoError(t, m.Stop())
	err = m.Stop()
	require.Error(t, err)
	assert.Equal(t, "device monitor is not running", err.Error())
}

// TestDeviceMonitor_ConcurrentStart tests that racing starts launch the
// loop exactly once.
func TestDeviceMonitor_ConcurrentStart(t *testing.T) {
	p := &scriptedProber{reachable: []bool{true}}
	m, _ := newTestMonitor(t, p, 0)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Start()
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	require.NoError(t, m.Stop())
}

// TestDeviceMonitor_BufferCapAndOrder tests the FIFO eviction of the
// availability buffer.
func TestDeviceMonitor_BufferCapAndOrder(t *testing.T) {
	// fail, then successes forever
	p := &scriptedProber{reachable: []bool{false, true, true, true, true, true}}
	m, _ := newTestMonitor(t, p, 4)

	runUntilCalls(t, m, p, 6)

	// The initial failure must have been evicted by the cap.
	assert.Equal(t, []int{1, 1, 1, 1}, m.Availability())
}

// TestDeviceMonitor_LossPercent tests the loss computation over scripted
// sample sequences.
func TestDeviceMonitor_LossPercent(t *testing.T) {
	t.Run("mixed", func(t *testing.T) {
		p := &scriptedProber{reachable: []bool{true, false, true, true}}
		m, _ := newTestMonitor(t, p, 4)
		runUntilCalls(t, m, p, 4)
		assert.InDelta(t, 25.0, m.LossPercent(), 0.001)
	})

	t.Run("all down", func(t *testing.T) {
		p := &scriptedProber{reachable: []bool{false, false, false, false}}
		m, _ := newTestMonitor(t, p, 4)
		runUntilCalls(t, m, p, 4)
		assert.InDelta(t, 100.0, m.LossPercent(), 0.001)
	})

	t.Run("empty buffer", func(t *testing.T) {
		p := &scriptedProber{reachable: []bool{true}}
		m, _ := newTestMonitor(t, p, 4)
		assert.Zero(t, m.LossPercent())
	})
}

// TestDeviceMonitor_DowntimeLifecycle tests that the sequence success,
// fail, fail, success yields exactly one completed interval spanning the
// 2nd to the 4th probe.
func TestDeviceMonitor_DowntimeLifecycle(t *testing.T) {
	p := &scriptedProber{reachable: []bool{true, false, false, true}}
	m, _ := newTestMonitor(t, p, 0)

	runUntilCalls(t, m, p, 4)

	downtimes := m.Downtimes()
	require.Len(t, downtimes, 1)
	assert.False(t, m.IsDown())
	assert.Nil(t, m.OpenDowntime())

	d := downtimes[0]
	assert.True(t, d.Start.Before(d.End))
	// Interval opens at the 2nd probe and closes at the 4th.
	assert.WithinDuration(t, p.callTime(1), d.Start, 100*time.Millisecond)
	assert.WithinDuration(t, p.callTime(3), d.End, 100*time.Millisecond)
}

// TestDeviceMonitor_OpenDowntime tests the open-interval marker while a
// device stays down.
func TestDeviceMonitor_OpenDowntime(t *testing.T) {
	p := &scriptedProber{reachable: []bool{true, false, false}}
	m, _ := newTestMonitor(t, p, 0)

	runUntilCalls(t, m, p, 3)

	assert.True(t, m.IsDown())
	require.NotNil(t, m.OpenDowntime())
	assert.Empty(t, m.Downtimes())
}

// TestDeviceMonitor_IntervalInvariants tests that intervals stay ordered
// and non-overlapping across repeated outages.
func TestDeviceMonitor_IntervalInvariants(t *testing.T) {
	p := &scriptedProber{reachable: []bool{false, true, false, true, false, true}}
	m, _ := newTestMonitor(t, p, 0)

	runUntilCalls(t, m, p, 6)

	downtimes := m.Downtimes()
	require.Len(t, downtimes, 3)
	for i, d := range downtimes {
		assert.True(t, d.Start.Before(d.End), "interval %d must close after it opens", i)
		if i > 0 {
			assert.False(t, d.Start.Before(downtimes[i-1].End),
				"interval %d must start after interval %d ends", i, i-1)
		}
	}
}

// TestDeviceMonitor_ProbeErrorRecordsNoSample tests that a failed probe
// execution is absorbed without recording a sample.
func TestDeviceMonitor_ProbeErrorRecordsNoSample(t *testing.T) {
	execErr := &probe.ExecError{Host: "10.0.0.1", Err: errors.New("launch failed")}
	p := &scriptedProber{
		reachable: []bool{true, true, true},
		errs:      []error{execErr},
	}
	m, journal := newTestMonitor(t, p, 0)

	runUntilCalls(t, m, p, 3)

	// First cycle failed to execute: no sample and no journal batch for it.
	assert.Equal(t, []int{1, 1}, m.Availability())
	assert.Equal(t, 6, journal.Len())
	assert.False(t, m.IsDown())
}

// TestDeviceMonitor_JournalBatch tests the three-line batch layout.
func TestDeviceMonitor_JournalBatch(t *testing.T) {
	p := &scriptedProber{reachable: []bool{false}}
	m, journal := newTestMonitor(t, p, 0)

	runUntilCalls(t, m, p, 1)

	snapshot := journal.Snapshot()
	require.GreaterOrEqual(t, len(snapshot), 3)

	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] $`, snapshot[0].Message)
	assert.Equal(t, "Exchange with gateway[10.0.0.1]\n", snapshot[1].Message)
	assert.Equal(t, "No reply received\n", snapshot[2].Message)
	assert.Equal(t, models.SeverityError, snapshot[2].Severity)
	assert.Equal(t, models.SeverityNormal, snapshot[1].Severity)
}

// TestDeviceMonitor_ResetKeepsDowntimeHistory tests that a reset clears the
// buffer and loss percentage but not the completed intervals.
func TestDeviceMonitor_ResetKeepsDowntimeHistory(t *testing.T) {
	p := &scriptedProber{reachable: []bool{true, false, true}}
	m, _ := newTestMonitor(t, p, 0)

	runUntilCalls(t, m, p, 3)
	require.Len(t, m.Downtimes(), 1)

	m.Reset()

	assert.Empty(t, m.Availability())
	assert.Zero(t, m.LossPercent())
	assert.Len(t, m.Downtimes(), 1)
}

// TestDeviceMonitor_Rename tests that renaming flows into subsequent
// journal batches.
func TestDeviceMonitor_Rename(t *testing.T) {
	p := &scriptedProber{reachable: []bool{true}}
	m, journal := newTestMonitor(t, p, 0)

	m.Rename("core-switch")
	assert.Equal(t, "core-switch", m.Name())

	runUntilCalls(t, m, p, 1)
	assert.Equal(t, "Exchange with core-switch[10.0.0.1]\n", journal.Snapshot()[1].Message)
}

// TestDeviceMonitor_NoEntriesAfterStop tests the cooperative stop contract:
// once Stop returns, no further batches appear.
func TestDeviceMonitor_NoEntriesAfterStop(t *testing.T) {
	p := &scriptedProber{reachable: []bool{true}}
	m, journal := newTestMonitor(t, p, 0)

	runUntilCalls(t, m, p, 2)

	count := journal.Len()
	time.Sleep(5 * testInterval)
	assert.Equal(t, count, journal.Len())
}
