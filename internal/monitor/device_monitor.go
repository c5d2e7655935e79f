package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/netwatch/netmon/internal/logbook"
	"github.com/netwatch/netmon/internal/models"
	"github.com/netwatch/netmon/pkg/probe"
	"github.com/rs/zerolog"
)

const (
	// DefaultHistorySize is the number of availability samples kept per device.
	DefaultHistorySize = 720

	// DefaultProbeInterval is the pause between a probe finishing and the
	// next one starting.
	DefaultProbeInterval = 5 * time.Second
)

// DeviceMonitor owns one host's polling loop, its rolling availability
// history and its downtime-interval state machine. All mutable state is
// guarded by a single mutex; external readers only ever receive copies.
type DeviceMonitor struct {
	addr        string
	prober      probe.Prober
	journal     *logbook.Aggregator
	interval    time.Duration
	historySize int
	logger      zerolog.Logger

	mu           sync.Mutex
	name         string
	availability []int
	lossPercent  float64
	isDown       bool
	openStart    time.Time
	downtimes    []models.DowntimeInterval

	// lifeMu serializes Start/Stop/Running so a concurrent add during a
	// global start cannot double-launch the loop. The loop goroutine never
	// takes it, so Stop may hold it across the wait.
	lifeMu sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeviceMonitor initializes a monitor for device. Zero interval or
// history size fall back to the defaults.
func NewDeviceMonitor(device models.Device, prober probe.Prober, journal *logbook.Aggregator,
	interval time.Duration, historySize int, logger zerolog.Logger) *DeviceMonitor {

	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}

	return &DeviceMonitor{
		addr:        device.Addr,
		name:        device.Name,
		prober:      prober,
		journal:     journal,
		interval:    interval,
		historySize: historySize,
		logger:      logger.With().Str("device", device.Addr).Logger(),
	}
}

// Addr returns the monitored host address.
func (m *DeviceMonitor) Addr() string {
	return m.addr
}

// Name returns the current display name.
func (m *DeviceMonitor) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Rename updates the display name.
func (m *DeviceMonitor) Rename(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// Start launches the polling loop in a separate goroutine.
func (m *DeviceMonitor) Start() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.ctx != nil {
		m.logger.Warn().Msg("DeviceMonitor is already running")
		return errors.New("device monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runProbeLoop()
	}()

	m.logger.Info().Msg("DeviceMonitor started successfully")
	return nil
}

// Stop requests a cooperative stop and waits for the loop to exit. At most
// one in-flight probe may still complete after Stop is called.
func (m *DeviceMonitor) Stop() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.ctx == nil {
		m.logger.Warn().Msg("DeviceMonitor is not running")
		return errors.New("device monitor is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	m.logger.Info().Msg("DeviceMonitor stopped successfully")
	return nil
}

// Running reports whether the polling loop is active.
func (m *DeviceMonitor) Running() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.ctx != nil
}

// runProbeLoop probes the host until stopped. The cycle period is probe
// latency plus the fixed interval, not a fixed-rate tick: the next probe
// starts interval after the previous one finished.
func (m *DeviceMonitor) runProbeLoop() {
	for {
		m.probeOnce()

		select {
		case <-time.After(m.interval):
		case <-m.ctx.Done():
			m.logger.Info().Msg("DeviceMonitor stopping gracefully")
			return
		}
	}
}

// probeOnce runs a single probe cycle: sample, downtime transitions, loss
// recomputation and the journal batch. A probe execution failure is logged
// and the cycle records nothing, so one bad cycle never halts the loop.
func (m *DeviceMonitor) probeOnce() {
	result, err := m.prober.Probe(m.ctx, m.addr)
	now := time.Now()
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Error().Err(err).Msg("Failed to execute probe")
		return
	}

	name := m.recordSample(result.Reachable, now)

	reply := "Reply received\n"
	severity := models.SeverityNormal
	if !result.Reachable {
		reply = "No reply received\n"
		severity = models.SeverityError
	}

	m.journal.Append(
		models.LogEntry{
			Timestamp:  now,
			DeviceAddr: m.addr,
			Message:    fmt.Sprintf("[%s] ", now.Format("15:04:05")),
			Severity:   models.SeverityNormal,
		},
		models.LogEntry{
			Timestamp:  now,
			DeviceAddr: m.addr,
			Message:    fmt.Sprintf("Exchange with %s[%s]\n", name, m.addr),
			Severity:   models.SeverityNormal,
		},
		models.LogEntry{
			Timestamp:  now,
			DeviceAddr: m.addr,
			Message:    reply,
			Severity:   severity,
		},
	)
}

// recordSample appends the sample, runs the downtime state machine and
// recomputes the loss percentage. Returns the display name read under the
// same lock so the journal batch is consistent with the sample.
func (m *DeviceMonitor) recordSample(reachable bool, now time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sample := 0
	if reachable {
		sample = 1
	}

	m.availability = append(m.availability, sample)
	if len(m.availability) > m.historySize {
		m.availability = m.availability[1:]
	}

	switch {
	case !reachable && !m.isDown:
		m.isDown = true
		m.openStart = now
	case reachable && m.isDown:
		m.isDown = false
		m.downtimes = append(m.downtimes, models.DowntimeInterval{
			Start: m.openStart,
			End:   now,
		})
		m.openStart = time.Time{}
	}

	m.lossPercent = lossPercent(m.availability)
	return m.name
}

// lossPercent computes the unreachable fraction of the buffer as a
// percentage rounded to two decimals. An empty buffer reports 0.
func lossPercent(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range samples {
		sum += s
	}
	pct := (1 - float64(sum)/float64(len(samples))) * 100
	return math.Round(pct*100) / 100
}

// Availability returns a copy of the rolling sample history, oldest first.
func (m *DeviceMonitor) Availability() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.availability))
	copy(out, m.availability)
	return out
}

// LossPercent returns the loss percentage over the current buffer.
func (m *DeviceMonitor) LossPercent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lossPercent
}

// IsDown reports whether the device is currently inside an open downtime.
func (m *DeviceMonitor) IsDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDown
}

// Downtimes returns a copy of the completed downtime intervals, ordered by
// start time.
func (m *DeviceMonitor) Downtimes() []models.DowntimeInterval {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DowntimeInterval, len(m.downtimes))
	copy(out, m.downtimes)
	return out
}

// OpenDowntime returns the currently open interval, or nil when the device
// is up.
func (m *DeviceMonitor) OpenDowntime() *models.DowntimeInterval {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isDown {
		return nil
	}
	return &models.DowntimeInterval{Start: m.openStart}
}

// Status builds the read-only consumer view of this device.
func (m *DeviceMonitor) Status(sessionID string, at time.Time) models.StatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	update := models.StatusUpdate{
		Addr:        m.addr,
		Name:        m.name,
		Reachable:   !m.isDown,
		LossPercent: m.lossPercent,
		Samples:     len(m.availability),
		SessionID:   sessionID,
		At:          at,
	}
	if m.isDown {
		since := m.openStart
		update.DownSince = &since
	}
	return update
}

// Reset clears the availability buffer and the derived loss percentage.
// Completed downtime history survives a reset; it only disappears when the
// device itself is removed.
func (m *DeviceMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = nil
	m.lossPercent = 0
}
