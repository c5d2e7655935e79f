package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netwatch/netmon/internal/logbook"
	"github.com/netwatch/netmon/internal/models"
	"github.com/netwatch/netmon/internal/monitor"
	"github.com/netwatch/netmon/internal/utils"
	"github.com/netwatch/netmon/pkg/probe"
	"github.com/netwatch/netmon/pkg/registry"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// DefaultAutoSaveInterval is how often the auto-save job wakes up.
const DefaultAutoSaveInterval = 86400 * time.Second

// Supervisor owns the collection of device monitors, the global
// start/stop/reset lifecycle, elapsed-time tracking and the periodic
// auto-save job.
type Supervisor struct {
	monitors       cmap.ConcurrentMap[string, *monitor.DeviceMonitor]
	prober         probe.Prober
	journal        *logbook.Aggregator
	deviceRegistry registry.DeviceRegistry
	logger         zerolog.Logger

	probeInterval    time.Duration
	historySize      int
	autoSaveInterval time.Duration
	logDir           string

	mu         sync.Mutex
	running    bool
	startTime  time.Time
	stopTime   time.Time
	lastSave   time.Time
	sessionID  string
	autoCancel context.CancelFunc
	autoWg     sync.WaitGroup
}

// NewSupervisor wires a supervisor over the shared journal, the probe
// capability and the persisted device registry.
func NewSupervisor(prober probe.Prober, journal *logbook.Aggregator, deviceRegistry registry.DeviceRegistry,
	probeInterval time.Duration, historySize int, autoSaveInterval time.Duration, logDir string,
	logger zerolog.Logger) *Supervisor {

	if autoSaveInterval <= 0 {
		autoSaveInterval = DefaultAutoSaveInterval
	}

	return &Supervisor{
		monitors:         cmap.New[*monitor.DeviceMonitor](),
		prober:           prober,
		journal:          journal,
		deviceRegistry:   deviceRegistry,
		probeInterval:    probeInterval,
		historySize:      historySize,
		autoSaveInterval: autoSaveInterval,
		logDir:           logDir,
		logger:           logger,
	}
}

// LoadDevices seeds the monitor collection from the persisted registry.
// A load failure is absorbed: the supervisor starts with no devices.
func (s *Supervisor) LoadDevices() {
	devices, err := s.deviceRegistry.Load()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load device registry, starting empty")
		return
	}

	for addr, name := range devices {
		m := s.newMonitor(addr, utils.NormalizeName(name))
		s.monitors.SetIfAbsent(addr, m)
	}
	s.logger.Info().Int("devices", s.monitors.Count()).Msg("Loaded device registry")
}

func (s *Supervisor) newMonitor(addr, name string) *monitor.DeviceMonitor {
	return monitor.NewDeviceMonitor(
		models.Device{Addr: addr, Name: name},
		s.prober,
		s.journal,
		s.probeInterval,
		s.historySize,
		s.logger,
	)
}

// AddDevice registers a new device. It fails with ErrDuplicateDevice before
// any mutation when the address is already registered. The new monitor is
// started immediately when global monitoring is active. The device stays
// registered even if persisting the registry fails. Display names are
// normalized at this boundary before they enter the system.
func (s *Supervisor) AddDevice(addr, name string) error {
	m := s.newMonitor(addr, utils.NormalizeName(name))
	if !s.monitors.SetIfAbsent(addr, m) {
		return fmt.Errorf("%s: %w", addr, models.ErrDuplicateDevice)
	}

	s.logger.Info().Str("device", addr).Str("name", name).Msg("Device added")

	if s.Running() {
		if err := m.Start(); err != nil {
			s.logger.Error().Err(err).Str("device", addr).Msg("Failed to start monitor")
		}
	}

	return s.saveRegistry()
}

// RenameDevice updates a device's display name and persists the registry.
func (s *Supervisor) RenameDevice(addr, name string) error {
	m, ok := s.monitors.Get(addr)
	if !ok {
		return fmt.Errorf("%s: %w", addr, models.ErrUnknownDevice)
	}
	m.Rename(utils.NormalizeName(name))
	return s.saveRegistry()
}

// RemoveDevices stops the monitors for the given addresses cooperatively,
// waits for their loops to exit and removes them. After it returns, no
// further samples or journal entries are produced for the removed devices.
// Unknown addresses are reported but do not affect the others.
func (s *Supervisor) RemoveDevices(addrs []string) error {
	var unknown []string
	for _, addr := range addrs {
		m, ok := s.monitors.Pop(addr)
		if !ok {
			unknown = append(unknown, addr)
			continue
		}
		if m.Running() {
			if err := m.Stop(); err != nil {
				s.logger.Error().Err(err).Str("device", addr).Msg("Failed to stop monitor")
			}
		}
		s.logger.Info().Str("device", addr).Msg("Device removed")
	}

	if err := s.saveRegistry(); err != nil {
		return err
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%v: %w", unknown, models.ErrUnknownDevice)
	}
	return nil
}

// saveRegistry persists the current address to name mapping.
func (s *Supervisor) saveRegistry() error {
	devices := make(map[string]string, s.monitors.Count())
	for item := range s.monitors.IterBuffered() {
		devices[item.Key] = item.Val.Name()
	}
	if err := s.deviceRegistry.Save(devices); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save device registry")
		return err
	}
	return nil
}

// StartAll begins global monitoring: it marks the elapsed-time origin,
// mints a session id, schedules auto-save and starts every monitor.
// Calling it while already running only starts monitors that are stopped.
func (s *Supervisor) StartAll() {
	s.mu.Lock()
	if !s.running {
		s.running = true
		s.startTime = time.Now()
		s.stopTime = time.Time{}
		s.lastSave = s.startTime
		s.sessionID = uuid.New().String()

		ctx, cancel := context.WithCancel(context.Background())
		s.autoCancel = cancel
		s.autoWg.Add(1)
		go func() {
			defer s.autoWg.Done()
			s.runAutoSaveLoop(ctx)
		}()

		s.logger.Info().Str("session_id", s.sessionID).Msg("Monitoring started")
	}
	s.mu.Unlock()

	for item := range s.monitors.IterBuffered() {
		if !item.Val.Running() {
			if err := item.Val.Start(); err != nil {
				s.logger.Error().Err(err).Str("device", item.Key).Msg("Failed to start monitor")
			}
		}
	}
}

// StopAll stops global monitoring, cancels the pending auto-save and stops
// every monitor cooperatively.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	if s.running {
		s.running = false
		s.stopTime = time.Now()
		s.autoCancel()
		s.autoCancel = nil
		s.logger.Info().Msg("Monitoring stopped")
	}
	s.mu.Unlock()

	s.autoWg.Wait()

	for item := range s.monitors.IterBuffered() {
		if item.Val.Running() {
			if err := item.Val.Stop(); err != nil {
				s.logger.Error().Err(err).Str("device", item.Key).Msg("Failed to stop monitor")
			}
		}
	}
}

// ResetAll stops monitoring, clears every monitor's availability buffer and
// resets the global elapsed timer. Completed downtime history survives.
func (s *Supervisor) ResetAll() {
	s.StopAll()

	for item := range s.monitors.IterBuffered() {
		item.Val.Reset()
	}

	s.mu.Lock()
	s.startTime = time.Time{}
	s.stopTime = time.Time{}
	s.sessionID = ""
	s.mu.Unlock()

	s.logger.Info().Msg("Monitoring state reset")
}

// Running reports whether global monitoring is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SessionID returns the id of the current monitoring session, empty when
// monitoring has never been started since the last reset.
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Elapsed returns the time monitoring has been running. While stopped the
// value stays frozen at the moment of the stop; a reset zeroes it.
func (s *Supervisor) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	if !s.stopTime.IsZero() {
		return s.stopTime.Sub(s.startTime)
	}
	return time.Since(s.startTime)
}

// ElapsedString renders the elapsed time as d:hh:mm:ss.
func (s *Supervisor) ElapsedString() string {
	elapsed := s.Elapsed()
	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d:%02d", days, hours, minutes, seconds)
}

// runAutoSaveLoop fires every autoSaveInterval and reschedules relative to
// its own completion, so the actual period drifts by the save's runtime.
func (s *Supervisor) runAutoSaveLoop(ctx context.Context) {
	for {
		select {
		case <-time.After(s.autoSaveInterval):
			s.autoSaveIfDue()
		case <-ctx.Done():
			s.logger.Debug().Msg("Auto-save job cancelled")
			return
		}
	}
}

// autoSaveIfDue saves the journal when monitoring is active and the time
// since the last save has reached the interval.
func (s *Supervisor) autoSaveIfDue() {
	s.mu.Lock()
	due := s.running && time.Since(s.lastSave) >= s.autoSaveInterval
	s.mu.Unlock()

	if !due {
		return
	}
	if _, err := s.SaveLogNow(); err != nil {
		s.logger.Error().Err(err).Msg("Auto-save failed")
	}
}

// SaveLogNow persists the journal to a timestamped file and resets the
// auto-save clock. It returns the path written.
func (s *Supervisor) SaveLogNow() (string, error) {
	path, err := s.journal.SaveTimestamped(s.logDir)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.lastSave = time.Now()
	s.mu.Unlock()

	s.logger.Info().Str("path", path).Msg("Journal saved")
	return path, nil
}

// Monitors returns the owned monitors sorted by address.
func (s *Supervisor) Monitors() []*monitor.DeviceMonitor {
	out := make([]*monitor.DeviceMonitor, 0, s.monitors.Count())
	for item := range s.monitors.IterBuffered() {
		out = append(out, item.Val)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr() < out[j].Addr() })
	return out
}

// Devices returns a snapshot of the registered devices sorted by address.
func (s *Supervisor) Devices() []models.Device {
	monitors := s.Monitors()
	out := make([]models.Device, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, models.Device{Addr: m.Addr(), Name: m.Name()})
	}
	return out
}

// Statuses builds the read-only consumer view of every device.
func (s *Supervisor) Statuses() []models.StatusUpdate {
	sessionID := s.SessionID()
	now := time.Now()

	monitors := s.Monitors()
	out := make([]models.StatusUpdate, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, m.Status(sessionID, now))
	}
	return out
}
