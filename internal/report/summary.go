package report

import (
	"fmt"
	"strings"

	"github.com/netwatch/netmon/internal/monitor"
)

// NoIssuesLine is emitted when no device has recorded any downtime.
const NoIssuesLine = "no issues recorded"

// MonitorSource yields the monitors a summary is derived from.
type MonitorSource interface {
	Monitors() []*monitor.DeviceMonitor
}

// SummaryReporter derives a human-readable downtime report on demand. It
// only reads monitor snapshots and never mutates their state.
type SummaryReporter struct {
	source MonitorSource
}

// NewSummaryReporter builds a reporter over the given monitor source.
func NewSummaryReporter(source MonitorSource) *SummaryReporter {
	return &SummaryReporter{source: source}
}

// Summary renders one line per completed downtime interval and, for a
// device that is currently down, one extra line for the ongoing interval.
func (r *SummaryReporter) Summary() string {
	var lines []string

	for _, m := range r.source.Monitors() {
		name := m.Name()
		for _, d := range m.Downtimes() {
			lines = append(lines, fmt.Sprintf("from %s to %s %s: %s",
				d.Start.Format("15:04:05"),
				d.End.Format("15:04:05"),
				d.Start.Format("02.01"),
				name))
		}
		if open := m.OpenDowntime(); open != nil {
			lines = append(lines, fmt.Sprintf("from %s ongoing %s: %s",
				open.Start.Format("15:04:05"),
				open.Start.Format("02.01"),
				name))
		}
	}

	if len(lines) == 0 {
		return NoIssuesLine
	}
	return strings.Join(lines, "\n")
}
