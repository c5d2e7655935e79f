package models

import "time"

// Severity tags a log entry for presentation purposes.
type Severity string

const (
	SeverityNormal Severity = "normal"
	SeverityError  Severity = "error"
)

// LogEntry is one immutable line of the shared monitoring journal.
// Message carries its own trailing separators; persistence concatenates
// messages verbatim.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	DeviceAddr string    `json:"device_addr"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
}
