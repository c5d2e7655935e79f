package models

import (
	"errors"
	"time"
)

// Device identifies one monitored host. The address is the unique key;
// the display name is mutable and only used for presentation.
type Device struct {
	Addr string `json:"addr"`
	Name string `json:"name"`
}

// DowntimeInterval is a maximal span during which a device stayed unreachable.
// A zero End marks an interval that is still open.
type DowntimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitempty"`
}

// Open reports whether the interval has not been closed yet.
func (d DowntimeInterval) Open() bool {
	return d.End.IsZero()
}

// StatusUpdate is the read-only per-device view handed to external consumers.
type StatusUpdate struct {
	Addr        string     `json:"addr"`
	Name        string     `json:"name"`
	Reachable   bool       `json:"reachable"`
	LossPercent float64    `json:"loss_percent"`
	Samples     int        `json:"samples"`
	DownSince   *time.Time `json:"down_since,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	At          time.Time  `json:"at"`
}

var (
	// ErrDuplicateDevice is returned when a device address is already registered.
	ErrDuplicateDevice = errors.New("device address is already registered")

	// ErrUnknownDevice is returned when an operation targets an address
	// that is not registered.
	ErrUnknownDevice = errors.New("device address is not registered")
)
