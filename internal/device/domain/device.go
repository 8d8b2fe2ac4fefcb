package domain

import "time"

// DeviceStatus is the lifecycle status of a device. Closed set: adding a
// status is a compile-time decision, not a string comparison.
type DeviceStatus string

const (
	DeviceStatusActive    DeviceStatus = "active"
	DeviceStatusBanned    DeviceStatus = "banned"
	DeviceStatusSuspended DeviceStatus = "suspended"
)

// Valid reports whether s is one of the known device statuses.
func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceStatusActive, DeviceStatusBanned, DeviceStatusSuspended:
		return true
	}
	return false
}

// Device represents one client install within one game. (GameID, ClientID) is
// unique among non-deleted devices; the same client identity may exist under
// different games.
type Device struct {
	ID          string
	GameID      string
	AccountID   string
	ClientID    string // opaque identity string provided by the client
	Status      DeviceStatus
	Platform    string
	Metadata    map[string]string
	FirstSeenAt time.Time
	LastSeenAt  *time.Time
	DeletedAt   *time.Time // nil when not soft-deleted
}

// IsActive reports whether the device may authenticate: status active and not
// soft-deleted. Banned and suspended devices both fail.
func (d *Device) IsActive() bool {
	return d != nil && d.Status == DeviceStatusActive && d.DeletedAt == nil
}
