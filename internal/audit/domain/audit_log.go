package domain

import "time"

// AuditLog is one recorded security-relevant event (session start, token
// refresh, refresh reuse, nonce rejection, device status change).
type AuditLog struct {
	ID        string
	GameID    string
	DeviceID  string
	Action    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
