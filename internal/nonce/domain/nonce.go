package domain

import "time"

// NonceStatus is the lifecycle status of a nonce: pending until consumed,
// used exactly once after.
type NonceStatus string

const (
	NonceStatusPending NonceStatus = "pending"
	NonceStatusUsed    NonceStatus = "used"
)

// Nonce is a single-use random value bound to a device, proving freshness of
// a handshake step independent of the session/token system.
type Nonce struct {
	ID        string
	DeviceID  string
	Value     string // globally unique, cryptographically random
	Status    NonceStatus
	ExpiresAt time.Time
	UsedAt    *time.Time // nil until consumed
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Expired reports whether the nonce's expiry has passed at the given instant.
// A pending nonce past expiry is invalid even though not yet deleted.
func (n *Nonce) Expired(now time.Time) bool {
	return now.After(n.ExpiresAt)
}
