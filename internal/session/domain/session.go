package domain

import "time"

// DeviceSession represents one login's token material. Hashes, version, and
// expiries are mutated in place on rotation; the row is never replaced.
type DeviceSession struct {
	ID              string
	DeviceID        string
	AccessTokenHash string
	// The Prev slots hold the hashes superseded by the most recent rotation.
	// The superseded access token stays valid until it expires or the next
	// rotation pushes it out; the superseded refresh token stays resolvable so
	// replaying it fails on version mismatch (the theft signal) rather than
	// vanishing as not-found.
	PrevAccessTokenHash  string
	PrevRefreshTokenHash string
	RefreshTokenHash     string
	TokenVersion        int // starts at 1, incremented on every rotation
	ExpiresAt           time.Time
	RefreshExpiresAt    time.Time
	IPAddress           string
	UserAgent           string
	RevokedAt           *time.Time // nil when not revoked
	CreatedAt           time.Time
	DeletedAt           *time.Time
}
