// Package nonce issues and consumes single-use, time-bound nonces used by
// device handshake flows for replay protection, independent of sessions.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"gameboard/internal/nonce/domain"
	"gameboard/internal/nonce/repository"
)

// Nonce failures are distinguishable, unlike token validation: nonces are an
// internal handshake primitive, not a bearer credential probed by attackers.
var (
	ErrNotFound    = errors.New("nonce not found")
	ErrWrongDevice = errors.New("nonce belongs to a different device")
	ErrAlreadyUsed = errors.New("nonce already used")
	ErrExpired     = errors.New("nonce expired")
)

// DefaultTTL is the nonce lifetime when the caller does not specify one.
const DefaultTTL = 60 * time.Second

const valueBytes = 32

// Manager orchestrates nonce issuance and one-time consumption.
type Manager struct {
	repo repository.Repository
	now  func() time.Time
}

// NewManager returns a Manager backed by repo. now may be nil; then time.Now
// (UTC) is used. The clock is injectable for tests.
func NewManager(repo repository.Repository, now func() time.Time) *Manager {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{repo: repo, now: now}
}

// Generate creates a pending nonce bound to deviceID with the given ttl
// (DefaultTTL when ttl <= 0). Returns the nonce value and its expiry. The
// value is 32 bytes of crypto/rand, hex-encoded; never sequential.
func (m *Manager) Generate(ctx context.Context, deviceID string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	b := make([]byte, valueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	now := m.now()
	n := &domain.Nonce{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Value:     hex.EncodeToString(b),
		Status:    domain.NonceStatusPending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := m.repo.Create(ctx, n); err != nil {
		return "", time.Time{}, err
	}
	return n.Value, n.ExpiresAt, nil
}

// ValidateAndConsume checks the nonce in order (existence, device binding,
// single-use, expiry) and marks it used. Each failure returns its own
// sentinel. A concurrent double-consume resolves to ErrAlreadyUsed for the
// loser: MarkUsed is a compare-and-swap on status.
func (m *Manager) ValidateAndConsume(ctx context.Context, value, deviceID string) error {
	n, err := m.repo.GetByValue(ctx, value)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotFound
	}
	if n.DeviceID != deviceID {
		return ErrWrongDevice
	}
	if n.Status == domain.NonceStatusUsed {
		return ErrAlreadyUsed
	}
	if n.Expired(m.now()) {
		return ErrExpired
	}
	updated, err := m.repo.MarkUsed(ctx, n.ID, m.now())
	if err != nil {
		return err
	}
	if !updated {
		return ErrAlreadyUsed
	}
	return nil
}

// CleanupExpired deletes pending nonces that expired more than olderThan ago
// and returns the count deleted. Used nonces are retained for audit.
func (m *Manager) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := m.now().Add(-olderThan)
	return m.repo.DeleteExpiredPending(ctx, cutoff)
}
