package repository

import (
	"context"
	"time"

	"gameboard/internal/session/domain"
)

// Repository defines persistence for device sessions. Lookups exclude
// soft-deleted rows; no business validation lives here.
type Repository interface {
	Create(ctx context.Context, s *domain.DeviceSession) error
	GetByAccessHash(ctx context.Context, hash string) (*domain.DeviceSession, error)
	GetByRefreshHash(ctx context.Context, hash string) (*domain.DeviceSession, error)
	// UpdateTokens swaps in new token hashes and expiries, advancing
	// token_version from newVersion-1 to newVersion. It is a compare-and-swap:
	// returns false with no error when the stored version no longer matches
	// (a concurrent rotation won).
	UpdateTokens(ctx context.Context, id string, accessHash, refreshHash string, newVersion int, expiresAt, refreshExpiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}
