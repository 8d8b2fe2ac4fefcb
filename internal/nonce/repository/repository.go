package repository

import (
	"context"
	"time"

	"gameboard/internal/nonce/domain"
)

// Repository defines persistence for nonces. Lookups exclude soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, n *domain.Nonce) error
	GetByValue(ctx context.Context, value string) (*domain.Nonce, error)
	// MarkUsed transitions the nonce from pending to used. Compare-and-swap on
	// status: returns false with no error when the nonce was already consumed
	// by a concurrent call.
	MarkUsed(ctx context.Context, id string, usedAt time.Time) (bool, error)
	// DeleteExpiredPending removes pending nonces whose expiry precedes cutoff
	// and returns the number deleted. Used nonces are never deleted here; they
	// are retained for audit.
	DeleteExpiredPending(ctx context.Context, cutoff time.Time) (int64, error)
}
