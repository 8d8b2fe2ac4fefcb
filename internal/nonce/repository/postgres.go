package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gameboard/internal/nonce/domain"
)

const nonceColumns = "id, device_id, nonce_value, status, expires_at, used_at, created_at, deleted_at"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a nonce repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the nonce. The nonce must have ID and Value set; the unique
// index on nonce_value enforces global uniqueness.
func (r *PostgresRepository) Create(ctx context.Context, n *domain.Nonce) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO nonces (id, device_id, nonce_value, status, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.DeviceID, n.Value, string(n.Status), n.ExpiresAt, n.CreatedAt)
	return err
}

// GetByValue returns the non-deleted nonce with the given value, or nil if
// not found. Errors only on database failures.
func (r *PostgresRepository) GetByValue(ctx context.Context, value string) (*domain.Nonce, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+nonceColumns+" FROM nonces WHERE nonce_value = $1 AND deleted_at IS NULL", value)
	var n domain.Nonce
	var status string
	var used, deleted sql.NullTime
	err := row.Scan(&n.ID, &n.DeviceID, &n.Value, &status, &n.ExpiresAt, &used, &n.CreatedAt, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.Status = domain.NonceStatus(status)
	if used.Valid {
		n.UsedAt = &used.Time
	}
	if deleted.Valid {
		n.DeletedAt = &deleted.Time
	}
	return &n, nil
}

// MarkUsed flips the nonce to used. The status predicate makes the transition
// single-shot under concurrent consumers; the loser sees updated=false.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nonces SET status = $2, used_at = $3
		 WHERE id = $1 AND status = $4 AND deleted_at IS NULL`,
		id, string(domain.NonceStatusUsed), usedAt, string(domain.NonceStatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpiredPending removes pending nonces expired before cutoff and
// returns the count deleted. A zero-result run is not an error.
func (r *PostgresRepository) DeleteExpiredPending(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM nonces WHERE status = $1 AND expires_at < $2",
		string(domain.NonceStatusPending), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
