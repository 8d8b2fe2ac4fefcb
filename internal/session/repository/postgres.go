package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gameboard/internal/session/domain"
)

const sessionColumns = "id, device_id, access_token_hash, prev_access_token_hash, refresh_token_hash, prev_refresh_token_hash, token_version, expires_at, refresh_expires_at, ip_address, user_agent, revoked_at, created_at, deleted_at"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.DeviceSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_sessions
		 (id, device_id, access_token_hash, refresh_token_hash, token_version, expires_at, refresh_expires_at, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.DeviceID, s.AccessTokenHash, s.RefreshTokenHash, s.TokenVersion,
		s.ExpiresAt, s.RefreshExpiresAt,
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
		sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		s.CreatedAt)
	return err
}

// GetByAccessHash returns the non-deleted session with the given access-token
// hash, or nil if not found. Errors only on database failures.
func (r *PostgresRepository) GetByAccessHash(ctx context.Context, hash string) (*domain.DeviceSession, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM device_sessions WHERE (access_token_hash = $1 OR prev_access_token_hash = $1) AND deleted_at IS NULL", hash)
	return scanSession(row)
}

// GetByRefreshHash returns the non-deleted session with the given
// refresh-token hash, or nil if not found.
func (r *PostgresRepository) GetByRefreshHash(ctx context.Context, hash string) (*domain.DeviceSession, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM device_sessions WHERE (refresh_token_hash = $1 OR prev_refresh_token_hash = $1) AND deleted_at IS NULL", hash)
	return scanSession(row)
}

// UpdateTokens rotates the session's tokens in place. The WHERE clause pins
// token_version to newVersion-1 so two concurrent rotations cannot both apply;
// the loser sees updated=false.
func (r *PostgresRepository) UpdateTokens(ctx context.Context, id string, accessHash, refreshHash string, newVersion int, expiresAt, refreshExpiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_sessions
		 SET prev_access_token_hash = access_token_hash, access_token_hash = $2,
		     prev_refresh_token_hash = refresh_token_hash, refresh_token_hash = $3,
		     token_version = $4, expires_at = $5, refresh_expires_at = $6
		 WHERE id = $1 AND token_version = $4 - 1 AND deleted_at IS NULL`,
		id, accessHash, refreshHash, newVersion, expiresAt, refreshExpiresAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Revoke marks the session with the given id as revoked at the given time.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_sessions SET revoked_at = $2 WHERE id = $1 AND deleted_at IS NULL", id, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.DeviceSession, error) {
	var s domain.DeviceSession
	var prevAccess, prevRefresh, ip, ua sql.NullString
	var revoked, deleted sql.NullTime
	err := row.Scan(&s.ID, &s.DeviceID, &s.AccessTokenHash, &prevAccess, &s.RefreshTokenHash, &prevRefresh, &s.TokenVersion,
		&s.ExpiresAt, &s.RefreshExpiresAt, &ip, &ua, &revoked, &s.CreatedAt, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if prevAccess.Valid {
		s.PrevAccessTokenHash = prevAccess.String
	}
	if prevRefresh.Valid {
		s.PrevRefreshTokenHash = prevRefresh.String
	}
	if ip.Valid {
		s.IPAddress = ip.String
	}
	if ua.Valid {
		s.UserAgent = ua.String
	}
	s.RevokedAt = nullTimeToPtr(revoked)
	s.DeletedAt = nullTimeToPtr(deleted)
	return &s, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
