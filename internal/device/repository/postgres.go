package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gameboard/internal/device/domain"
)

const uniqueViolation = "23505"

const deviceColumns = "id, game_id, account_id, client_id, status, platform, metadata, first_seen_at, last_seen_at, deleted_at"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the non-deleted device for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = $1 AND deleted_at IS NULL", id)
	return scanDevice(row)
}

// GetByGameAndClientID returns the non-deleted device for (gameID, clientID),
// or nil if not found.
func (r *PostgresRepository) GetByGameAndClientID(ctx context.Context, gameID, clientID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE game_id = $1 AND client_id = $2 AND deleted_at IS NULL",
		gameID, clientID)
	return scanDevice(row)
}

// GetOrCreate returns the device for (d.GameID, d.ClientID), inserting d when
// no row exists. The partial unique index on (game_id, client_id) enforces the
// invariant; a concurrent insert losing the race re-reads the winner's row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, d *domain.Device) (*domain.Device, error) {
	existing, err := r.GetByGameAndClientID(ctx, d.GameID, d.ClientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if err := r.create(ctx, d); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return r.GetByGameAndClientID(ctx, d.GameID, d.ClientID)
		}
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepository) create(ctx context.Context, d *domain.Device) error {
	meta, err := metadataToJSON(d.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (id, game_id, account_id, client_id, status, platform, metadata, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.GameID, d.AccountID, d.ClientID, string(d.Status),
		sql.NullString{String: d.Platform, Valid: d.Platform != ""},
		meta, d.FirstSeenAt, timeToNullTime(d.LastSeenAt))
	return err
}

// UpdateLastSeen sets the device's last-seen timestamp for the given id.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE devices SET last_seen_at = $2 WHERE id = $1 AND deleted_at IS NULL", id, at)
	return err
}

// UpdateStatus sets the device's status (ban, suspend, activate) for the given id.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE devices SET status = $2 WHERE id = $1 AND deleted_at IS NULL", id, string(status))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var d domain.Device
	var status string
	var platform sql.NullString
	var meta []byte
	var lastSeen, deleted sql.NullTime
	err := row.Scan(&d.ID, &d.GameID, &d.AccountID, &d.ClientID, &status, &platform,
		&meta, &d.FirstSeenAt, &lastSeen, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d.Status = domain.DeviceStatus(status)
	if platform.Valid {
		d.Platform = platform.String
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, err
		}
	}
	d.LastSeenAt = nullTimeToPtr(lastSeen)
	d.DeletedAt = nullTimeToPtr(deleted)
	return &d, nil
}

func metadataToJSON(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
