package repository

import (
	"context"
	"database/sql"

	"gameboard/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, game_id, device_id, action, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.GameID,
		sql.NullString{String: a.DeviceID, Valid: a.DeviceID != ""},
		a.Action, a.IP,
		sql.NullString{String: a.Metadata, Valid: a.Metadata != ""},
		a.CreatedAt)
	return err
}

// ListByDevice returns audit logs for the given device, newest first,
// paginated by limit and offset. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, device_id, action, ip, metadata, created_at
		 FROM audit_logs WHERE device_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		deviceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		var deviceID, meta sql.NullString
		if err := rows.Scan(&a.ID, &a.GameID, &deviceID, &a.Action, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		if deviceID.Valid {
			a.DeviceID = deviceID.String
		}
		if meta.Valid {
			a.Metadata = meta.String
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
