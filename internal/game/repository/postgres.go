package repository

import (
	"context"
	"database/sql"
	"errors"

	"gameboard/internal/game/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a game repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the non-deleted game for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Game, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, account_id, name, created_at, deleted_at FROM games WHERE id = $1 AND deleted_at IS NULL", id)
	var g domain.Game
	var deleted sql.NullTime
	err := row.Scan(&g.ID, &g.AccountID, &g.Name, &g.CreatedAt, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if deleted.Valid {
		g.DeletedAt = &deleted.Time
	}
	return &g, nil
}

// Create persists the game. The game must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, g *domain.Game) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO games (id, account_id, name, created_at) VALUES ($1, $2, $3, $4)",
		g.ID, g.AccountID, g.Name, g.CreatedAt)
	return err
}
