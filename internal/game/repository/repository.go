package repository

import (
	"context"

	"gameboard/internal/game/domain"
)

// Repository defines the game lookups this service needs. Lookups exclude
// soft-deleted rows.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Game, error)
	Create(ctx context.Context, g *domain.Game) error
}
