package repository

import (
	"context"
	"time"

	"gameboard/internal/device/domain"
)

// Repository defines persistence for devices. Lookups exclude soft-deleted rows.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	GetByGameAndClientID(ctx context.Context, gameID, clientID string) (*domain.Device, error)
	// GetOrCreate returns the device for (gameID, clientID), creating it when
	// absent. Safe under concurrent first-time creation: a duplicate-key race
	// resolves to the existing row rather than an error.
	GetOrCreate(ctx context.Context, d *domain.Device) (*domain.Device, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus) error
}
