package repository

import (
	"context"

	"gameboard/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByDevice(ctx context.Context, deviceID string, limit, offset int32) ([]*domain.AuditLog, error)
}
