package middleware

import (
	"context"

	"gameboard/internal/device/domain"
)

type contextKey struct{ name string }

var deviceKey = contextKey{"device"}

// WithDevice returns a context carrying the authenticated device.
// Handlers read it back via GetDevice.
func WithDevice(ctx context.Context, d *domain.Device) context.Context {
	return context.WithValue(ctx, deviceKey, d)
}

// GetDevice returns the authenticated device from context and true if set;
// otherwise nil, false.
func GetDevice(ctx context.Context) (*domain.Device, bool) {
	d, ok := ctx.Value(deviceKey).(*domain.Device)
	return d, ok
}
