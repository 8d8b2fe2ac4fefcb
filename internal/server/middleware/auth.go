// Package middleware holds the HTTP request gate: Bearer token validation,
// rate limiting, and context carriers for the authenticated device.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gameboard/internal/auth/service"
	"gameboard/internal/device/domain"
)

const bearerPrefix = "bearer "

// TokenValidator authenticates a device access token.
type TokenValidator interface {
	ValidateDeviceToken(ctx context.Context, token string) (*domain.Device, error)
}

// RequireDeviceToken validates the Bearer access token on every request and
// puts the authenticated device in the request context. Every validation
// failure gets the same 401 body; callers cannot distinguish why.
func RequireDeviceToken(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			dev, err := validator.ValidateDeviceToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrInvalidDeviceToken) {
					writeJSONError(w, http.StatusUnauthorized, "invalid device token")
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), dev)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
