package handler

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gameboard/internal/auth/service"
	"gameboard/internal/server/middleware"
	"gameboard/internal/telemetry"
)

// SessionService is the slice of the session manager the device handler needs.
type SessionService interface {
	StartSession(ctx context.Context, p service.StartSessionParams) (*service.StartSessionResult, error)
	RefreshAccessToken(ctx context.Context, token string) (*service.SessionTokens, error)
}

// DeviceHandler serves the device login and token lifecycle endpoints.
type DeviceHandler struct {
	sessions SessionService
	emitter  telemetry.EventEmitter // nil disables telemetry
}

// NewDeviceHandler returns a DeviceHandler using the given session service.
// emitter may be nil; telemetry is then skipped.
func NewDeviceHandler(sessions SessionService, emitter telemetry.EventEmitter) *DeviceHandler {
	return &DeviceHandler{sessions: sessions, emitter: emitter}
}

// RegisterRoutes mounts the public session endpoints on r.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/device/sessions", h.StartSession)
	r.Post("/device/sessions/refresh", h.Refresh)
}

// RegisterProtectedRoutes mounts endpoints that require a valid access token.
func (h *DeviceHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/device", h.Me)
}

type startSessionRequest struct {
	GameID   string `json:"game_id"`
	ClientID string `json:"client_id"`
	Platform string `json:"platform,omitempty"`
}

type startSessionResponse struct {
	DeviceID     string `json:"device_id"`
	Status       string `json:"status"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// StartSession handles POST /v1/device/sessions: anonymous device login.
func (h *DeviceHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.sessions.StartSession(r.Context(), service.StartSessionParams{
		GameID:    req.GameID,
		ClientID:  req.ClientID,
		Platform:  req.Platform,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			respondError(w, http.StatusNotFound, "game not found")
			return
		}
		log.Printf("handler: start session: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	telemetry.EmitAsync(h.emitter, r.Context(), telemetry.NewEvent(req.GameID, res.Device.ID, "session_started", map[string]string{
		"platform": req.Platform,
	}))

	respondJSON(w, http.StatusCreated, startSessionResponse{
		DeviceID:     res.Device.ID,
		Status:       string(res.Device.Status),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh handles POST /v1/device/sessions/refresh: token rotation.
func (h *DeviceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tokens, err := h.sessions.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDeviceToken):
			respondError(w, http.StatusUnauthorized, "invalid device token")
		case errors.Is(err, service.ErrConflict):
			respondError(w, http.StatusConflict, "concurrent refresh, retry")
		default:
			log.Printf("handler: refresh: %v", err)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

type deviceResponse struct {
	DeviceID string `json:"device_id"`
	GameID   string `json:"game_id"`
	Status   string `json:"status"`
	Platform string `json:"platform,omitempty"`
}

// Me handles GET /v1/device: echoes the authenticated device.
func (h *DeviceHandler) Me(w http.ResponseWriter, r *http.Request) {
	dev, ok := middleware.GetDevice(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid device token")
		return
	}
	respondJSON(w, http.StatusOK, deviceResponse{
		DeviceID: dev.ID,
		GameID:   dev.GameID,
		Status:   string(dev.Status),
		Platform: dev.Platform,
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
