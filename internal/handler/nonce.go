package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gameboard/internal/audit"
	"gameboard/internal/nonce"
	"gameboard/internal/server/middleware"
)

// NonceService is the slice of the nonce manager the handler needs.
type NonceService interface {
	Generate(ctx context.Context, deviceID string, ttl time.Duration) (string, time.Time, error)
	ValidateAndConsume(ctx context.Context, value, deviceID string) error
}

// NonceHandler serves nonce issuance and consumption for authenticated devices.
type NonceHandler struct {
	nonces   NonceService
	auditLog audit.AuditLogger
	ttl      time.Duration
}

// NewNonceHandler returns a NonceHandler issuing nonces with the given ttl.
// auditLog may be nil.
func NewNonceHandler(nonces NonceService, auditLog audit.AuditLogger, ttl time.Duration) *NonceHandler {
	return &NonceHandler{nonces: nonces, auditLog: auditLog, ttl: ttl}
}

// RegisterRoutes mounts the nonce endpoints on r. Both require a valid
// access token; the nonce binds to the authenticated device.
func (h *NonceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/device/nonces", h.Issue)
	r.Post("/device/nonces/consume", h.Consume)
}

type issueNonceResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresAt string `json:"expires_at"`
}

// Issue handles POST /v1/device/nonces: creates a pending nonce bound to the
// authenticated device.
func (h *NonceHandler) Issue(w http.ResponseWriter, r *http.Request) {
	dev, ok := middleware.GetDevice(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid device token")
		return
	}

	value, expiresAt, err := h.nonces.Generate(r.Context(), dev.ID, h.ttl)
	if err != nil {
		log.Printf("handler: issue nonce: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, issueNonceResponse{
		Nonce:     value,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

type consumeNonceRequest struct {
	Nonce string `json:"nonce"`
}

// Consume handles POST /v1/device/nonces/consume: one-time nonce redemption.
// Unlike token validation, nonce failures are distinguishable by status code.
func (h *NonceHandler) Consume(w http.ResponseWriter, r *http.Request) {
	dev, ok := middleware.GetDevice(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid device token")
		return
	}

	var req consumeNonceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.nonces.ValidateAndConsume(r.Context(), req.Nonce, dev.ID)
	if err != nil {
		h.logRejection(r, dev.GameID, dev.ID, err)
		switch {
		case errors.Is(err, nonce.ErrNotFound):
			respondError(w, http.StatusNotFound, "nonce not found")
		case errors.Is(err, nonce.ErrWrongDevice):
			respondError(w, http.StatusForbidden, "nonce belongs to a different device")
		case errors.Is(err, nonce.ErrAlreadyUsed):
			respondError(w, http.StatusConflict, "nonce already used")
		case errors.Is(err, nonce.ErrExpired):
			respondError(w, http.StatusGone, "nonce expired")
		default:
			log.Printf("handler: consume nonce: %v", err)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "consumed"})
}

func (h *NonceHandler) logRejection(r *http.Request, gameID, deviceID string, cause error) {
	if h.auditLog == nil {
		return
	}
	switch {
	case errors.Is(cause, nonce.ErrNotFound),
		errors.Is(cause, nonce.ErrWrongDevice),
		errors.Is(cause, nonce.ErrAlreadyUsed),
		errors.Is(cause, nonce.ErrExpired):
		h.auditLog.LogEvent(r.Context(), gameID, deviceID, audit.ActionNonceRejected, clientIP(r),
			`{"reason":"`+cause.Error()+`"}`)
	}
}
