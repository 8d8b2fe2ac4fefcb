// Package service orchestrates the device session lifecycle: anonymous-device
// login, access-token validation, and refresh-token rotation with replay
// detection.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gameboard/internal/audit"
	devicedomain "gameboard/internal/device/domain"
	gamedomain "gameboard/internal/game/domain"
	"gameboard/internal/security"
	sessiondomain "gameboard/internal/session/domain"
)

// Sentinel errors for the session manager; the handler layer maps them to
// HTTP statuses.
var (
	// ErrGameNotFound is returned by StartSession when the game does not exist.
	ErrGameNotFound = errors.New("game not found")
	// ErrDeviceNotFound is returned by the status operations when the device
	// does not exist or is soft-deleted.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidDeviceToken is the single opaque outcome for every
	// token-validation failure (malformed, expired, revoked, banned device,
	// version mismatch). Callers must not reveal which check failed.
	ErrInvalidDeviceToken = errors.New("invalid device token")
	// ErrConflict is returned when a concurrent rotation repeatedly won the
	// race; the caller may treat it as transient and retry once.
	ErrConflict = errors.New("concurrent session update conflict")
)

// GameRepo is the minimal game repository needed by the session manager.
type GameRepo interface {
	GetByID(ctx context.Context, id string) (*gamedomain.Game, error)
}

// DeviceRepo is the minimal device repository needed by the session manager.
type DeviceRepo interface {
	GetByID(ctx context.Context, id string) (*devicedomain.Device, error)
	GetOrCreate(ctx context.Context, d *devicedomain.Device) (*devicedomain.Device, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status devicedomain.DeviceStatus) error
}

// SessionRepo is the minimal session repository needed by the session manager.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.DeviceSession) error
	GetByAccessHash(ctx context.Context, hash string) (*sessiondomain.DeviceSession, error)
	GetByRefreshHash(ctx context.Context, hash string) (*sessiondomain.DeviceSession, error)
	UpdateTokens(ctx context.Context, id string, accessHash, refreshHash string, newVersion int, expiresAt, refreshExpiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

// StartSessionParams are the inputs for a device login.
type StartSessionParams struct {
	GameID    string
	ClientID  string
	Platform  string
	IPAddress string
	UserAgent string
}

// SessionTokens holds one freshly issued access/refresh pair. Plaintext
// tokens are returned exactly once and never persisted.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}

// StartSessionResult is the outcome of StartSession.
type StartSessionResult struct {
	Device *devicedomain.Device
	Tokens SessionTokens
}

// SessionManager composes the token codec, device registry, session store,
// and game lookup into the device-auth state machine.
type SessionManager struct {
	games    GameRepo
	devices  DeviceRepo
	sessions SessionRepo
	codec    *security.TokenCodec
	auditLog audit.AuditLogger

	accessTTL  time.Duration
	refreshTTL time.Duration
	// revokeOnReuse escalates a refresh-version mismatch from plain rejection
	// to session revocation. Off by default; rejection alone already makes
	// theft detectable.
	revokeOnReuse bool

	now func() time.Time
}

// NewSessionManager returns a SessionManager with the given dependencies.
// auditLog may be nil (no auditing). now may be nil; then time.Now (UTC) is
// used. The clock is injectable for tests.
func NewSessionManager(
	games GameRepo,
	devices DeviceRepo,
	sessions SessionRepo,
	codec *security.TokenCodec,
	auditLog audit.AuditLogger,
	accessTTL, refreshTTL time.Duration,
	revokeOnReuse bool,
	now func() time.Time,
) *SessionManager {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SessionManager{
		games:         games,
		devices:       devices,
		sessions:      sessions,
		codec:         codec,
		auditLog:      auditLog,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		revokeOnReuse: revokeOnReuse,
		now:           now,
	}
}

// StartSession logs a device in: it resolves the game to its account, upserts
// the device registry entry, creates one session row with token_version 1,
// and returns the device plus the plaintext token pair.
func (m *SessionManager) StartSession(ctx context.Context, p StartSessionParams) (*StartSessionResult, error) {
	gameID := strings.TrimSpace(p.GameID)
	clientID := strings.TrimSpace(p.ClientID)
	if gameID == "" || clientID == "" {
		return nil, ErrGameNotFound
	}

	game, err := m.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}

	now := m.now()
	dev, err := m.devices.GetOrCreate(ctx, &devicedomain.Device{
		ID:          uuid.New().String(),
		GameID:      gameID,
		AccountID:   game.AccountID,
		ClientID:    clientID,
		Status:      devicedomain.DeviceStatusActive,
		Platform:    strings.TrimSpace(p.Platform),
		FirstSeenAt: now,
		LastSeenAt:  &now,
	})
	if err != nil {
		return nil, err
	}
	if err := m.devices.UpdateLastSeen(ctx, dev.ID, now); err != nil {
		return nil, err
	}
	dev.LastSeenAt = &now

	access, accessHash, accessExp, err := m.codec.IssueAccess(clientID, gameID, game.AccountID, m.accessTTL, now)
	if err != nil {
		return nil, err
	}
	refresh, refreshHash, refreshExp, err := m.codec.IssueRefresh(clientID, gameID, game.AccountID, 1, m.refreshTTL, now)
	if err != nil {
		return nil, err
	}

	sess := &sessiondomain.DeviceSession{
		ID:               uuid.New().String(),
		DeviceID:         dev.ID,
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		TokenVersion:     1,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
		IPAddress:        p.IPAddress,
		UserAgent:        p.UserAgent,
		CreatedAt:        now,
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	if m.auditLog != nil {
		m.auditLog.LogEvent(ctx, gameID, dev.ID, audit.ActionSessionStart, p.IPAddress, "")
	}

	return &StartSessionResult{
		Device: dev,
		Tokens: SessionTokens{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(m.accessTTL.Seconds()),
		},
	}, nil
}

// ValidateDeviceToken authenticates an access token. The checks run in order
// and short-circuit at the first failure; every failure collapses to
// ErrInvalidDeviceToken so a caller cannot distinguish an expired token from
// a revoked session or a banned device. Store failures surface as-is.
func (m *SessionManager) ValidateDeviceToken(ctx context.Context, token string) (*devicedomain.Device, error) {
	if token == "" {
		return nil, ErrInvalidDeviceToken
	}
	claims, err := m.codec.DecodeAccess(token)
	if err != nil {
		return nil, ErrInvalidDeviceToken
	}
	if claims.ExpiresAt != nil && m.now().After(claims.ExpiresAt.Time) {
		return nil, ErrInvalidDeviceToken
	}

	sess, err := m.sessions.GetByAccessHash(ctx, security.HashToken(token))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidDeviceToken
	}
	if sess.RevokedAt != nil {
		return nil, ErrInvalidDeviceToken
	}
	// The row's expires_at tracks the latest-issued access token. A token from
	// before the last rotation resolves through the superseded-hash slot and is
	// bounded by its own exp claim above.
	if security.TokenHashEqual(token, sess.AccessTokenHash) && m.now().After(sess.ExpiresAt) {
		return nil, ErrInvalidDeviceToken
	}

	dev, err := m.devices.GetByID(ctx, sess.DeviceID)
	if err != nil {
		return nil, err
	}
	if !dev.IsActive() {
		return nil, ErrInvalidDeviceToken
	}
	return dev, nil
}

// RefreshAccessToken rotates the token pair. The token_version embedded in
// the presented refresh token must exactly equal the stored version; a stale
// version means a superseded token was replayed. Rotation is an optimistic
// compare-and-swap on the version, retried once; a second lost race surfaces
// ErrConflict. Rotation does not invalidate the access token issued under the
// prior version; it stays valid until its own expiry or the next rotation.
func (m *SessionManager) RefreshAccessToken(ctx context.Context, token string) (*SessionTokens, error) {
	if token == "" {
		return nil, ErrInvalidDeviceToken
	}
	claims, err := m.codec.DecodeRefresh(token)
	if err != nil {
		return nil, ErrInvalidDeviceToken
	}
	hash := security.HashToken(token)

	for attempt := 0; attempt < 2; attempt++ {
		sess, err := m.sessions.GetByRefreshHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, ErrInvalidDeviceToken
		}
		if claims.TokenVersion != sess.TokenVersion {
			m.handleVersionMismatch(ctx, sess, claims)
			return nil, ErrInvalidDeviceToken
		}
		now := m.now()
		if sess.RevokedAt != nil || now.After(sess.RefreshExpiresAt) {
			return nil, ErrInvalidDeviceToken
		}

		newVersion := sess.TokenVersion + 1
		access, accessHash, accessExp, err := m.codec.IssueAccess(claims.Subject, claims.GameID, claims.AccountID, m.accessTTL, now)
		if err != nil {
			return nil, err
		}
		refresh, refreshHash, refreshExp, err := m.codec.IssueRefresh(claims.Subject, claims.GameID, claims.AccountID, newVersion, m.refreshTTL, now)
		if err != nil {
			return nil, err
		}

		updated, err := m.sessions.UpdateTokens(ctx, sess.ID, accessHash, refreshHash, newVersion, accessExp, refreshExp)
		if err != nil {
			return nil, err
		}
		if !updated {
			// Lost the race: re-read and try once more. The usual outcome is
			// a version mismatch on the retry, because the winner rotated.
			continue
		}

		if m.auditLog != nil {
			m.auditLog.LogEvent(ctx, claims.GameID, sess.DeviceID, audit.ActionTokenRefresh, sess.IPAddress,
				fmt.Sprintf(`{"token_version":%d}`, newVersion))
		}
		return &SessionTokens{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(m.accessTTL.Seconds()),
		}, nil
	}
	return nil, ErrConflict
}

// handleVersionMismatch records the replay/theft signal and, when configured,
// revokes the session so the thief's rotated tokens die too.
func (m *SessionManager) handleVersionMismatch(ctx context.Context, sess *sessiondomain.DeviceSession, claims *security.RefreshClaims) {
	if m.auditLog != nil {
		m.auditLog.LogEvent(ctx, claims.GameID, sess.DeviceID, audit.ActionTokenReuse, sess.IPAddress,
			fmt.Sprintf(`{"presented_version":%d,"stored_version":%d}`, claims.TokenVersion, sess.TokenVersion))
	}
	if !m.revokeOnReuse {
		return
	}
	if err := m.sessions.Revoke(ctx, sess.ID, m.now()); err == nil && m.auditLog != nil {
		m.auditLog.LogEvent(ctx, claims.GameID, sess.DeviceID, audit.ActionSessionRevoked, sess.IPAddress, `{"reason":"token_reuse"}`)
	}
}

// BanDevice marks the device banned. All of its currently valid access tokens
// fail on the next validation call.
func (m *SessionManager) BanDevice(ctx context.Context, deviceID string) error {
	return m.setDeviceStatus(ctx, deviceID, devicedomain.DeviceStatusBanned)
}

// SuspendDevice marks the device suspended; suspended devices fail validation
// like banned ones but the transition is meant to be reversible.
func (m *SessionManager) SuspendDevice(ctx context.Context, deviceID string) error {
	return m.setDeviceStatus(ctx, deviceID, devicedomain.DeviceStatusSuspended)
}

// ActivateDevice returns the device to active status.
func (m *SessionManager) ActivateDevice(ctx context.Context, deviceID string) error {
	return m.setDeviceStatus(ctx, deviceID, devicedomain.DeviceStatusActive)
}

func (m *SessionManager) setDeviceStatus(ctx context.Context, deviceID string, status devicedomain.DeviceStatus) error {
	dev, err := m.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if dev == nil {
		return ErrDeviceNotFound
	}
	return m.devices.UpdateStatus(ctx, deviceID, status)
}
