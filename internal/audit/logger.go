package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"gameboard/internal/audit/domain"
	auditrepo "gameboard/internal/audit/repository"
)

// SentinelGameID is the game_id used for audit events that could not be tied
// to a game (e.g. a refresh with an undecodable token).
const SentinelGameID = "_system"

// Actions recorded by the device-auth flows.
const (
	ActionSessionStart   = "device.session_start"
	ActionTokenRefresh   = "device.token_refresh"
	ActionTokenReuse     = "device.token_reuse_detected"
	ActionSessionRevoked = "device.session_revoked"
	ActionNonceRejected  = "device.nonce_rejected"
)

// AuditLogger writes a single audit event with an explicit action. Used by
// the session manager and nonce handlers. LogEvent is best-effort: failures
// are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, gameID, deviceID, action, ip, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns an AuditLogger that persists to repo.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, gameID, deviceID, action, ip, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if gameID == "" {
		gameID = SentinelGameID
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		GameID:    gameID,
		DeviceID:  deviceID,
		Action:    action,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s: %v", action, err)
	}
}
