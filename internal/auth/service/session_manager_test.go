package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gameboard/internal/audit"
	devicedomain "gameboard/internal/device/domain"
	gamedomain "gameboard/internal/game/domain"
	"gameboard/internal/security"
	sessiondomain "gameboard/internal/session/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memGameRepo struct {
	games map[string]*gamedomain.Game
}

func (r *memGameRepo) GetByID(ctx context.Context, id string) (*gamedomain.Game, error) {
	return r.games[id], nil
}

type memDeviceRepo struct {
	mu   sync.Mutex
	byID map[string]*devicedomain.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{byID: make(map[string]*devicedomain.Device)}
}

func (r *memDeviceRepo) GetByID(ctx context.Context, id string) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.byID[id]
	if d == nil || d.DeletedAt != nil {
		return nil, nil
	}
	return d, nil
}

func (r *memDeviceRepo) GetOrCreate(ctx context.Context, d *devicedomain.Device) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.GameID == d.GameID && existing.ClientID == d.ClientID && existing.DeletedAt == nil {
			return existing, nil
		}
	}
	r.byID[d.ID] = d
	return d, nil
}

func (r *memDeviceRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := r.byID[id]; d != nil {
		d.LastSeenAt = &at
	}
	return nil
}

func (r *memDeviceRepo) UpdateStatus(ctx context.Context, id string, status devicedomain.DeviceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := r.byID[id]; d != nil {
		d.Status = status
	}
	return nil
}

type memSessionRepo struct {
	mu   sync.Mutex
	byID map[string]*sessiondomain.DeviceSession

	failUpdates bool // force every UpdateTokens CAS to lose
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: make(map[string]*sessiondomain.DeviceSession)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.DeviceSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = s
	return nil
}

func (r *memSessionRepo) GetByAccessHash(ctx context.Context, hash string) (*sessiondomain.DeviceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.DeletedAt != nil {
			continue
		}
		if s.AccessTokenHash == hash || s.PrevAccessTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) GetByRefreshHash(ctx context.Context, hash string) (*sessiondomain.DeviceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.DeletedAt == nil && (s.RefreshTokenHash == hash || s.PrevRefreshTokenHash == hash) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) UpdateTokens(ctx context.Context, id string, accessHash, refreshHash string, newVersion int, expiresAt, refreshExpiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates {
		return false, nil
	}
	s := r.byID[id]
	if s == nil || s.DeletedAt != nil || s.TokenVersion != newVersion-1 {
		return false, nil
	}
	s.PrevAccessTokenHash = s.AccessTokenHash
	s.AccessTokenHash = accessHash
	s.PrevRefreshTokenHash = s.RefreshTokenHash
	s.RefreshTokenHash = refreshHash
	s.TokenVersion = newVersion
	s.ExpiresAt = expiresAt
	s.RefreshExpiresAt = refreshExpiresAt
	return true, nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.byID[id]; s != nil {
		s.RevokedAt = &at
	}
	return nil
}

func (r *memSessionRepo) get(id string) *sessiondomain.DeviceSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

func (r *memSessionRepo) only(t *testing.T) *sessiondomain.DeviceSession {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byID) != 1 {
		t.Fatalf("sessions = %d, want 1", len(r.byID))
	}
	for _, s := range r.byID {
		return s
	}
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *memAudit) LogEvent(ctx context.Context, gameID, deviceID, action, ip, metadata string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *memAudit) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, got := range a.actions {
		if got == action {
			return true
		}
	}
	return false
}

type fixture struct {
	mgr      *SessionManager
	games    *memGameRepo
	devices  *memDeviceRepo
	sessions *memSessionRepo
	audit    *memAudit
	clock    *fakeClock
}

func newFixture(t *testing.T, revokeOnReuse bool) *fixture {
	t.Helper()
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	f := &fixture{
		games:    &memGameRepo{games: map[string]*gamedomain.Game{"game-1": {ID: "game-1", AccountID: "acct-1", Name: "demo"}}},
		devices:  newMemDeviceRepo(),
		sessions: newMemSessionRepo(),
		audit:    &memAudit{},
		clock:    &fakeClock{t: time.Now().UTC()},
	}
	f.mgr = NewSessionManager(f.games, f.devices, f.sessions, codec, f.audit,
		24*time.Hour, 720*time.Hour, revokeOnReuse, f.clock.Now)
	return f
}

func (f *fixture) startSession(t *testing.T) *StartSessionResult {
	t.Helper()
	res, err := f.mgr.StartSession(context.Background(), StartSessionParams{
		GameID:    "game-1",
		ClientID:  "client-abc",
		Platform:  "ios",
		IPAddress: "203.0.113.9",
		UserAgent: "sdk/1.0",
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return res
}

func TestStartSession_IssuesTokenPair(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	if res.Device == nil || res.Device.GameID != "game-1" || res.Device.ClientID != "client-abc" {
		t.Fatalf("unexpected device: %+v", res.Device)
	}
	if res.Device.AccountID != "acct-1" {
		t.Errorf("account_id = %q, want acct-1", res.Device.AccountID)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("tokens should not be empty")
	}
	if res.Tokens.AccessToken == res.Tokens.RefreshToken {
		t.Error("access and refresh tokens must differ")
	}
	if res.Tokens.ExpiresIn != int64((24 * time.Hour).Seconds()) {
		t.Errorf("expires_in = %d", res.Tokens.ExpiresIn)
	}

	sess := f.sessions.only(t)
	if sess.TokenVersion != 1 {
		t.Errorf("token_version = %d, want 1", sess.TokenVersion)
	}
	if sess.AccessTokenHash != security.HashToken(res.Tokens.AccessToken) {
		t.Error("stored access hash does not match issued token")
	}
	if sess.RefreshTokenHash != security.HashToken(res.Tokens.RefreshToken) {
		t.Error("stored refresh hash does not match issued token")
	}
	if !f.audit.has(audit.ActionSessionStart) {
		t.Error("session_start should be audited")
	}
}

func TestStartSession_UnknownGame(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.mgr.StartSession(context.Background(), StartSessionParams{GameID: "nope", ClientID: "client-abc"})
	if !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("err = %v, want ErrGameNotFound", err)
	}
}

func TestStartSession_BlankInputs(t *testing.T) {
	f := newFixture(t, false)
	for _, p := range []StartSessionParams{
		{GameID: "", ClientID: "client-abc"},
		{GameID: "game-1", ClientID: "   "},
	} {
		if _, err := f.mgr.StartSession(context.Background(), p); !errors.Is(err, ErrGameNotFound) {
			t.Errorf("params %+v: err = %v, want ErrGameNotFound", p, err)
		}
	}
}

func TestStartSession_SameClientReusesDevice(t *testing.T) {
	f := newFixture(t, false)
	first := f.startSession(t)
	f.clock.Advance(time.Minute)
	second := f.startSession(t)

	if first.Device.ID != second.Device.ID {
		t.Errorf("device IDs differ: %s vs %s", first.Device.ID, second.Device.ID)
	}
	if second.Device.LastSeenAt == nil || !second.Device.LastSeenAt.Equal(f.clock.Now()) {
		t.Error("last_seen_at should advance on re-login")
	}
}

func TestValidateDeviceToken(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	dev, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateDeviceToken: %v", err)
	}
	if dev.ID != res.Device.ID {
		t.Errorf("device = %s, want %s", dev.ID, res.Device.ID)
	}
}

func TestValidateDeviceToken_Failures(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	cases := map[string]string{
		"empty":           "",
		"garbage":         "not-a-jwt",
		"refresh as auth": res.Tokens.RefreshToken,
	}
	for name, token := range cases {
		if _, err := f.mgr.ValidateDeviceToken(context.Background(), token); !errors.Is(err, ErrInvalidDeviceToken) {
			t.Errorf("%s: err = %v, want ErrInvalidDeviceToken", name, err)
		}
	}
}

func TestValidateDeviceToken_ExpiredAccessToken(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	f.clock.Advance(24*time.Hour + time.Second)
	if _, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("err = %v, want ErrInvalidDeviceToken", err)
	}
}

func TestValidateDeviceToken_BackdatedRowExpiry(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	// The claim's exp is still a day out; only the stored row is expired.
	sess := f.sessions.only(t)
	sess.ExpiresAt = f.clock.Now().Add(-time.Hour)

	if _, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("err = %v, want ErrInvalidDeviceToken", err)
	}
}

func TestValidateDeviceToken_RevokedSession(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	sess := f.sessions.only(t)
	if err := f.sessions.Revoke(context.Background(), sess.ID, f.clock.Now()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("err = %v, want ErrInvalidDeviceToken", err)
	}
}

func TestValidateDeviceToken_BannedDevice(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	if err := f.mgr.BanDevice(context.Background(), res.Device.ID); err != nil {
		t.Fatalf("BanDevice: %v", err)
	}
	if _, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("banned: err = %v, want ErrInvalidDeviceToken", err)
	}

	if err := f.mgr.ActivateDevice(context.Background(), res.Device.ID); err != nil {
		t.Fatalf("ActivateDevice: %v", err)
	}
	if _, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken); err != nil {
		t.Fatalf("after reactivation: %v", err)
	}
}

func TestRefreshAccessToken_RotatesVersion(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	f.clock.Advance(time.Hour)
	rotated, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	if rotated.AccessToken == res.Tokens.AccessToken || rotated.RefreshToken == res.Tokens.RefreshToken {
		t.Error("rotation must issue new tokens")
	}

	sess := f.sessions.only(t)
	if sess.TokenVersion != 2 {
		t.Errorf("token_version = %d, want 2", sess.TokenVersion)
	}
	if sess.RefreshTokenHash != security.HashToken(rotated.RefreshToken) {
		t.Error("stored refresh hash should be the rotated token's")
	}
	if !f.audit.has(audit.ActionTokenRefresh) {
		t.Error("token_refresh should be audited")
	}

	if _, err := f.mgr.ValidateDeviceToken(context.Background(), rotated.AccessToken); err != nil {
		t.Fatalf("new access token: %v", err)
	}
}

func TestRefreshAccessToken_PriorAccessTokenSurvivesOneRotation(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	f.clock.Advance(time.Hour)
	rotated, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// The access token from before the rotation is still inside its own TTL.
	if _, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken); err != nil {
		t.Fatalf("prior access token after one rotation: %v", err)
	}

	// A second rotation evicts it.
	f.clock.Advance(time.Hour)
	if _, err := f.mgr.RefreshAccessToken(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("second rotation: %v", err)
	}
	if _, err := f.mgr.ValidateDeviceToken(context.Background(), res.Tokens.AccessToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("err = %v, want ErrInvalidDeviceToken after second rotation", err)
	}
}

func TestRefreshAccessToken_ReplayedRefreshRejected(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	f.clock.Advance(time.Hour)
	if _, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken); err != nil {
		t.Fatalf("rotation: %v", err)
	}

	// The superseded refresh token now carries a stale version.
	_, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken)
	if !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("err = %v, want ErrInvalidDeviceToken", err)
	}
	if !f.audit.has(audit.ActionTokenReuse) {
		t.Error("token reuse should be audited")
	}
	if sess := f.sessions.only(t); sess.RevokedAt != nil {
		t.Error("session must not be revoked when revokeOnReuse is off")
	}
}

func TestRefreshAccessToken_ReuseRevokesWhenConfigured(t *testing.T) {
	f := newFixture(t, true)
	res := f.startSession(t)

	f.clock.Advance(time.Hour)
	rotated, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("rotation: %v", err)
	}
	if _, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("replay: err = %v, want ErrInvalidDeviceToken", err)
	}

	sess := f.sessions.only(t)
	if sess.RevokedAt == nil {
		t.Fatal("session should be revoked on reuse")
	}
	if !f.audit.has(audit.ActionSessionRevoked) {
		t.Error("session_revoked should be audited")
	}

	// The thief's rotated pair dies with the session.
	if _, err := f.mgr.RefreshAccessToken(context.Background(), rotated.RefreshToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Errorf("rotated refresh after revocation: err = %v, want ErrInvalidDeviceToken", err)
	}
	if _, err := f.mgr.ValidateDeviceToken(context.Background(), rotated.AccessToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Errorf("rotated access after revocation: err = %v, want ErrInvalidDeviceToken", err)
	}
}

func TestRefreshAccessToken_SequentialRotations(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	refresh := res.Tokens.RefreshToken
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Hour)
		rotated, err := f.mgr.RefreshAccessToken(context.Background(), refresh)
		if err != nil {
			t.Fatalf("rotation %d: %v", i+1, err)
		}
		refresh = rotated.RefreshToken
	}
	if sess := f.sessions.only(t); sess.TokenVersion != 6 {
		t.Errorf("token_version = %d, want 6", sess.TokenVersion)
	}
}

func TestRefreshAccessToken_ExpiredRefreshToken(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)

	f.clock.Advance(720*time.Hour + time.Second)
	if _, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Fatalf("err = %v, want ErrInvalidDeviceToken", err)
	}
}

func TestRefreshAccessToken_UnknownAndMalformed(t *testing.T) {
	f := newFixture(t, false)
	f.startSession(t)

	if _, err := f.mgr.RefreshAccessToken(context.Background(), "junk"); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Errorf("malformed: err = %v, want ErrInvalidDeviceToken", err)
	}
	if _, err := f.mgr.RefreshAccessToken(context.Background(), ""); !errors.Is(err, ErrInvalidDeviceToken) {
		t.Errorf("empty: err = %v, want ErrInvalidDeviceToken", err)
	}
}

func TestRefreshAccessToken_ConflictAfterRetries(t *testing.T) {
	f := newFixture(t, false)
	res := f.startSession(t)
	f.sessions.failUpdates = true

	f.clock.Advance(time.Hour)
	_, err := f.mgr.RefreshAccessToken(context.Background(), res.Tokens.RefreshToken)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestSetDeviceStatus_UnknownDevice(t *testing.T) {
	f := newFixture(t, false)
	if err := f.mgr.BanDevice(context.Background(), "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}
