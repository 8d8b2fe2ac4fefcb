package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds JWT claims for a device access token. Subject is the
// client-provided device identity string.
type AccessClaims struct {
	jwt.RegisteredClaims
	GameID    string `json:"game_id"`
	AccountID string `json:"account_id"`
}

// RefreshClaims holds JWT claims for a device refresh token. TokenVersion is
// mirrored on the session row and incremented on every rotation; presenting a
// stale version is the replay/theft signal.
type RefreshClaims struct {
	jwt.RegisteredClaims
	GameID       string `json:"game_id"`
	AccountID    string `json:"account_id"`
	TokenVersion int    `json:"token_version"`
}

// TokenCodec issues and verifies signed device access and refresh tokens
// using RS256 or ES256 (private/public key). It holds no session or device
// state; everything it needs is embedded in claims.
type TokenCodec struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
}

// NewTokenCodec returns a TokenCodec that signs with the given private key
// (RSA or ECDSA). issuer and audience are set on claims and checked on decode.
func NewTokenCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) *TokenCodec {
	return &TokenCodec{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
	}
}

// IssueAccess issues an access JWT for the device identity scoped to a game
// and account. Returns the signed token, its storage hash, and the expiry.
// The plaintext token is returned exactly once and never persisted.
func (c *TokenCodec) IssueAccess(clientID, gameID, accountID string, ttl time.Duration, now time.Time) (token, tokenHash string, expiresAt time.Time, err error) {
	now = now.UTC()
	expiresAt = now.Add(ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		GameID:    gameID,
		AccountID: accountID,
	}
	token, err = c.sign(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, HashToken(token), expiresAt, nil
}

// IssueRefresh issues a refresh JWT carrying tokenVersion. Returns the signed
// token, its storage hash, and the expiry. The caller persists the hash and
// version on the session row.
func (c *TokenCodec) IssueRefresh(clientID, gameID, accountID string, tokenVersion int, ttl time.Duration, now time.Time) (token, tokenHash string, expiresAt time.Time, err error) {
	now = now.UTC()
	expiresAt = now.Add(ttl)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		GameID:       gameID,
		AccountID:    accountID,
		TokenVersion: tokenVersion,
	}
	token, err = c.sign(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, HashToken(token), expiresAt, nil
}

func (c *TokenCodec) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch c.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(c.privateKey)
}

// DecodeAccess parses and verifies an access token (signature, exp, iss, aud).
// All failures collapse to ErrInvalidToken.
func (c *TokenCodec) DecodeAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, c.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := c.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

// DecodeRefresh parses and verifies a refresh token (signature, exp, iss, aud).
// The returned claims include TokenVersion. All failures collapse to ErrInvalidToken.
func (c *TokenCodec) DecodeRefresh(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, c.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := c.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return c.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return c.publicKey, nil
	}
	return nil, ErrInvalidToken
}

func (c *TokenCodec) checkIssuerAudience(issuer string, audience jwt.ClaimStrings) error {
	if issuer != c.issuer {
		return ErrInvalidToken
	}
	for _, a := range audience {
		if a == c.audience {
			return nil
		}
	}
	return ErrInvalidToken
}
