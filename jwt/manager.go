package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid is returned when a token cannot be parsed or its signature
// does not verify against the configured secret.
var ErrTokenInvalid = errors.New("invalid token")

// refreshTokenSize is the raw entropy of an opaque refresh token before encoding.
const refreshTokenSize = 64

// Status classifies a token against an expected identity. It is computed per
// call and never persisted.
type Status int

const (
	// StatusValid means signature, claims and expiry all check out.
	StatusValid Status = iota
	// StatusExpired means the token is authentic but its expiry has passed.
	StatusExpired
	// StatusInvalid means the token is unparsable, tampered, or bound to a
	// different identity, issuer or audience.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Config carries the externally supplied signing material and validity windows.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable.
type Config struct {
	Secret          []byte
	Issuer          string
	Audience        string
	AccessValidity  time.Duration
	RefreshValidity time.Duration
}

// Pair is an issued access/refresh token pair. Immutable once returned.
type Pair struct {
	Token        string
	RefreshToken string
	TokenValidTo time.Time
}

// Manager issues, refreshes and classifies access tokens.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a ready Manager.
//
// A non-positive access validity window is rejected here: issuing tokens that
// are already expired at creation would turn expiry-triggered refresh into a
// loop.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret required")
	}
	if cfg.AccessValidity <= 0 {
		return nil, errors.New("access validity window must be positive")
	}
	if cfg.RefreshValidity <= 0 {
		return nil, errors.New("refresh validity window must be positive")
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// WithTimeSource overrides the clock used for issuance and expiry checks.
// Intended for tests; the returned Manager is the receiver.
func (m *Manager) WithTimeSource(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Generate issues a signed token pair for username.
//
// The signed token embeds the username as subject and a fresh uuid token id,
// with expiry now + the configured access validity. The refresh token is an
// independent opaque secret unrelated to the signed token's structure.
func (m *Manager) Generate(username string) (Pair, error) {
	now := m.now()
	validTo := now.Add(m.config.AccessValidity)

	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		Issuer:    m.config.Issuer,
		ExpiresAt: jwt.NewNumericDate(validTo),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return Pair{}, err
	}

	refresh, err := NewRefreshToken()
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		Token:        signed,
		RefreshToken: refresh,
		TokenValidTo: validTo,
	}, nil
}

// Classify runs the validation state machine for (token, username).
//
// Order matters: signature, then identity, then issuer/audience, then expiry.
// A tampered token is Invalid no matter what its claims or expiry say.
func (m *Manager) Classify(tokenStr, username string) Status {
	claims, err := m.parseSigned(tokenStr)
	if err != nil {
		return StatusInvalid
	}
	if claims.Subject != username {
		return StatusInvalid
	}
	if claims.Issuer != m.config.Issuer {
		return StatusInvalid
	}
	if m.config.Audience != "" && !containsAudience(claims.Audience, m.config.Audience) {
		return StatusInvalid
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(m.now()) {
		return StatusExpired
	}
	return StatusValid
}

// Refresh re-issues a pair carrying forward the identity of an existing token.
//
// Expiry of the existing token is tolerated; a signature that does not verify
// is not. The new pair gets a fresh token id and a fresh refresh token.
func (m *Manager) Refresh(tokenStr string) (Pair, error) {
	claims, err := m.parseSigned(tokenStr)
	if err != nil {
		return Pair{}, err
	}
	return m.Generate(claims.Subject)
}

// ExtractUsername recovers the identity claim of a signature-valid token,
// irrespective of expiry.
func (m *Manager) ExtractUsername(tokenStr string) (string, error) {
	claims, err := m.parseSigned(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// parseSigned verifies the signature only. Claim validation (identity, issuer,
// audience, expiry) is done by the callers so that expired-but-authentic
// tokens remain distinguishable from tampered ones.
func (m *Manager) parseSigned(tokenStr string) (*jwt.RegisteredClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// NewRefreshToken generates an opaque refresh token from 64 bytes of CSPRNG
// output, base64-encoded.
func NewRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
