package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/flamma/auth/password"
)

// Config is the full configuration surface of the Manager. Zero values are
// filled from defaultConfig by the Builder; Validate runs at Build time.
type Config struct {
	JWT      JWTConfig
	Password password.Config
	Audit    AuditConfig
}

// JWTConfig controls token issuance and validation.
type JWTConfig struct {
	// Secret signs and verifies HS256 tokens. Required.
	Secret []byte

	// Issuer and Audience are stamped into every token and checked during
	// validation.
	Issuer   string
	Audience string

	// TokenValidity is the access token lifetime.
	TokenValidity time.Duration

	// RefreshTokenValidity bounds how long a stored refresh token can be
	// redeemed.
	RefreshTokenValidity time.Duration

	// ValidityCheckPeriod is the TTL of validation-cache entries. A token
	// found valid is trusted without re-verification for this long.
	ValidityCheckPeriod time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking, counting dropped events instead
	// of waiting for buffer space.
	DropIfFull bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:               "flamma-auth",
			Audience:             "flamma",
			TokenValidity:        15 * time.Minute,
			RefreshTokenValidity: 7 * 24 * time.Hour,
			ValidityCheckPeriod:  30 * time.Second,
		},
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate rejects configurations the Manager cannot run safely with.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) == 0 {
		return errors.New("config: JWT.Secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("config: JWT.Secret must be at least 32 bytes, got %d", len(c.JWT.Secret))
	}
	if c.JWT.TokenValidity <= 0 {
		return errors.New("config: JWT.TokenValidity must be positive")
	}
	if c.JWT.RefreshTokenValidity <= 0 {
		return errors.New("config: JWT.RefreshTokenValidity must be positive")
	}
	if c.JWT.RefreshTokenValidity < c.JWT.TokenValidity {
		return errors.New("config: JWT.RefreshTokenValidity must not be shorter than TokenValidity")
	}
	if c.JWT.ValidityCheckPeriod < 0 {
		return errors.New("config: JWT.ValidityCheckPeriod must not be negative")
	}
	if c.JWT.ValidityCheckPeriod > c.JWT.TokenValidity {
		return errors.New("config: JWT.ValidityCheckPeriod must not exceed TokenValidity")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("config: Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}
