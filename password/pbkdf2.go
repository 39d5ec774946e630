package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minIterations = 10_000
	minSaltLength = 16
	minKeyLength  = 16
)

// Config controls the PBKDF2 key-derivation cost and output sizes.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// DefaultConfig returns the production parameter set: 100k iterations,
// 16-byte salt, 32-byte derived key.
func DefaultConfig() Config {
	return Config{
		Iterations: 100_000,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Hasher derives and verifies salted PBKDF2-HMAC-SHA256 password hashes.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a ready Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Iterations < minIterations {
		return nil, errors.New("password iterations must be >= 10000")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("password key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// MakeSalt draws a fresh salt from the CSPRNG.
func (h *Hasher) MakeSalt() ([]byte, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashString derives the base64-encoded key for (password, salt).
//
// Pure function: the same inputs always produce the same hash, so callers can
// recompute with the stored salt and compare.
func (h *Hasher) HashString(password string, salt []byte) string {
	key := pbkdf2.Key([]byte(password), salt, h.config.Iterations, h.config.KeyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// Verify recomputes the hash with the stored salt and compares in constant time.
func (h *Hasher) Verify(password string, salt []byte, encodedHash string) bool {
	expected, err := base64.StdEncoding.DecodeString(encodedHash)
	if err != nil {
		return false
	}
	computed := pbkdf2.Key([]byte(password), salt, h.config.Iterations, h.config.KeyLength, sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
