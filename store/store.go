// Package store defines the account persistence contract the auth engine runs
// against, plus the bundled in-memory and Postgres implementations.
//
// Implementations return explicit not-found sentinels rather than nil records,
// and resolve their own write concurrency (row versioning or last-write-wins);
// the engine never holds cross-call locks on account state.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an account cannot be located.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateUsername is returned when creating an account whose username
	// is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
)

// Profile is the registration-time descriptive data attached to an account.
// It is joined by id, never by embedded back-references.
type Profile struct {
	FirstName         string
	LastName          string
	PrimaryLocationID string
	BirthDate         time.Time
}

// Account is the persisted identity record.
//
// RefreshToken and RefreshTokenValidTo are always set and cleared together
// (empty token means the account holds no refresh session). BannedUntil nil
// means not banned; a far-future value is the permanent-ban sentinel.
type Account struct {
	ID                  string
	Username            string
	PasswordHash        string
	Salt                []byte
	Profile             Profile
	RefreshToken        string
	RefreshTokenValidTo time.Time
	BannedUntil         *time.Time
	RegisteredAt        time.Time
}

// Filter narrows ListAccounts. The zero value lists everything.
type Filter struct {
	BannedOnly bool
	Limit      int
}

// AccountStore is the persistence collaborator consumed by the engine.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ListAccounts(ctx context.Context, filter Filter) ([]Account, error)

	// GetRefreshToken returns the stored refresh token and its expiry for
	// username; an empty token means none is set.
	GetRefreshToken(ctx context.Context, username string) (string, time.Time, error)
	// SetRefreshToken stores token and expiry together; an empty token clears
	// both fields.
	SetRefreshToken(ctx context.Context, username, token string, validTo time.Time) error

	GetPasswordSalt(ctx context.Context, username string) ([]byte, error)

	// GetBanExpiry returns the ban-expiry instant for the account id, nil if
	// the account is not banned.
	GetBanExpiry(ctx context.Context, id string) (*time.Time, error)
	// SetBanExpiry stores until as the ban-expiry; nil clears the ban.
	SetBanExpiry(ctx context.Context, id string, until *time.Time) error
}
