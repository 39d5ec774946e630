package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flamma/auth/cache"
	"github.com/flamma/auth/jwt"
	"github.com/flamma/auth/password"
	"github.com/flamma/auth/store"
)

// Manager orchestrates the credential lifecycle over an account store, a
// token manager, a password hasher and an optional validation cache. It is
// safe for concurrent use; build one per process via the Builder.
type Manager struct {
	config  Config
	store   store.AccountStore
	cache   *cache.ValidationCache
	tokens  *jwt.Manager
	hasher  *password.Hasher
	audit   *auditDispatcher
	metrics *Metrics

	now  func() time.Time
	warn func(format string, args ...any)
}

// Metrics exposes the Manager's counter set.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (m *Manager) AuditDropped() uint64 {
	return m.audit.Dropped()
}

// Close drains and stops the audit dispatcher. The Manager must not be used
// after Close.
func (m *Manager) Close() {
	m.audit.Close()
}

// Register validates the request, checks username uniqueness, hashes the
// password with a fresh salt and persists the account.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) error {
	if err := validateRegisterRequest(req); err != nil {
		m.emit(ctx, EventRegister, "", req.Username, false, err, nil)
		return err
	}

	exists, err := m.store.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return m.storeFailure("register", err)
	}
	if exists {
		m.metrics.Inc(MetricRegisterDuplicate)
		m.emit(ctx, EventRegister, "", req.Username, false, ErrDuplicateUsername, nil)
		return ErrDuplicateUsername
	}

	salt, err := m.hasher.MakeSalt()
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	acct := store.Account{
		Username:     req.Username,
		PasswordHash: m.hasher.HashString(req.Password, salt),
		Salt:         salt,
		Profile: store.Profile{
			FirstName:         req.FirstName,
			LastName:          req.LastName,
			PrimaryLocationID: req.PrimaryLocationID,
			BirthDate:         req.BirthDate,
		},
	}

	if err := m.store.CreateAccount(ctx, &acct); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			// Lost the race between the existence check and the insert.
			m.metrics.Inc(MetricRegisterDuplicate)
			m.emit(ctx, EventRegister, "", req.Username, false, ErrDuplicateUsername, nil)
			return ErrDuplicateUsername
		}
		return m.storeFailure("register", err)
	}

	m.metrics.Inc(MetricRegisterSuccess)
	m.emit(ctx, EventRegister, "", req.Username, true, nil, nil)
	return nil
}

// Login verifies the password against the stored salt and hash and, on
// success, issues a token pair and persists the rotated refresh token.
// Unknown usernames and wrong passwords both return ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, username, pass string) (jwt.Pair, error) {
	acct, err := m.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.metrics.Inc(MetricLoginFailure)
			m.emit(ctx, EventLogin, "", username, false, ErrInvalidCredentials, nil)
			return jwt.Pair{}, ErrInvalidCredentials
		}
		return jwt.Pair{}, m.storeFailure("login", err)
	}

	if !m.hasher.Verify(pass, acct.Salt, acct.PasswordHash) {
		m.metrics.Inc(MetricLoginFailure)
		m.emit(ctx, EventLogin, acct.ID, username, false, ErrInvalidCredentials, nil)
		return jwt.Pair{}, ErrInvalidCredentials
	}

	pair, err := m.tokens.Generate(username)
	if err != nil {
		return jwt.Pair{}, fmt.Errorf("login: %w", err)
	}

	validTo := m.now().Add(m.config.JWT.RefreshTokenValidity)
	if err := m.store.SetRefreshToken(ctx, username, pair.RefreshToken, validTo); err != nil {
		return jwt.Pair{}, m.storeFailure("login", err)
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.emit(ctx, EventLogin, acct.ID, username, true, nil, nil)
	return pair, nil
}

func (m *Manager) emit(ctx context.Context, eventType, accountID, username string, success bool, opErr error, metadata map[string]string) {
	if m.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: m.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Username:  username,
		Success:   success,
		Metadata:  metadata,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	m.audit.Emit(ctx, event)
}

func (m *Manager) storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
