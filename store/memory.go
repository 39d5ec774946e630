package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a thread-safe in-memory AccountStore for tests and local runs.
// All map access goes through the mutex; callers always receive copies.
type Memory struct {
	mu sync.RWMutex

	byUsername map[string]*Account
	byID       map[string]*Account
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byUsername: make(map[string]*Account),
		byID:       make(map[string]*Account),
	}
}

func copyAccount(a *Account) *Account {
	cp := *a
	if a.Salt != nil {
		cp.Salt = append([]byte(nil), a.Salt...)
	}
	if a.BannedUntil != nil {
		until := *a.BannedUntil
		cp.BannedUntil = &until
	}
	return &cp
}

func (m *Memory) CreateAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUsername[account.Username]; exists {
		return ErrDuplicateUsername
	}

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.RegisteredAt.IsZero() {
		account.RegisteredAt = time.Now().UTC()
	}

	cp := copyAccount(account)
	m.byUsername[cp.Username] = cp
	m.byID[cp.ID] = cp
	return nil
}

func (m *Memory) FindByUsername(ctx context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(account), nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(account), nil
}

func (m *Memory) UpdateAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[account.ID]
	if !ok {
		return ErrNotFound
	}

	cp := copyAccount(account)
	cp.Username = current.Username // username is immutable
	m.byID[cp.ID] = cp
	m.byUsername[cp.Username] = cp
	return nil
}

func (m *Memory) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byUsername[username]
	return ok, nil
}

func (m *Memory) ListAccounts(ctx context.Context, filter Filter) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	accounts := make([]Account, 0, len(m.byID))
	for _, account := range m.byID {
		if filter.BannedOnly {
			if account.BannedUntil == nil || !account.BannedUntil.After(now) {
				continue
			}
		}
		accounts = append(accounts, *copyAccount(account))
		if filter.Limit > 0 && len(accounts) >= filter.Limit {
			break
		}
	}
	return accounts, nil
}

func (m *Memory) GetRefreshToken(ctx context.Context, username string) (string, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byUsername[username]
	if !ok {
		return "", time.Time{}, ErrNotFound
	}
	return account.RefreshToken, account.RefreshTokenValidTo, nil
}

func (m *Memory) SetRefreshToken(ctx context.Context, username, token string, validTo time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byUsername[username]
	if !ok {
		return ErrNotFound
	}

	account.RefreshToken = token
	if token == "" {
		account.RefreshTokenValidTo = time.Time{}
	} else {
		account.RefreshTokenValidTo = validTo
	}
	return nil
}

func (m *Memory) GetPasswordSalt(ctx context.Context, username string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), account.Salt...), nil
}

func (m *Memory) GetBanExpiry(ctx context.Context, id string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if account.BannedUntil == nil {
		return nil, nil
	}
	until := *account.BannedUntil
	return &until, nil
}

func (m *Memory) SetBanExpiry(ctx context.Context, id string, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if until == nil {
		account.BannedUntil = nil
	} else {
		cp := *until
		account.BannedUntil = &cp
	}
	return nil
}
