package auth

import (
	"context"
	"errors"
	"time"

	"github.com/flamma/auth/store"
)

// permanentBanUntil is the ban-expiry instant used for permanent bans. It is
// never reached at runtime, so "expiry in the future" stays the single ban
// test for both timed and permanent bans.
var permanentBanUntil = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Ban blocks the account until now+duration. Banning an already banned
// account overwrites the previous expiry.
func (m *Manager) Ban(ctx context.Context, accountID string, duration time.Duration) error {
	until := m.now().Add(duration)
	if err := m.setBanExpiry(ctx, accountID, &until); err != nil {
		return err
	}
	m.metrics.Inc(MetricBanApplied)
	m.emit(ctx, EventBan, accountID, "", true, nil, map[string]string{"until": until.UTC().Format(time.RFC3339)})
	return nil
}

// PermanentBan blocks the account with a far-future expiry.
func (m *Manager) PermanentBan(ctx context.Context, accountID string) error {
	until := permanentBanUntil
	if err := m.setBanExpiry(ctx, accountID, &until); err != nil {
		return err
	}
	m.metrics.Inc(MetricBanApplied)
	m.emit(ctx, EventPermanentBan, accountID, "", true, nil, nil)
	return nil
}

// Unban clears any ban on the account. Unbanning an unbanned account is a
// no-op, not an error.
func (m *Manager) Unban(ctx context.Context, accountID string) error {
	if err := m.setBanExpiry(ctx, accountID, nil); err != nil {
		return err
	}
	m.metrics.Inc(MetricUnban)
	m.emit(ctx, EventUnban, accountID, "", true, nil, nil)
	return nil
}

// CheckBanStatus reports whether the account is banned right now: banned iff
// a ban-expiry is set and still in the future. The answer is computed at
// call time and never cached, so an expired timed ban lifts without any
// cleanup write.
func (m *Manager) CheckBanStatus(ctx context.Context, accountID string) (BanInfo, error) {
	until, err := m.store.GetBanExpiry(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return BanInfo{}, ErrAccountNotFound
		}
		return BanInfo{}, m.storeFailure("ban status", err)
	}

	if until == nil || !until.After(m.now()) {
		return BanInfo{}, nil
	}
	return BanInfo{Banned: true, Until: *until}, nil
}

func (m *Manager) setBanExpiry(ctx context.Context, accountID string, until *time.Time) error {
	if err := m.store.SetBanExpiry(ctx, accountID, until); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return m.storeFailure("ban", err)
	}
	return nil
}
