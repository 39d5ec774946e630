package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/flamma/auth/jwt"
	"github.com/flamma/auth/store"
)

// RefreshSession exchanges an access token and its refresh token for a fresh
// pair. Identity comes from the access token's signature, so an expired but
// untampered token is acceptable. The presented refresh token must match the
// stored one and be unexpired; on success the stored refresh token rotates
// and any cached validation for the username is dropped. Every rejection
// maps to ErrInvalidToken.
func (m *Manager) RefreshSession(ctx context.Context, token, refreshToken string) (jwt.Pair, error) {
	username, err := m.tokens.ExtractUsername(token)
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		return jwt.Pair{}, ErrInvalidToken
	}

	stored, validTo, err := m.store.GetRefreshToken(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.metrics.Inc(MetricRefreshFailure)
			m.emit(ctx, EventRefresh, "", username, false, ErrInvalidToken, nil)
			return jwt.Pair{}, ErrInvalidToken
		}
		return jwt.Pair{}, m.storeFailure("refresh", err)
	}

	if stored == "" || !validTo.After(m.now()) ||
		subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		m.metrics.Inc(MetricRefreshFailure)
		m.emit(ctx, EventRefresh, "", username, false, ErrInvalidToken, nil)
		return jwt.Pair{}, ErrInvalidToken
	}

	pair, err := m.tokens.Refresh(token)
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		m.emit(ctx, EventRefresh, "", username, false, ErrInvalidToken, nil)
		return jwt.Pair{}, ErrInvalidToken
	}

	newValidTo := m.now().Add(m.config.JWT.RefreshTokenValidity)
	if err := m.store.SetRefreshToken(ctx, username, pair.RefreshToken, newValidTo); err != nil {
		return jwt.Pair{}, m.storeFailure("refresh", err)
	}

	m.invalidateCache(ctx, username)

	m.metrics.Inc(MetricRefreshSuccess)
	m.emit(ctx, EventRefresh, "", username, true, nil, nil)
	return pair, nil
}

// RevokeSession clears the account's stored refresh token. Revocation is
// idempotent; an unknown username is not an error. Unexpired access tokens
// stay verifiable until they age out, but can no longer be refreshed.
func (m *Manager) RevokeSession(ctx context.Context, username string) error {
	if err := m.store.SetRefreshToken(ctx, username, "", time.Time{}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return m.storeFailure("revoke", err)
	}

	m.invalidateCache(ctx, username)

	m.metrics.Inc(MetricRevoke)
	m.emit(ctx, EventRevoke, "", username, true, nil, nil)
	return nil
}

// RevokeAllSessions clears every account's refresh token. Per-account store
// failures are collected in the result rather than aborting the sweep; the
// returned error is reserved for not being able to list accounts at all.
func (m *Manager) RevokeAllSessions(ctx context.Context) (RevokeAllResult, error) {
	accounts, err := m.store.ListAccounts(ctx, store.Filter{})
	if err != nil {
		return RevokeAllResult{}, m.storeFailure("revoke all", err)
	}

	var result RevokeAllResult
	for _, acct := range accounts {
		if err := m.store.SetRefreshToken(ctx, acct.Username, "", time.Time{}); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Account deleted mid-sweep; nothing left to revoke.
				continue
			}
			result.Failed = append(result.Failed, RevokeFailure{Username: acct.Username, Err: err})
			continue
		}
		m.invalidateCache(ctx, acct.Username)
		result.Revoked++
	}

	m.metrics.Inc(MetricRevoke)
	m.emit(ctx, EventRevokeAll, "", "", len(result.Failed) == 0, nil, map[string]string{
		"revoked": strconv.Itoa(result.Revoked),
		"failed":  strconv.Itoa(len(result.Failed)),
	})
	return result, nil
}

func (m *Manager) invalidateCache(ctx context.Context, username string) {
	if err := m.cache.Invalidate(ctx, username); err != nil {
		m.warn("auth: validation cache invalidate failed for %q: %v", username, err)
	}
}
