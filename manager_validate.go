package auth

import (
	"context"
	"errors"

	"github.com/flamma/auth/jwt"
	"github.com/flamma/auth/store"
)

// maxRefreshAttempts bounds how many times ValidateCredential will try to
// refresh an expired token before giving up. A freshly issued token that
// still classifies as expired indicates a misconfigured validity window,
// not a transient condition, so one attempt is enough.
const maxRefreshAttempts = 1

// ValidateCredential reports whether the token is currently acceptable for
// the username. A token recently found valid is trusted from the cache
// without re-verification. An expired token is refreshed internally, at
// most once, when the account still holds an unexpired refresh token; the
// stored refresh token is not rotated by this path.
func (m *Manager) ValidateCredential(ctx context.Context, token, username string) (bool, error) {
	if m.cache.IsKnownValid(ctx, username, token) {
		m.metrics.Inc(MetricValidateCacheHit)
		return true, nil
	}

	candidate := token
	for attempt := 0; ; attempt++ {
		switch m.tokens.Classify(candidate, username) {
		case jwt.StatusValid:
			m.cacheValid(ctx, username, candidate)
			m.metrics.Inc(MetricValidateValid)
			m.emit(ctx, EventValidate, "", username, true, nil, nil)
			return true, nil

		case jwt.StatusExpired:
			if attempt >= maxRefreshAttempts {
				m.metrics.Inc(MetricValidateInvalid)
				m.emit(ctx, EventValidate, "", username, false, nil, map[string]string{"reason": "expired after refresh"})
				return false, nil
			}

			refreshed, err := m.autoRefresh(ctx, candidate, username)
			if err != nil {
				return false, err
			}
			if refreshed == "" {
				m.metrics.Inc(MetricValidateInvalid)
				m.emit(ctx, EventValidate, "", username, false, nil, map[string]string{"reason": "no usable refresh token"})
				return false, nil
			}
			candidate = refreshed

		default:
			m.metrics.Inc(MetricValidateInvalid)
			m.emit(ctx, EventValidate, "", username, false, nil, map[string]string{"reason": "invalid token"})
			return false, nil
		}
	}
}

// autoRefresh re-issues an access token for an expired one when the account
// holds a stored, unexpired refresh token. Returns "" when the session is
// not refreshable; errors are infrastructure failures only.
func (m *Manager) autoRefresh(ctx context.Context, token, username string) (string, error) {
	stored, validTo, err := m.store.GetRefreshToken(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", m.storeFailure("validate", err)
	}
	if stored == "" || !validTo.After(m.now()) {
		return "", nil
	}

	pair, err := m.tokens.Refresh(token)
	if err != nil {
		// Signature no longer verifies; treat as not refreshable.
		return "", nil
	}

	m.metrics.Inc(MetricValidateAutoRefresh)
	m.emit(ctx, EventAutoRefresh, "", username, true, nil, nil)
	return pair.Token, nil
}

func (m *Manager) cacheValid(ctx context.Context, username, token string) {
	if err := m.cache.MarkValid(ctx, username, token, m.config.JWT.ValidityCheckPeriod); err != nil {
		m.warn("auth: validation cache write failed for %q: %v", username, err)
	}
}
