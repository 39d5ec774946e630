// Package cache memoizes "this token is currently valid" outcomes so repeated
// validations of the same token skip redundant signature and claim checks.
//
// The cache is best-effort and non-authoritative: on a miss, an expired entry,
// a mismatching token, or any backend error the caller falls back to full
// validation. Losing the cache never causes an incorrect accept or reject,
// only extra work.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss signals an absent key. Backing stores translate their own not-found
// markers into it so callers never deal with nil ambiguity.
var ErrMiss = errors.New("cache miss")

// keyPrefix matches the token-memo key layout: user_token:<username>.
const keyPrefix = "user_token:"

// Store is the key-value backend with per-key TTL the cache runs on.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client. The client's lifecycle stays with the caller.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// ValidationCache holds at most one known-valid token per username. A nil
// ValidationCache is valid and behaves as a cache that never hits.
type ValidationCache struct {
	store Store
}

// New returns a ValidationCache over store.
func New(store Store) *ValidationCache {
	return &ValidationCache{store: store}
}

// IsKnownValid reports whether a prior validation cached exactly this token
// for username and the entry has not expired.
//
// The token comparison is what makes the cache safe across refreshes: a new
// token for the same username never piggybacks on the old token's entry.
func (c *ValidationCache) IsKnownValid(ctx context.Context, username, token string) bool {
	if c == nil {
		return false
	}
	cached, err := c.store.Get(ctx, keyPrefix+username)
	if err != nil {
		return false
	}
	return cached == token
}

// MarkValid stores token under username with the given TTL, overwriting any
// prior entry for that username.
func (c *ValidationCache) MarkValid(ctx context.Context, username, token string, ttl time.Duration) error {
	if c == nil || ttl <= 0 {
		return nil
	}
	return c.store.Set(ctx, keyPrefix+username, token, ttl)
}

// Invalidate drops the username's entry. Used on refresh-token rotation so a
// superseded token never lingers as known-valid.
func (c *ValidationCache) Invalidate(ctx context.Context, username string) error {
	if c == nil {
		return nil
	}
	return c.store.Del(ctx, keyPrefix+username)
}
