package auth

import (
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flamma/auth/cache"
	"github.com/flamma/auth/jwt"
	"github.com/flamma/auth/password"
	"github.com/flamma/auth/store"
)

// Builder assembles a Manager. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config

	store      store.AccountStore
	redis      *redis.Client
	cacheStore cache.Store

	auditSink AuditSink
	metrics   bool
	warn      func(format string, args ...any)

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config:  defaultConfig(),
		metrics: true,
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account store. Required.
func (b *Builder) WithStore(st store.AccountStore) *Builder {
	b.store = st
	return b
}

// WithRedis backs the validation cache with a Redis client.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCacheStore backs the validation cache with an arbitrary KV store.
// Takes precedence over WithRedis.
func (b *Builder) WithCacheStore(cs cache.Store) *Builder {
	b.cacheStore = cs
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metrics = enabled
	return b
}

// WithWarnLogger replaces the default warning logger. The Manager emits
// warnings for degraded best-effort paths such as cache failures.
func (b *Builder) WithWarnLogger(warn func(format string, args ...any)) *Builder {
	b.warn = warn
	return b
}

// Build validates the configuration, wires the subsystems and returns a
// ready Manager.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("auth: account store is required, call WithStore")
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:          b.config.JWT.Secret,
		Issuer:          b.config.JWT.Issuer,
		Audience:        b.config.JWT.Audience,
		AccessValidity:  b.config.JWT.TokenValidity,
		RefreshValidity: b.config.JWT.RefreshTokenValidity,
	})
	if err != nil {
		return nil, err
	}

	var vc *cache.ValidationCache
	switch {
	case b.cacheStore != nil:
		vc = cache.New(b.cacheStore)
	case b.redis != nil:
		vc = cache.New(cache.NewRedisStore(b.redis))
	}

	warn := b.warn
	if warn == nil {
		warn = log.Printf
	}

	b.built = true

	return &Manager{
		config:  b.config,
		store:   b.store,
		cache:   vc,
		tokens:  tokens,
		hasher:  hasher,
		audit:   newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics: NewMetrics(b.metrics),
		now:     time.Now,
		warn:    warn,
	}, nil
}
