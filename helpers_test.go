package auth

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/flamma/auth/store"
)

const (
	testLocationID = "f9168c5e-ceb2-4faa-b6bf-329bf39fa1e4"
	testPassword   = "Sup3r$ecret"
)

func testConfig(tb testing.TB) Config {
	tb.Helper()

	cfg := defaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("s"), 32)
	cfg.JWT.TokenValidity = time.Minute
	cfg.JWT.RefreshTokenValidity = time.Hour
	cfg.JWT.ValidityCheckPeriod = 10 * time.Second
	// Keep hashing cheap in tests; production minimum still applies.
	cfg.Password.Iterations = 10_000
	return cfg
}

type testEnv struct {
	mgr   *Manager
	store *store.Memory
	redis *miniredis.Miniredis
}

func newTestEnv(tb testing.TB, mutate ...func(*Builder)) *testEnv {
	tb.Helper()

	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })

	st := store.NewMemory()

	b := New().
		WithConfig(testConfig(tb)).
		WithStore(st).
		WithRedis(client).
		WithWarnLogger(func(string, ...any) {})
	for _, fn := range mutate {
		fn(b)
	}

	mgr, err := b.Build()
	if err != nil {
		tb.Fatalf("Build: %v", err)
	}
	tb.Cleanup(mgr.Close)

	return &testEnv{mgr: mgr, store: st, redis: mr}
}

// freeze pins the manager's clock, including the token manager's, and
// returns a shift function for moving it.
func (e *testEnv) freeze(tb testing.TB, at time.Time) func(d time.Duration) {
	tb.Helper()

	current := at
	now := func() time.Time { return current }
	e.mgr.now = now
	e.mgr.tokens = e.mgr.tokens.WithTimeSource(now)

	return func(d time.Duration) { current = current.Add(d) }
}

func newTestStore() *store.Memory {
	return store.NewMemory()
}

func registerRequest(username string) RegisterRequest {
	return RegisterRequest{
		Username:          username,
		Password:          testPassword,
		FirstName:         "Alice",
		LastName:          "Liddell",
		PrimaryLocationID: testLocationID,
		BirthDate:         time.Date(1990, time.May, 4, 0, 0, 0, 0, time.UTC),
	}
}

func mustRegister(tb testing.TB, mgr *Manager, username string) {
	tb.Helper()
	if err := mgr.Register(context.Background(), registerRequest(username)); err != nil {
		tb.Fatalf("Register(%q): %v", username, err)
	}
}

func accountID(tb testing.TB, st *store.Memory, username string) string {
	tb.Helper()
	acct, err := st.FindByUsername(context.Background(), username)
	if err != nil {
		tb.Fatalf("FindByUsername(%q): %v", username, err)
	}
	return acct.ID
}
