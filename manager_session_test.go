package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRefreshSessionRotates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.mgr, "alice")
	pair, err := env.mgr.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if rotated.Token == pair.Token {
		t.Fatal("refresh returned the same access token")
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh did not rotate the refresh token")
	}

	// The old refresh token is spent.
	if _, err := env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("replayed refresh token: got %v, want ErrInvalidToken", err)
	}

	// The rotated pair keeps working.
	if _, err := env.mgr.RefreshSession(ctx, rotated.Token, rotated.RefreshToken); err != nil {
		t.Fatalf("refresh with rotated pair: %v", err)
	}
}

func TestRefreshSessionAcceptsExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shift := env.freeze(t, time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))

	mustRegister(t, env.mgr, "alice")
	pair, err := env.mgr.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	shift(5 * time.Minute)

	rotated, err := env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshSession with expired access token: %v", err)
	}
	if ok, _ := env.mgr.ValidateCredential(ctx, rotated.Token, "alice"); !ok {
		t.Fatal("rotated token not accepted")
	}
}

func TestRefreshSessionRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.mgr, "alice")
	pair, err := env.mgr.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	cases := []struct {
		name         string
		token        string
		refreshToken string
	}{
		{"garbage access token", "not.a.token", pair.RefreshToken},
		{"wrong refresh token", pair.Token, "bm90IHRoZSByaWdodCB0b2tlbg=="},
		{"empty refresh token", pair.Token, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.mgr.RefreshSession(ctx, tc.token, tc.refreshToken); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("got %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRefreshSessionAfterWindowCloses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shift := env.freeze(t, time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))

	mustRegister(t, env.mgr, "alice")
	pair, err := env.mgr.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	shift(2 * time.Hour)

	if _, err := env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after window closed: got %v, want ErrInvalidToken", err)
	}
}

func TestRevokeSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.mgr, "alice")
	pair, err := env.mgr.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := env.mgr.RevokeSession(ctx, "alice"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}

	// Refreshing is dead.
	if _, err := env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after revoke: got %v, want ErrInvalidToken", err)
	}

	// The unexpired access token still verifies until it ages out.
	if ok, _ := env.mgr.ValidateCredential(ctx, pair.Token, "alice"); !ok {
		t.Fatal("unexpired access token rejected immediately after revoke")
	}
}

func TestRevokeSessionIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.mgr, "alice")

	if err := env.mgr.RevokeSession(ctx, "alice"); err != nil {
		t.Fatalf("revoke with no session: %v", err)
	}
	if err := env.mgr.RevokeSession(ctx, "alice"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := env.mgr.RevokeSession(ctx, "ghost"); err != nil {
		t.Fatalf("revoke unknown username: %v", err)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		mustRegister(t, env.mgr, name)
		if _, err := env.mgr.Login(ctx, name, testPassword); err != nil {
			t.Fatalf("Login(%q): %v", name, err)
		}
	}

	result, err := env.mgr.RevokeAllSessions(ctx)
	if err != nil {
		t.Fatalf("RevokeAllSessions: %v", err)
	}
	if result.Revoked != 3 {
		t.Fatalf("Revoked = %d, want 3", result.Revoked)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failed)
	}

	for _, name := range []string{"alice", "bob", "carol"} {
		stored, _, err := env.store.GetRefreshToken(ctx, name)
		if err != nil {
			t.Fatalf("GetRefreshToken(%q): %v", name, err)
		}
		if stored != "" {
			t.Fatalf("%q still holds a refresh token after revoke all", name)
		}
	}
}

// Concurrent refreshes and revokes race by design; the store must end in a
// consistent state (token and expiry set or cleared together), whichever
// write lands last.
func TestRefreshRevokeRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.mgr, "alice")
	pair, err := env.mgr.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = env.mgr.RevokeSession(ctx, "alice")
		}()
	}
	wg.Wait()

	stored, validTo, err := env.store.GetRefreshToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GetRefreshToken: %v", err)
	}
	if (stored == "") != validTo.IsZero() {
		t.Fatalf("refresh token fields out of sync: token=%q validTo=%v", stored, validTo)
	}
}
