package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestAccountLifecycle walks one account through the full credential
// lifecycle end to end on the in-memory store and a real cache backend.
func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shift := env.freeze(t, time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))

	// Register and log in.
	mustRegister(t, env.mgr, "alice")
	id := accountID(t, env.store, "alice")

	pair, err := env.mgr.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// The fresh token validates, twice (second hit rides the cache).
	for i := 0; i < 2; i++ {
		ok, err := env.mgr.ValidateCredential(ctx, pair.Token, "alice")
		if err != nil || !ok {
			t.Fatalf("validation %d: ok=%v err=%v", i, ok, err)
		}
	}

	// Let the access token expire; validation recovers via auto refresh.
	shift(2 * time.Minute)
	env.redis.FastForward(2 * time.Minute)

	ok, err := env.mgr.ValidateCredential(ctx, pair.Token, "alice")
	if err != nil || !ok {
		t.Fatalf("validation after expiry: ok=%v err=%v", ok, err)
	}

	// Explicit refresh rotates the pair; the old refresh token dies.
	rotated, err := env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if _, err := env.mgr.RefreshSession(ctx, pair.Token, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old refresh token still live: %v", err)
	}

	// Revoke; refreshing is dead, the unexpired rotated token is not.
	if err := env.mgr.RevokeSession(ctx, "alice"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, err := env.mgr.RefreshSession(ctx, rotated.Token, rotated.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after revoke: %v", err)
	}
	if ok, _ := env.mgr.ValidateCredential(ctx, rotated.Token, "alice"); !ok {
		t.Fatal("unexpired access token rejected after revoke")
	}

	// Once the rotated token also ages out there is nothing left to refresh.
	shift(2 * time.Minute)
	env.redis.FastForward(2 * time.Minute)
	if ok, _ := env.mgr.ValidateCredential(ctx, rotated.Token, "alice"); ok {
		t.Fatal("expired token accepted with no refresh session")
	}

	// Timed ban, expiry, permanent ban, unban.
	if err := env.mgr.Ban(ctx, id, time.Hour); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if info, _ := env.mgr.CheckBanStatus(ctx, id); !info.Banned {
		t.Fatal("timed ban not in effect")
	}
	shift(2 * time.Hour)
	if info, _ := env.mgr.CheckBanStatus(ctx, id); info.Banned {
		t.Fatal("timed ban did not lift")
	}

	if err := env.mgr.PermanentBan(ctx, id); err != nil {
		t.Fatalf("PermanentBan: %v", err)
	}
	if info, _ := env.mgr.CheckBanStatus(ctx, id); !info.Banned {
		t.Fatal("permanent ban not in effect")
	}
	if err := env.mgr.Unban(ctx, id); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if info, _ := env.mgr.CheckBanStatus(ctx, id); info.Banned {
		t.Fatal("unban did not clear the ban")
	}

	// Life goes on: a fresh login works after the whole ordeal.
	if _, err := env.mgr.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("final Login: %v", err)
	}
}

func TestBuilderRejectsBadSetups(t *testing.T) {
	valid := testConfig(t)

	cases := []struct {
		name  string
		build func() (*Manager, error)
	}{
		{"missing store", func() (*Manager, error) {
			return New().WithConfig(valid).Build()
		}},
		{"missing secret", func() (*Manager, error) {
			cfg := valid
			cfg.JWT.Secret = nil
			return New().WithConfig(cfg).WithStore(newTestStore()).Build()
		}},
		{"short secret", func() (*Manager, error) {
			cfg := valid
			cfg.JWT.Secret = []byte("short")
			return New().WithConfig(cfg).WithStore(newTestStore()).Build()
		}},
		{"zero token validity", func() (*Manager, error) {
			cfg := valid
			cfg.JWT.TokenValidity = 0
			return New().WithConfig(cfg).WithStore(newTestStore()).Build()
		}},
		{"refresh shorter than access", func() (*Manager, error) {
			cfg := valid
			cfg.JWT.RefreshTokenValidity = cfg.JWT.TokenValidity / 2
			return New().WithConfig(cfg).WithStore(newTestStore()).Build()
		}},
		{"check period exceeds validity", func() (*Manager, error) {
			cfg := valid
			cfg.JWT.ValidityCheckPeriod = 2 * cfg.JWT.TokenValidity
			return New().WithConfig(cfg).WithStore(newTestStore()).Build()
		}},
		{"weak password config", func() (*Manager, error) {
			cfg := valid
			cfg.Password.Iterations = 100
			return New().WithConfig(cfg).WithStore(newTestStore()).Build()
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.build(); err == nil {
				t.Fatal("Build accepted an invalid setup")
			}
		})
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig(t)).WithStore(newTestStore())
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build on the same builder succeeded")
	}
}
