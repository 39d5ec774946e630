package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*ValidationCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(NewRedisStore(rdb)), mr
}

func TestMarkValidThenKnownValid(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if c.IsKnownValid(ctx, "alice", "token-1") {
		t.Fatal("expected miss before MarkValid")
	}

	if err := c.MarkValid(ctx, "alice", "token-1", time.Minute); err != nil {
		t.Fatalf("MarkValid failed: %v", err)
	}

	if !c.IsKnownValid(ctx, "alice", "token-1") {
		t.Fatal("expected hit for cached token")
	}
}

func TestDifferentTokenSameUsernameIsMiss(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.MarkValid(ctx, "alice", "token-1", time.Minute); err != nil {
		t.Fatalf("MarkValid failed: %v", err)
	}

	// A different token for the same username must never ride the old entry.
	if c.IsKnownValid(ctx, "alice", "token-2") {
		t.Fatal("cache validated a different token for the same username")
	}
}

func TestMarkValidOverwrites(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.MarkValid(ctx, "alice", "token-1", time.Minute); err != nil {
		t.Fatalf("MarkValid failed: %v", err)
	}
	if err := c.MarkValid(ctx, "alice", "token-2", time.Minute); err != nil {
		t.Fatalf("MarkValid failed: %v", err)
	}

	if c.IsKnownValid(ctx, "alice", "token-1") {
		t.Fatal("expected old token to be overwritten")
	}
	if !c.IsKnownValid(ctx, "alice", "token-2") {
		t.Fatal("expected new token to be cached")
	}
}

func TestEntryExpiresWithTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.MarkValid(ctx, "alice", "token-1", 30*time.Second); err != nil {
		t.Fatalf("MarkValid failed: %v", err)
	}

	mr.FastForward(31 * time.Second)

	if c.IsKnownValid(ctx, "alice", "token-1") {
		t.Fatal("expected entry to expire with its TTL")
	}
}

func TestInvalidateDropsEntry(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.MarkValid(ctx, "alice", "token-1", time.Minute); err != nil {
		t.Fatalf("MarkValid failed: %v", err)
	}
	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if c.IsKnownValid(ctx, "alice", "token-1") {
		t.Fatal("expected entry to be gone after Invalidate")
	}
}

func TestBackendErrorDegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.MarkValid(ctx, "alice", "token-1", time.Minute); err != nil {
		t.Fatalf("MarkValid failed: %v", err)
	}

	mr.Close()

	// Backend down: never a false accept, only a miss.
	if c.IsKnownValid(ctx, "alice", "token-1") {
		t.Fatal("expected miss when backend is unavailable")
	}
}
