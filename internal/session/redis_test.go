package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newProviderTest(t *testing.T) (Provider, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisProvider(rdb), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	provider, _, done := newProviderTest(t)
	defer done()
	ctx := context.Background()

	token, err := provider.Create(ctx, "u1", "a@x.com", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(token))
	}

	sess, err := provider.Get(ctx, token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.UserID != "u1" || sess.Email != "a@x.com" {
		t.Fatalf("session = %+v, want userId u1 / email a@x.com", sess)
	}
	if sess.ExpiresAt <= sess.CreatedAt {
		t.Fatalf("expiresAt %d should be after createdAt %d", sess.ExpiresAt, sess.CreatedAt)
	}
}

func TestGetUnknownToken(t *testing.T) {
	provider, _, done := newProviderTest(t)
	defer done()

	_, err := provider.Get(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("get unknown = %v, want ErrNotFound", err)
	}
}

func TestGetLazilyDeletesExpiredSession(t *testing.T) {
	provider, mr, done := newProviderTest(t)
	defer done()
	ctx := context.Background()

	// Plant an already-expired session that TTL eviction has not caught yet.
	now := time.Now()
	stale, err := json.Marshal(Session{
		UserID:    "u1",
		Email:     "a@x.com",
		CreatedAt: now.Add(-2 * time.Hour).UnixMilli(),
		ExpiresAt: now.Add(-time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	token := "aabbccdd"
	if err := mr.Set("session:"+token, string(stale)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = provider.Get(ctx, token)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("get stale = %v, want ErrNotFound", err)
	}

	// The key is gone on a follow-up check.
	if mr.Exists("session:" + token) {
		t.Fatal("stale session key should have been deleted")
	}
}

func TestDeleteIsIdempotentAndCleansIndex(t *testing.T) {
	provider, mr, done := newProviderTest(t)
	defer done()
	ctx := context.Background()

	token, err := provider.Create(ctx, "u1", "a@x.com", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := provider.Delete(ctx, token); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := provider.Delete(ctx, token); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	if _, err := provider.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted = %v, want ErrNotFound", err)
	}

	members, err := mr.SMembers("user:u1:sessions")
	if err == nil && len(members) != 0 {
		t.Fatalf("index should be empty, got %v", members)
	}
}

func TestDeleteAllForUserRevokesEverySession(t *testing.T) {
	provider, _, done := newProviderTest(t)
	defer done()
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		token, err := provider.Create(ctx, "u1", "a@x.com", time.Hour)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		tokens = append(tokens, token)
	}

	// Another user's session must survive.
	other, err := provider.Create(ctx, "u2", "b@x.com", time.Hour)
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	if err := provider.DeleteAllForUser(ctx, "u1"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for _, token := range tokens {
		if _, err := provider.Get(ctx, token); !errors.Is(err, ErrNotFound) {
			t.Fatalf("get revoked = %v, want ErrNotFound", err)
		}
	}

	if _, err := provider.Get(ctx, other); err != nil {
		t.Fatalf("other user's session: %v", err)
	}
}

func TestRefreshExtendsLiveSession(t *testing.T) {
	provider, mr, done := newProviderTest(t)
	defer done()
	ctx := context.Background()

	token, err := provider.Create(ctx, "u1", "a@x.com", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := provider.Refresh(ctx, token, 2*time.Hour)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !ok {
		t.Fatal("refresh of live session should report true")
	}

	if ttl := mr.TTL("session:" + token); ttl <= time.Hour {
		t.Fatalf("ttl after refresh = %v, want > 1h", ttl)
	}

	sess, err := provider.Get(ctx, token)
	if err != nil {
		t.Fatalf("get after refresh: %v", err)
	}
	if remaining := sess.ExpiresAt - time.Now().UnixMilli(); remaining < (90 * time.Minute).Milliseconds() {
		t.Fatalf("recorded expiry only %dms out, want ~2h", remaining)
	}
}

func TestRefreshDoesNotReviveExpiredSession(t *testing.T) {
	provider, mr, done := newProviderTest(t)
	defer done()
	ctx := context.Background()

	// Plant an already-expired session that TTL eviction has not caught yet.
	now := time.Now()
	stale, err := json.Marshal(Session{
		UserID:    "u1",
		Email:     "a@x.com",
		CreatedAt: now.Add(-2 * time.Hour).UnixMilli(),
		ExpiresAt: now.Add(-time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	token := "aabbccdd"
	if err := mr.Set("session:"+token, string(stale)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := provider.Refresh(ctx, token, time.Hour)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ok {
		t.Fatal("refresh of expired session should report false")
	}

	// The dead record is removed, not re-armed.
	if mr.Exists("session:" + token) {
		t.Fatal("stale session key should have been deleted")
	}
	if _, err := provider.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after refresh = %v, want ErrNotFound", err)
	}
}

func TestRefreshGoneSessionIsNoOp(t *testing.T) {
	provider, _, done := newProviderTest(t)
	defer done()

	ok, err := provider.Refresh(context.Background(), "deadbeef", time.Hour)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ok {
		t.Fatal("refresh of missing session should report false")
	}
}

func TestSessionExpiresByTTL(t *testing.T) {
	provider, mr, done := newProviderTest(t)
	defer done()
	ctx := context.Background()

	token, err := provider.Create(ctx, "u1", "a@x.com", time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := provider.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after ttl = %v, want ErrNotFound", err)
	}
}
