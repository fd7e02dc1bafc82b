package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned for absent or expired sessions.
	ErrNotFound = errors.New("session not found")

	// ErrRedisUnavailable is returned when the backing store cannot be reached.
	ErrRedisUnavailable = errors.New("session redis unavailable")
)

type redisProvider struct {
	redis redis.UniversalClient
}

func newRedisProvider(redisClient redis.UniversalClient) *redisProvider {
	return &redisProvider{redis: redisClient}
}

func (p *redisProvider) Create(ctx context.Context, userID, email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	token, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	sess := Session{
		UserID:    userID,
		Email:     email,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	if err := p.redis.Set(ctx, sessionKey(token), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Advisory reverse index for bulk revocation. Not atomic with the primary
	// write; its TTL is pushed forward on every create so the index never
	// outlives the longest session.
	if err := p.redis.SAdd(ctx, userSessionsKey(userID), token).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := p.redis.Expire(ctx, userSessionsKey(userID), ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return token, nil
}

func (p *redisProvider) Get(ctx context.Context, token string) (*Session, error) {
	data, err := p.redis.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	// Lazy expiry on read, defensive against store TTL granularity and clock
	// skew. The stale key is removed so a follow-up lookup misses entirely.
	if sess.ExpiresAt <= time.Now().UnixMilli() {
		if err := p.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return &sess, nil
}

func (p *redisProvider) Delete(ctx context.Context, token string) error {
	// The session key is addressed only by the raw token. The record is read
	// just to find the owner's index entry.
	data, err := p.redis.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err == nil && sess.UserID != "" {
		if err := p.redis.SRem(ctx, userSessionsKey(sess.UserID), token).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if err := p.redis.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (p *redisProvider) DeleteAllForUser(ctx context.Context, userID string) error {
	tokens, err := p.redis.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, token := range tokens {
		if err := p.redis.Del(ctx, sessionKey(token)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if err := p.redis.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (p *redisProvider) Refresh(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := p.redis.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return false, fmt.Errorf("unmarshal session: %w", err)
	}

	// Same lazy-expiry rule as Get: a stale record that TTL eviction has not
	// caught yet is dead, not a candidate for revival.
	if sess.ExpiresAt <= time.Now().UnixMilli() {
		if err := p.Delete(ctx, token); err != nil {
			return false, err
		}
		return false, nil
	}

	sess.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	updated, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("marshal session: %w", err)
	}

	if err := p.redis.Set(ctx, sessionKey(token), updated, ttl).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Push the advisory index forward alongside the session.
	if err := p.redis.Expire(ctx, userSessionsKey(sess.UserID), ttl).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return true, nil
}

// newOpaqueToken returns 256 bits of randomness as a hex string.
func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func sessionKey(token string) string {
	return "session:" + token
}

func userSessionsKey(userID string) string {
	return "user:" + userID + ":sessions"
}
