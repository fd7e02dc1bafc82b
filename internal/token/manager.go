package token

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

// Type namespaces tokens by purpose. The type is part of the storage key, so
// a token redeemed for one purpose can never be replayed against another,
// even if the opaque values were to collide.
type Type string

const (
	TypePasswordReset     Type = "password_reset"
	TypeEmailVerification Type = "email_verification"
	TypeMagicLink         Type = "magic_link"
)

var (
	// ErrNotFound is returned for tokens that are absent from the store.
	// Expired-and-evicted and never-issued are indistinguishable.
	ErrNotFound = errors.New("token expired or not found")

	// ErrAlreadyUsed is returned for tokens that were redeemed but have not
	// yet been evicted. Checked before expiry so a replay gets the honest cause.
	ErrAlreadyUsed = errors.New("token already used")

	// ErrExpired is returned for tokens present in the store but past their
	// recorded expiry.
	ErrExpired = errors.New("token expired")

	// ErrRedisUnavailable is returned when the backing store cannot be reached.
	ErrRedisUnavailable = errors.New("token redis unavailable")
)

// Record is the stored state of a single-use bearer token.
type Record struct {
	UserID    string `json:"userId"`
	Type      Type   `json:"type"`
	CreatedAt int64  `json:"createdAt"` // epoch millis
	ExpiresAt int64  `json:"expiresAt"` // epoch millis
	Used      bool   `json:"used"`
}

// Manager issues and redeems single-use opaque bearer tokens in Redis.
type Manager struct {
	redis redis.UniversalClient
}

// NewManager creates a token [Manager] backed by the given Redis client.
func NewManager(redisClient redis.UniversalClient) *Manager {
	return &Manager{redis: redisClient}
}

// Create issues a 256-bit random hex token for the user, stores its record
// with the given TTL, and adds it to the user's per-type token index.
//
// The index write is advisory and not atomic with the primary record; a crash
// between the two can leave either side alone. Verification never consults
// the index.
func (m *Manager) Create(ctx context.Context, userID string, typ Type, ttl time.Duration) (string, error) {
	tok, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := Record{
		UserID:    userID,
		Type:      typ,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
		Used:      false,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal token record: %w", err)
	}

	if err := m.redis.Set(ctx, tokenKey(typ, tok), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Advisory index, best effort.
	if err := m.redis.SAdd(ctx, userTokensKey(userID, typ), tok).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := m.redis.Expire(ctx, userTokensKey(userID, typ), ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return tok, nil
}

// Verify checks that the token exists, has not been redeemed, and has not
// expired, returning the subject user ID. Already-used is reported before
// expiry so a used-but-not-yet-evicted token gets the correct cause. A token
// past its recorded expiry is deleted on sight.
func (m *Manager) Verify(ctx context.Context, tok string, typ Type) (string, error) {
	record, err := m.get(ctx, tok, typ)
	if err != nil {
		return "", err
	}

	if record.Used {
		return "", ErrAlreadyUsed
	}

	if record.ExpiresAt < time.Now().UnixMilli() {
		// Store-level TTL should have evicted this already; clean up.
		if err := m.redis.Del(ctx, tokenKey(typ, tok)).Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return "", ErrExpired
	}

	return record.UserID, nil
}

// MarkUsed flips the token's used flag, re-persisting the record with its
// remaining TTL so the used marker never outlives or extends the original
// expiry window.
func (m *Manager) MarkUsed(ctx context.Context, tok string, typ Type) error {
	record, err := m.get(ctx, tok, typ)
	if err != nil {
		return err
	}

	remaining, err := m.redis.TTL(ctx, tokenKey(typ, tok)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record.Used = true
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}

	if remaining <= 0 {
		// No TTL recorded; keep whatever expiry the key already has.
		remaining = redis.KeepTTL
	}
	if err := m.redis.Set(ctx, tokenKey(typ, tok), data, remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Delete removes the token record and its index entry.
func (m *Manager) Delete(ctx context.Context, tok string, typ Type) error {
	record, err := m.get(ctx, tok, typ)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if err := m.redis.SRem(ctx, userTokensKey(record.UserID, typ), tok).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := m.redis.Del(ctx, tokenKey(typ, tok)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (m *Manager) get(ctx context.Context, tok string, typ Type) (*Record, error) {
	data, err := m.redis.Get(ctx, tokenKey(typ, tok)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal token record: %w", err)
	}

	return &record, nil
}

// newOpaqueToken returns 256 bits of randomness as a hex string.
func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func tokenKey(typ Type, tok string) string {
	return "token:" + string(typ) + ":" + tok
}

func userTokensKey(userID string, typ Type) string {
	return "user:" + userID + ":tokens:" + string(typ)
}
