package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the session lifetime used when a caller passes zero.
const DefaultTTL = 7 * 24 * time.Hour

// Session is the state stored against an opaque session token.
type Session struct {
	UserID    string            `json:"userId"`
	Email     string            `json:"email"`
	CreatedAt int64             `json:"createdAt"` // epoch millis
	ExpiresAt int64             `json:"expiresAt"` // epoch millis
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Provider defines operations for managing opaque auth sessions.
//
// Tokens are opaque 256-bit random hex strings; nothing about a session is
// derivable from its token. The per-user reverse index exists only to make
// bulk revocation possible and is never consulted on the lookup path: the
// primary session key is authoritative.
type Provider interface {
	// Create issues a new session for the user and returns the opaque token.
	// A zero ttl means DefaultTTL.
	Create(ctx context.Context, userID, email string, ttl time.Duration) (string, error)

	// Get returns the session for the token, or ErrNotFound if it is absent
	// or past its expiry. Stale entries are deleted on sight.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete revokes a single session. It is idempotent.
	Delete(ctx context.Context, token string) error

	// DeleteAllForUser revokes every session in the user's reverse index
	// and drops the index itself.
	DeleteAllForUser(ctx context.Context, userID string) error

	// Refresh extends a live session's expiry in place. It reports false
	// when the session is already gone or past its recorded expiry; stale
	// entries are deleted, never revived.
	Refresh(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// NewRedisProvider returns a Redis-backed Provider implementation.
// Implemented in redis.go.
func NewRedisProvider(redisClient redis.UniversalClient) Provider {
	return newRedisProvider(redisClient)
}
