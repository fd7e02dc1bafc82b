package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the backing store cannot be reached.
// Callers treat this as fatal for the request (fail closed).
var ErrRedisUnavailable = errors.New("rate limit redis unavailable")

// Action identifies the operation being limited. Each action gets its own
// counter namespace per identifier.
type Action string

const (
	ActionLogin         Action = "login"
	ActionRegister      Action = "register"
	ActionPasswordReset Action = "password_reset"
	ActionOTPResend     Action = "otp_resend"
)

// Result reports the outcome of a single rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
}

// Limiter enforces fixed-window rate limits per (action, identifier) pair
// using Redis counters.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Check atomically increments the counter for the (action, identifier) pair
// and reports whether the call is within budget.
//
// Every call consumes quota, including calls that end up rejected; probing
// is never free. The window TTL is set only on the first increment, so all
// later hits share the same deadline (fixed window, never a rolling one).
func (l *Limiter) Check(ctx context.Context, action Action, identifier string, maxAttempts int, window time.Duration) (Result, error) {
	key := counterKey(action, identifier)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// First hit in the window owns the TTL. Concurrent first hits may both
	// land here; both set the same bounded value, so the race is harmless.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	remaining := maxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(maxAttempts),
		Remaining: remaining,
	}, nil
}

func counterKey(action Action, identifier string) string {
	return "ratelimit:" + string(action) + ":" + identifier
}
