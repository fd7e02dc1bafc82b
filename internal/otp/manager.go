package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purpose identifies why a one-time code was issued. A code created for one
// purpose can never verify against another.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeLogin             Purpose = "login"
)

const (
	codeDigits = 6

	// maxVerifyAttempts bounds brute force to 5 guesses out of 1,000,000 per
	// issued code, independent of how long the code itself lives.
	maxVerifyAttempts = 5
)

var (
	// ErrCodeNotFound is returned when no live code exists for the
	// (purpose, identifier) pair. Expired and never-issued are indistinguishable.
	ErrCodeNotFound = errors.New("otp expired or not found")

	// ErrInvalidCode is returned on a mismatch. It carries no hint about
	// how close the candidate was.
	ErrInvalidCode = errors.New("invalid otp")

	// ErrTooManyAttempts is returned once the verification attempt budget is
	// exhausted, even if the stored code is still live.
	ErrTooManyAttempts = errors.New("too many otp attempts")

	// ErrRedisUnavailable is returned when the backing store cannot be reached.
	ErrRedisUnavailable = errors.New("otp redis unavailable")
)

// Manager issues and verifies short-lived 6-digit one-time codes keyed by
// (purpose, identifier) in Redis.
type Manager struct {
	redis redis.UniversalClient
}

// NewManager creates an OTP [Manager] backed by the given Redis client.
func NewManager(redisClient redis.UniversalClient) *Manager {
	return &Manager{redis: redisClient}
}

// Create generates a uniformly random zero-padded 6-digit code and stores it
// with the given TTL, resetting the attempt counter to zero with a matching
// TTL. Any existing live code for the pair is overwritten.
func (m *Manager) Create(ctx context.Context, identifier string, purpose Purpose, ttl time.Duration) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, codeKey(purpose, identifier), code, ttl)
		pipe.Set(ctx, attemptsKey(identifier), 0, ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return code, nil
}

// Verify checks a candidate code against the stored one.
//
// The attempt cap is checked first and does not itself consume an attempt;
// once attempts reach the cap, every call fails with ErrTooManyAttempts for
// the remainder of the code's life, correct code or not. Otherwise each
// candidate consumes one attempt before comparison. A match deletes both the
// code and the counter (single use); a mismatch returns ErrInvalidCode and
// leaves the stored code in place.
func (m *Manager) Verify(ctx context.Context, identifier string, purpose Purpose, candidate string) error {
	attempts, err := m.redis.Get(ctx, attemptsKey(identifier)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if attempts >= maxVerifyAttempts {
		return ErrTooManyAttempts
	}

	stored, err := m.redis.Get(ctx, codeKey(purpose, identifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := m.redis.Incr(ctx, attemptsKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if candidate != stored {
		return ErrInvalidCode
	}

	if err := m.redis.Del(ctx, codeKey(purpose, identifier), attemptsKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Delete removes the code and attempt counter for the pair, e.g. before a resend.
func (m *Manager) Delete(ctx context.Context, identifier string, purpose Purpose) error {
	if err := m.redis.Del(ctx, codeKey(purpose, identifier), attemptsKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// generateCode draws a uniform value in [0, 10^6) so every zero-padded
// 6-digit string is equally likely.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

func codeKey(purpose Purpose, identifier string) string {
	return "otp:" + string(purpose) + ":" + identifier
}

func attemptsKey(identifier string) string {
	return "otp:attempts:" + identifier
}
