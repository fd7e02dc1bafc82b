package auth

import (
	"context"
	"strings"
	"time"

	"github.com/inkwell-app/inkwell-api/internal/ratelimit"
	"golang.org/x/crypto/bcrypt"
)

// hashPassword uses bcrypt to generate a hash from a plaintext password.
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// checkPasswordHash compares a plaintext password with a bcrypt hash.
func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// normalizeEmail lowercases and trims an email so rate-limit counters and
// lookups agree on the identifier.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkRateLimit runs the fixed-window gate for an action. Store failures are
// fatal to the request (fail closed); a rejected call maps to ErrRateLimited.
//
// The counter is consumed before anything else the flow does, so even
// requests that later fail validation or lookup have paid for the attempt.
func (s *service) checkRateLimit(ctx context.Context, action ratelimit.Action, identifier string, maxAttempts, windowSeconds int) error {
	res, err := s.limiter.Check(ctx, action, identifier, maxAttempts, time.Duration(windowSeconds)*time.Second)
	if err != nil {
		s.logger.Error("rate limit check failed", "action", action, "error", err)
		return ErrInternal.WithCause(err)
	}
	if !res.Allowed {
		return ErrRateLimited
	}
	return nil
}
