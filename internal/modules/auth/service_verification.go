package auth

import (
	"context"
	"errors"

	"github.com/inkwell-app/inkwell-api/internal/otp"
	"github.com/inkwell-app/inkwell-api/internal/ratelimit"
)

// VerifyEmail validates a 6-digit code and marks the user's email as verified.
// The code is single use: a successful verification consumes it.
func (s *service) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Avoid enumeration: an unknown email fails the same way as a bad code.
			return ErrInvalidOTP
		}
		s.logger.Error("verify email: find user failed", "error", err)
		return ErrInternal.WithCause(err)
	}

	if user.EmailVerified {
		// Already verified - idempotent success
		return nil
	}

	if err := s.otps.Verify(ctx, email, otp.PurposeEmailVerification, code); err != nil {
		switch {
		case errors.Is(err, otp.ErrTooManyAttempts):
			return ErrTooManyAttempts
		case errors.Is(err, otp.ErrCodeNotFound), errors.Is(err, otp.ErrInvalidCode):
			return ErrInvalidOTP
		default:
			s.logger.Error("verify email: otp verify failed", "error", err)
			return ErrInternal.WithCause(err)
		}
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("verify email: mark verified failed", "error", err, "user_id", user.ID)
		return ErrInternal.WithCause(err)
	}

	s.logger.Info("email verified", "user_id", user.ID)
	return nil
}

// ResendVerification issues a fresh verification code, overwriting any live
// one and resetting its attempt budget. It hides user enumeration by
// returning nil when the email is unknown or already verified.
func (s *service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	if err := s.checkRateLimit(ctx, ratelimit.ActionOTPResend, email,
		s.config.Auth.ResendMaxAttempts, s.config.Auth.ResendWindowSeconds); err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Hide enumeration
			return nil
		}
		s.logger.Error("resend verification: find user failed", "error", err)
		return ErrInternal.WithCause(err)
	}
	if user.EmailVerified {
		// Already verified, treat as success
		return nil
	}

	return s.issueVerificationCode(ctx, user)
}
