package auth

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell-app/inkwell-api/internal/notification"
	"github.com/inkwell-app/inkwell-api/internal/notification/templates"
	"github.com/inkwell-app/inkwell-api/internal/ratelimit"
	"github.com/inkwell-app/inkwell-api/internal/token"
)

// RequestPasswordReset issues a single-use reset token and emails a reset link.
//
// Whether or not the account exists, the caller sees the same success: an
// unknown email returns nil without creating anything, so the response gives
// no enumeration signal. Only the rate limit can surface an error.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	if err := s.checkRateLimit(ctx, ratelimit.ActionPasswordReset, email,
		s.config.Auth.ResetMaxAttempts, s.config.Auth.ResetWindowSeconds); err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("password reset requested for non-existent email", "email", email)
			return nil
		}
		s.logger.Error("reset request: find user failed", "error", err)
		return ErrInternal.WithCause(err)
	}

	resetTTL := time.Duration(s.config.Auth.ResetTokenTTLSeconds) * time.Second
	resetToken, err := s.tokens.Create(ctx, user.ID, token.TypePasswordReset, resetTTL)
	if err != nil {
		s.logger.Error("reset request: create token failed", "error", err, "user_id", user.ID)
		return ErrInternal.WithCause(err)
	}

	// Audit mirror, log-and-continue.
	if err := s.repo.InsertPasswordResetAudit(ctx, &PasswordResetAudit{
		UserID:    user.ID,
		Token:     resetToken,
		Used:      false,
		ExpiresAt: time.Now().Add(resetTTL),
	}); err != nil {
		s.logger.Error("reset request: audit write failed", "error", err, "user_id", user.ID)
	}

	go func() {
		data := templates.PasswordResetData{
			Name:           user.Name,
			ResetURL:       s.config.Server.BaseURL + "/reset-password?token=" + resetToken,
			ExpiresMinutes: s.config.Auth.ResetTokenTTLSeconds / 60,
			SupportEmail:   s.config.SMTP.From,
		}
		if err := notification.SendTemplate(context.WithoutCancel(ctx), s.notifier, s.renderer, templates.PasswordReset,
			user.Email, []notification.Channel{notification.ChannelEmail}, notification.PriorityHigh, data); err != nil {
			s.logger.Error("failed to send password reset email", "error", err, "user_id", user.ID)
		}
	}()

	s.logger.Info("password reset token issued", "user_id", user.ID)
	return nil
}

// ResetPassword redeems a single-use reset token, updates the password, and
// revokes every session the user holds.
func (s *service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return ErrInvalidResetToken
	}

	userID, err := s.tokens.Verify(ctx, resetToken, token.TypePasswordReset)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrAlreadyUsed):
			return ErrResetTokenUsed
		case errors.Is(err, token.ErrNotFound), errors.Is(err, token.ErrExpired):
			// Forged and expired-by-race collapse into the same answer.
			return ErrInvalidResetToken
		default:
			s.logger.Error("reset: token verify failed", "error", err)
			return ErrInternal.WithCause(err)
		}
	}

	newPasswordHash, err := hashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password during reset", "error", err)
		return ErrInternal.WithCause(err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, newPasswordHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Token subject no longer exists; treat as an invalid token.
			return ErrInvalidResetToken
		}
		s.logger.Error("failed to update user password after reset", "error", err)
		return ErrInternal.WithCause(err)
	}

	// The password is already changed; the remaining steps must not undo that.
	if err := s.tokens.MarkUsed(ctx, resetToken, token.TypePasswordReset); err != nil {
		s.logger.Error("reset: mark token used failed", "error", err, "user_id", userID)
	}
	if err := s.repo.MarkPasswordResetAuditUsed(ctx, resetToken); err != nil {
		s.logger.Error("reset: audit update failed", "error", err, "user_id", userID)
	}

	// Revoke every live session so stolen cookies die with the old password.
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Error("reset: session revocation failed", "error", err, "user_id", userID)
	}
	if err := s.repo.DeleteSessionAuditByUser(ctx, userID); err != nil {
		s.logger.Error("reset: session audit cleanup failed", "error", err, "user_id", userID)
	}

	if user, err := s.repo.FindByID(ctx, userID); err == nil {
		go func() {
			data := templates.PasswordChangedData{
				Name:         user.Name,
				SupportEmail: s.config.SMTP.From,
			}
			if err := notification.SendTemplate(context.WithoutCancel(ctx), s.notifier, s.renderer, templates.PasswordChanged,
				user.Email, []notification.Channel{notification.ChannelEmail}, notification.PriorityMedium, data); err != nil {
				s.logger.Error("failed to send password changed email", "error", err, "user_id", user.ID)
			}
		}()
	}

	s.logger.Info("user password has been reset successfully", "user_id", userID)
	return nil
}
