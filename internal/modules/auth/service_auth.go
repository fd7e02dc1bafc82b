package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-app/inkwell-api/internal/notification"
	"github.com/inkwell-app/inkwell-api/internal/notification/templates"
	"github.com/inkwell-app/inkwell-api/internal/otp"
	"github.com/inkwell-app/inkwell-api/internal/ratelimit"
)

// Register handles the business logic for creating a new user.
// The new account starts unverified; a 6-digit code is issued and emailed
// so the user can confirm their address.
func (s *service) Register(ctx context.Context, name, email, password string) (*User, error) {
	email = normalizeEmail(email)

	if err := s.checkRateLimit(ctx, ratelimit.ActionRegister, email,
		s.config.Auth.RegisterMaxAttempts, s.config.Auth.RegisterWindowSeconds); err != nil {
		return nil, err
	}

	// Check if a user with the given email already exists.
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	// We expect a "not found" error, so if it's any other error, we return it.
	if !errors.Is(err, ErrNotFound) {
		s.logger.Error("register: find user failed", "error", err)
		return nil, ErrInternal.WithCause(err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, ErrInternal.WithCause(err)
	}

	newUserID, err := uuid.NewV7()
	if err != nil {
		return nil, ErrInternal.WithCause(err)
	}
	newUser := &User{
		ID:            newUserID.String(),
		Name:          name,
		Email:         email,
		PasswordHash:  hashedPassword,
		EmailVerified: false, // Email is not verified upon registration
	}

	if err := s.repo.Create(ctx, newUser); err != nil {
		s.logger.Error("failed to create user", "error", err)
		return nil, ErrInternal.WithCause(err)
	}

	if err := s.issueVerificationCode(ctx, newUser); err != nil {
		return nil, err
	}

	s.logger.Info("user registered successfully", "user_id", newUser.ID)
	return newUser, nil
}

// Login handles the business logic for authenticating a user and issuing a session.
func (s *service) Login(ctx context.Context, email, password, userAgent, ip string) (*User, string, error) {
	email = normalizeEmail(email)

	if err := s.checkRateLimit(ctx, ratelimit.ActionLogin, email,
		s.config.Auth.LoginMaxAttempts, s.config.Auth.LoginWindowSeconds); err != nil {
		return nil, "", err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Use a generic error to avoid telling attackers that the email exists.
			return nil, "", ErrInvalidCredentials
		}
		s.logger.Error("failed to find user by email", "error", err)
		return nil, "", ErrInternal.WithCause(err)
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, "", ErrEmailNotVerified
	}

	sessionTTL := time.Duration(s.config.Auth.SessionTTLSeconds) * time.Second
	sessionToken, err := s.sessions.Create(ctx, user.ID, user.Email, sessionTTL)
	if err != nil {
		s.logger.Error("failed to create session", "error", err, "user_id", user.ID)
		return nil, "", ErrInternal.WithCause(err)
	}

	// Audit mirror, log-and-continue: a failed audit write never fails the login.
	if err := s.repo.InsertSessionAudit(ctx, &SessionAudit{
		UserID:       user.ID,
		SessionToken: sessionToken,
		UserAgent:    userAgent,
		IPAddress:    ip,
		ExpiresAt:    time.Now().Add(sessionTTL),
	}); err != nil {
		s.logger.Error("failed to write session audit", "error", err, "user_id", user.ID)
	}

	s.logger.Info("user logged in successfully", "user_id", user.ID)
	return user, sessionToken, nil
}

// Logout revokes a single session. It is idempotent: revoking a session that
// is already gone is a success.
func (s *service) Logout(ctx context.Context, sessionToken string) error {
	if err := s.sessions.Delete(ctx, sessionToken); err != nil {
		s.logger.Error("failed to delete session", "error", err)
		return ErrInternal.WithCause(err)
	}

	if err := s.repo.DeleteSessionAudit(ctx, sessionToken); err != nil {
		s.logger.Error("failed to delete session audit", "error", err)
	}

	return nil
}

// LogoutAll revokes every session the user holds ("logout everywhere").
func (s *service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Error("failed to delete user sessions", "error", err, "user_id", userID)
		return ErrInternal.WithCause(err)
	}

	if err := s.repo.DeleteSessionAuditByUser(ctx, userID); err != nil {
		s.logger.Error("failed to delete session audits", "error", err, "user_id", userID)
	}

	s.logger.Info("revoked all sessions", "user_id", userID)
	return nil
}

// Profile returns the account backing an authenticated session.
func (s *service) Profile(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error("failed to find user by id", "error", err, "user_id", userID)
		return nil, ErrInternal.WithCause(err)
	}
	return user, nil
}

// issueVerificationCode creates (or overwrites) the email-verification OTP for
// the user and emails it. Delivery is fire-and-forget.
func (s *service) issueVerificationCode(ctx context.Context, user *User) error {
	otpTTL := time.Duration(s.config.Auth.OTPTTLSeconds) * time.Second
	code, err := s.otps.Create(ctx, user.Email, otp.PurposeEmailVerification, otpTTL)
	if err != nil {
		s.logger.Error("failed to create verification otp", "error", err, "user_id", user.ID)
		return ErrInternal.WithCause(err)
	}

	go func() {
		data := templates.VerifyEmailData{
			Name:           user.Name,
			Code:           code,
			ExpiresMinutes: s.config.Auth.OTPTTLSeconds / 60,
			SupportEmail:   s.config.SMTP.From,
		}
		if err := notification.SendTemplate(context.WithoutCancel(ctx), s.notifier, s.renderer, templates.VerifyEmail,
			user.Email, []notification.Channel{notification.ChannelEmail}, notification.PriorityHigh, data); err != nil {
			s.logger.Error("failed to send verification email", "error", err, "user_id", user.ID)
		}
	}()

	return nil
}
