package auth

import (
	"context"
	"log/slog"

	"github.com/inkwell-app/inkwell-api/internal/config"
	"github.com/inkwell-app/inkwell-api/internal/notification"
	"github.com/inkwell-app/inkwell-api/internal/notification/templates"
	"github.com/inkwell-app/inkwell-api/internal/otp"
	"github.com/inkwell-app/inkwell-api/internal/ratelimit"
	"github.com/inkwell-app/inkwell-api/internal/session"
	"github.com/inkwell-app/inkwell-api/internal/token"
)

// Service defines the interface for the auth module's business logic.
// It orchestrates the session, OTP, token and rate-limit managers together
// with the persistence collaborator, and contains the core auth rules.
type Service interface {
	// Registration & verification
	Register(ctx context.Context, name, email, password string) (*User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error

	// Sessions
	Login(ctx context.Context, email, password, userAgent, ip string) (*User, string, error)
	Logout(ctx context.Context, sessionToken string) error
	LogoutAll(ctx context.Context, userID string) error

	// Password reset
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error

	// Profile
	Profile(ctx context.Context, userID string) (*User, error)
}

// service implements the Service interface.
type service struct {
	repo     Repository
	sessions session.Provider
	tokens   *token.Manager
	otps     *otp.Manager
	limiter  *ratelimit.Limiter
	notifier notification.Service
	renderer *templates.Engine
	logger   *slog.Logger
	config   *config.Config
}

// Config holds the dependencies for the auth service.
type Config struct {
	Repo     Repository
	Sessions session.Provider
	Tokens   *token.Manager
	OTPs     *otp.Manager
	Limiter  *ratelimit.Limiter
	Notifier notification.Service
	Renderer *templates.Engine
	Logger   *slog.Logger
	Config   *config.Config
}

// NewService creates a new auth service with the given dependencies.
func NewService(cfg *Config) Service {
	return &service{
		repo:     cfg.Repo,
		sessions: cfg.Sessions,
		tokens:   cfg.Tokens,
		otps:     cfg.OTPs,
		limiter:  cfg.Limiter,
		notifier: cfg.Notifier,
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
		config:   cfg.Config,
	}
}
