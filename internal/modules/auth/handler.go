package auth

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/inkwell-app/inkwell-api/internal/config"
)

// Handler holds the dependencies for the auth module's HTTP handlers.
type Handler struct {
	service Service
	logger  *slog.Logger
	config  *config.Config
}

// NewHandler creates a new handler for the auth module.
func NewHandler(service Service, logger *slog.Logger, cfg *config.Config) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		config:  cfg,
	}
}

// RegisterRoutes sets up the routing for the auth module.
// requireSession is applied to the routes that need an authenticated session;
// it resolves the session cookie and injects the user ID into the context.
func (h *Handler) RegisterRoutes(api huma.API, requireSession func(huma.Context, func(huma.Context))) {
	// --- Registration & verification ---
	huma.Register(api, huma.Operation{
		OperationID: "auth-register",
		Method:      http.MethodPost,
		Path:        "/users/register",
		Summary:     "Register a new user",
	}, h.RegisterHandler)

	huma.Register(api, huma.Operation{
		OperationID: "auth-verify-email",
		Method:      http.MethodPost,
		Path:        "/users/email/verify",
		Summary:     "Verify an email address with a 6-digit code",
	}, h.VerifyEmailHandler)

	huma.Register(api, huma.Operation{
		OperationID: "auth-resend-verification",
		Method:      http.MethodPost,
		Path:        "/users/email/resend",
		Summary:     "Resend the email verification code",
	}, h.ResendVerificationHandler)

	// --- Sessions ---
	huma.Register(api, huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodPost,
		Path:        "/users/login",
		Summary:     "Log in and receive a session cookie",
	}, h.LoginHandler)

	huma.Register(api, huma.Operation{
		OperationID: "auth-logout",
		Method:      http.MethodPost,
		Path:        "/users/logout",
		Summary:     "Log out the current session",
	}, h.LogoutHandler)

	huma.Register(api, huma.Operation{
		OperationID: "auth-logout-all",
		Method:      http.MethodPost,
		Path:        "/users/logout-all",
		Summary:     "Log out everywhere",
		Middlewares: huma.Middlewares{requireSession},
		Security:    []map[string][]string{{"cookie": {}}},
	}, h.LogoutAllHandler)

	// --- Password reset ---
	huma.Register(api, huma.Operation{
		OperationID: "auth-forgot-password",
		Method:      http.MethodPost,
		Path:        "/users/password/forgot",
		Summary:     "Initiate password reset",
	}, h.ForgotPasswordHandler)

	huma.Register(api, huma.Operation{
		OperationID: "auth-reset-password",
		Method:      http.MethodPost,
		Path:        "/users/password/reset",
		Summary:     "Reset password with a token",
	}, h.ResetPasswordHandler)

	// --- Profile ---
	huma.Register(api, huma.Operation{
		OperationID: "auth-profile",
		Method:      http.MethodGet,
		Path:        "/users/me",
		Summary:     "Get the current user's profile",
		Middlewares: huma.Middlewares{requireSession},
		Security:    []map[string][]string{{"cookie": {}}},
	}, h.ProfileHandler)
}
