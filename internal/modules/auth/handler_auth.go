package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/inkwell-app/inkwell-api/internal/contextx"
	"github.com/inkwell-app/inkwell-api/internal/httpx"
	"github.com/inkwell-app/inkwell-api/internal/validation"
)

// SessionCookieName is the cookie that carries the opaque session token.
// It is the only place the browser ever sees the token.
const SessionCookieName = "session_token"

// --- DTOs ---

// RegisterRequest defines the structure for the user registration request body.
type RegisterRequest struct {
	Body struct {
		Name     string `json:"name" validate:"required,min=2"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
}

// RegisterResponse defines the structure for a successful registration response.
// The account starts unverified; a verification code is emailed separately.
type RegisterResponse struct {
	Body struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
	}
}

// LoginRequest defines the structure for the user login request body.
type LoginRequest struct {
	Body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
}

// LoginResponse carries the user summary plus the session cookie.
type LoginResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
}

// LogoutRequest reads the session cookie if one is present.
type LogoutRequest struct {
	SessionToken string `cookie:"session_token"`
}

// LogoutResponse clears the session cookie.
type LogoutResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
}

type LogoutAllRequest struct{}

// LogoutAllResponse clears the session cookie after a bulk revocation.
type LogoutAllResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
}

// --- Cookie helpers ---

// sessionCookie builds the Set-Cookie value for a freshly issued session.
// HttpOnly keeps it away from scripts; Secure is tied to the environment so
// local development over plain HTTP still works.
func (h *Handler) sessionCookie(token string) http.Cookie {
	return http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.config.Auth.SessionTTLSeconds,
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

// clearSessionCookie builds a Set-Cookie value that expires the session cookie.
func (h *Handler) clearSessionCookie() http.Cookie {
	return http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

// --- Handlers ---

// RegisterHandler handles the user registration endpoint.
func (h *Handler) RegisterHandler(ctx context.Context, input *RegisterRequest) (*RegisterResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	h.logger.Info("handling user registration request", "email", input.Body.Email)

	user, err := h.service.Register(ctx, input.Body.Name, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &RegisterResponse{}
	resp.Body.ID = user.ID
	resp.Body.Name = user.Name
	resp.Body.Email = user.Email
	resp.Body.EmailVerified = user.EmailVerified
	return resp, nil
}

// LoginHandler authenticates the user and sets the session cookie.
func (h *Handler) LoginHandler(ctx context.Context, input *LoginRequest) (*LoginResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	user, token, err := h.service.Login(ctx, input.Body.Email, input.Body.Password,
		httpx.UserAgent(ctx), httpx.RemoteIP(ctx))
	if err != nil {
		h.logger.Warn("login attempt failed", "email", input.Body.Email, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &LoginResponse{SetCookie: h.sessionCookie(token)}
	resp.Body.ID = user.ID
	resp.Body.Name = user.Name
	resp.Body.Email = user.Email
	return resp, nil
}

// LogoutHandler revokes the session named by the cookie. A request without a
// cookie, or with a token that no longer resolves, still succeeds: the end
// state ("not logged in") is the same either way.
func (h *Handler) LogoutHandler(ctx context.Context, input *LogoutRequest) (*LogoutResponse, error) {
	if input.SessionToken != "" {
		if err := h.service.Logout(ctx, input.SessionToken); err != nil {
			return nil, httpx.ToProblem(ctx, err)
		}
	}
	return &LogoutResponse{SetCookie: h.clearSessionCookie()}, nil
}

// LogoutAllHandler revokes every session of the authenticated user.
func (h *Handler) LogoutAllHandler(ctx context.Context, input *LogoutAllRequest) (*LogoutAllResponse, error) {
	userID, ok := ctx.Value(contextx.UserIDKey).(string)
	if !ok || userID == "" {
		h.logger.Error("user ID not found in context or is of wrong type")
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	if err := h.service.LogoutAll(ctx, userID); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &LogoutAllResponse{SetCookie: h.clearSessionCookie()}, nil
}
