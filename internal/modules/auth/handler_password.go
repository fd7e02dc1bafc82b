package auth

import (
	"context"

	"github.com/inkwell-app/inkwell-api/internal/httpx"
	"github.com/inkwell-app/inkwell-api/internal/validation"
)

// --- DTOs ---

// ForgotPasswordRequest defines the structure for initiating a password reset.
type ForgotPasswordRequest struct {
	Body struct {
		Email string `json:"email" validate:"required,email"`
	}
}

// ForgotPasswordResponse is an empty successful response. The body is the
// same whether or not the email maps to an account.
type ForgotPasswordResponse struct{}

// ResetPasswordRequest defines the structure for finalizing a password reset.
type ResetPasswordRequest struct {
	Body struct {
		Token           string `json:"token" validate:"required"`
		Password        string `json:"password" validate:"required,min=8"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	}
}

// ResetPasswordResponse is an empty successful response.
type ResetPasswordResponse struct{}

// --- Handlers ---

// ForgotPasswordHandler handles the request to initiate a password reset.
// Only the rate limiter can make this endpoint fail for a well-formed email;
// everything else looks like success so the response carries no enumeration
// signal.
func (h *Handler) ForgotPasswordHandler(ctx context.Context, input *ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	h.logger.Info("handling forgot password request")

	if err := h.service.RequestPasswordReset(ctx, input.Body.Email); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &ForgotPasswordResponse{}, nil
}

// ResetPasswordHandler handles the request to set a new password using a
// reset token. A replayed token gets a distinct "already used" problem.
func (h *Handler) ResetPasswordHandler(ctx context.Context, input *ResetPasswordRequest) (*ResetPasswordResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	h.logger.Info("handling reset password request")

	if err := h.service.ResetPassword(ctx, input.Body.Token, input.Body.Password); err != nil {
		h.logger.Warn("failed to reset password", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	h.logger.Info("password reset successfully")
	return &ResetPasswordResponse{}, nil
}
