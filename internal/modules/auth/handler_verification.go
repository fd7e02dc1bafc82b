package auth

import (
	"context"

	"github.com/inkwell-app/inkwell-api/internal/httpx"
	"github.com/inkwell-app/inkwell-api/internal/validation"
)

// --- DTOs ---

// VerifyEmailRequest carries the email and the 6-digit code delivered to it.
type VerifyEmailRequest struct {
	Body struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required,len=6,numeric"`
	}
}

type VerifyEmailResponse struct{}

type ResendVerificationRequest struct {
	Body struct {
		Email string `json:"email" validate:"required,email"`
	}
}

type ResendVerificationResponse struct{}

// --- Handlers ---

// VerifyEmailHandler validates the 6-digit code and marks the user's email as verified.
func (h *Handler) VerifyEmailHandler(ctx context.Context, input *VerifyEmailRequest) (*VerifyEmailResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	if err := h.service.VerifyEmail(ctx, input.Body.Email, input.Body.Code); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &VerifyEmailResponse{}, nil
}

// ResendVerificationHandler issues a fresh verification code, replacing any
// code still outstanding. The response never reveals whether the email is
// registered.
func (h *Handler) ResendVerificationHandler(ctx context.Context, input *ResendVerificationRequest) (*ResendVerificationResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	if err := h.service.ResendVerification(ctx, input.Body.Email); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &ResendVerificationResponse{}, nil
}
