package auth

import (
	"context"
	"time"

	"github.com/inkwell-app/inkwell-api/internal/contextx"
	"github.com/inkwell-app/inkwell-api/internal/httpx"
)

// --- DTOs & Mappers ---

// ProfileResponse is the DTO for the authenticated user's own profile.
type ProfileResponse struct {
	Body struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		Email         string    `json:"email"`
		EmailVerified bool      `json:"emailVerified"`
		CreatedAt     time.Time `json:"createdAt"`
	}
}

// toProfileResponse maps a domain User object to a ProfileResponse DTO.
func toProfileResponse(user *User) *ProfileResponse {
	var resp ProfileResponse
	resp.Body.ID = user.ID
	resp.Body.Name = user.Name
	resp.Body.Email = user.Email
	resp.Body.EmailVerified = user.EmailVerified
	resp.Body.CreatedAt = user.CreatedAt
	return &resp
}

// --- Handlers ---

// ProfileHandler returns the profile of the currently authenticated user.
// It relies on the session middleware having resolved the cookie and set the
// user's ID in the context.
func (h *Handler) ProfileHandler(ctx context.Context, input *struct{}) (*ProfileResponse, error) {
	userID, ok := ctx.Value(contextx.UserIDKey).(string)
	if !ok || userID == "" {
		h.logger.Error("user ID not found in context or is of wrong type")
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	user, err := h.service.Profile(ctx, userID)
	if err != nil {
		h.logger.Error("failed to get user profile", "user_id", userID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	return toProfileResponse(user), nil
}
