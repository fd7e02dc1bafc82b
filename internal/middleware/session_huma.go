package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkwell-app/inkwell-api/internal/contextx"
	"github.com/inkwell-app/inkwell-api/internal/httpx"
	"github.com/inkwell-app/inkwell-api/internal/modules/auth"
	"github.com/inkwell-app/inkwell-api/internal/session"
)

// SessionAuthHuma is a router-agnostic Huma middleware that resolves the
// session cookie against the session store and injects the user ID and the
// raw token into the request context for downstream handlers. The cookie is
// the only credential ever consulted; headers, query and body are ignored.
// On failure it writes an RFC7807 problem+json response with code ErrUnauthorized.
func SessionAuthHuma(sessions session.Provider, logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)

		writeUnauthorized := func(detail string) {
			reqID := middleware.GetReqID(r.Context())
			p := &httpx.Problem{
				Type:      "urn:problem:auth/err-unauthorized",
				Title:     http.StatusText(http.StatusUnauthorized),
				Status:    http.StatusUnauthorized,
				Detail:    detail,
				Code:      "ErrUnauthorized",
				RequestID: reqID,
			}
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(p.GetStatus())
			_ = json.NewEncoder(w).Encode(p)
		}

		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil || cookie.Value == "" {
			writeUnauthorized("missing session cookie")
			return
		}

		sess, err := sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				logger.Error("session lookup failed", "error", err)
				writeUnauthorized("could not verify session")
				return
			}
			writeUnauthorized("invalid or expired session")
			return
		}

		ctx = huma.WithValue(ctx, contextx.UserIDKey, sess.UserID)
		ctx = huma.WithValue(ctx, contextx.SessionTokenKey, cookie.Value)
		next(ctx)
	}
}
