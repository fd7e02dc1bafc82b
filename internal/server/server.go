package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkwell-app/inkwell-api/internal/config"
	"github.com/inkwell-app/inkwell-api/internal/httpx"
	appmw "github.com/inkwell-app/inkwell-api/internal/middleware"
	"github.com/inkwell-app/inkwell-api/internal/modules/auth"
	"github.com/inkwell-app/inkwell-api/internal/session"
)

// New creates and configures a new server instance.
func New(cfg *config.Config, log *slog.Logger, authService auth.Service, sessions session.Provider) chi.Router {
	// Create a new Chi router and Huma API.
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpx.ClientInfo)
	router.Use(middleware.Logger) // Chi's built-in logger, can be replaced with a custom slog one.
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	apiConfig := huma.DefaultConfig("Inkwell API", "1.0.0")
	apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookie": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.SessionCookieName,
		},
	}
	api := humachi.New(router, apiConfig)

	requireSession := appmw.SessionAuthHuma(sessions, log)

	authHandler := auth.NewHandler(authService, log, cfg)
	authHandler.RegisterRoutes(api, requireSession)

	// Register a simple health check endpoint.
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health Check",
		Description: "Responds with the server's health status.",
	}, func(ctx context.Context, input *struct{}) (*struct {
		Body struct {
			Status string `json:"status"`
		}
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status"`
			}
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})

	return router
}
