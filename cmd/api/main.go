package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/inkwell-app/inkwell-api/internal/cache"
	"github.com/inkwell-app/inkwell-api/internal/config"
	"github.com/inkwell-app/inkwell-api/internal/database"
	"github.com/inkwell-app/inkwell-api/internal/modules/auth"
	"github.com/inkwell-app/inkwell-api/internal/notification"
	"github.com/inkwell-app/inkwell-api/internal/notification/templates"
	"github.com/inkwell-app/inkwell-api/internal/otp"
	"github.com/inkwell-app/inkwell-api/internal/ratelimit"
	"github.com/inkwell-app/inkwell-api/internal/server"
	"github.com/inkwell-app/inkwell-api/internal/session"
	"github.com/inkwell-app/inkwell-api/internal/token"
)

// Options for the CLI.
type Options struct {
	Port int `help:"Port to listen on" short:"p" default:"8080"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		// Use a structured logger
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		cfg := config.Load()
		if cfg == nil {
			logger.Error("failed to load configuration")
			os.Exit(1)
		}
		logger.Info("configuration loaded successfully", "env", cfg.Server.Env)

		// --- Database & Cache ---
		dbPool := database.NewPostgresPool(cfg.Database.URL)
		if dbPool == nil {
			logger.Error("failed to connect to postgres")
			os.Exit(1)
		}
		hooks.OnStop(dbPool.Close)
		logger.Info("successfully connected to postgres database")

		redisClient := cache.NewRedisClient(cfg.Redis.URL)
		if redisClient == nil {
			logger.Error("failed to connect to redis")
			os.Exit(1)
		}
		hooks.OnStop(func() { redisClient.Close() })
		logger.Info("successfully connected to redis")

		// --- Redis-backed managers ---
		sessions := session.NewRedisProvider(redisClient)
		tokens := token.NewManager(redisClient)
		otps := otp.NewManager(redisClient)
		limiter := ratelimit.New(redisClient)

		// --- Notifications ---
		emailSender := notification.NewSMTPEmailSender(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)
		smsSender := notification.NewDummySMSSender(logger)
		notifier := notification.NewService(logger, emailSender, smsSender)
		renderer := templates.NewEngine()

		// --- Module Initialization (Bottom-Up) ---

		// Auth Module
		authRepo := auth.NewRepository(dbPool)
		authService := auth.NewService(&auth.Config{
			Repo:     authRepo,
			Sessions: sessions,
			Tokens:   tokens,
			OTPs:     otps,
			Limiter:  limiter,
			Notifier: notifier,
			Renderer: renderer,
			Logger:   logger,
			Config:   cfg,
		})

		router := server.New(cfg, logger, authService, sessions)
		hooks.OnStart(func() {
			logger.Info(fmt.Sprintf("Starting server on port %d...", options.Port))
			if err := http.ListenAndServe(fmt.Sprintf(":%d", options.Port), router); err != nil {
				slog.Error("Server failed to start", "error", err)
				os.Exit(1)
			}
		})
	})
	cli.Run()
}
