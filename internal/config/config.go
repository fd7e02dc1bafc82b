package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Auth     AuthConfig
}

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`

	// BaseURL is the externally visible origin, used to build links in emails.
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds the Redis configuration.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type SMTPConfig struct {
	From     string `mapstructure:"from"`
	Password string `mapstructure:"password"`
	Username string `mapstructure:"username"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
}

// AuthConfig holds session, OTP, token and rate-limit tuning.
type AuthConfig struct {
	// SessionTTLSeconds is the lifetime of an auth session. Default: 7 days.
	SessionTTLSeconds int `mapstructure:"session_ttl_seconds"`

	// OTPTTLSeconds is the lifetime of a 6-digit verification code. Default: 10 minutes.
	OTPTTLSeconds int `mapstructure:"otp_ttl_seconds"`

	// ResetTokenTTLSeconds is the lifetime of a password-reset token. Default: 15 minutes.
	ResetTokenTTLSeconds int `mapstructure:"reset_token_ttl_seconds"`

	// Per-action fixed-window rate limit budgets.
	LoginMaxAttempts   int `mapstructure:"login_max_attempts"`
	LoginWindowSeconds int `mapstructure:"login_window_seconds"`

	RegisterMaxAttempts   int `mapstructure:"register_max_attempts"`
	RegisterWindowSeconds int `mapstructure:"register_window_seconds"`

	ResetMaxAttempts   int `mapstructure:"reset_max_attempts"`
	ResetWindowSeconds int `mapstructure:"reset_window_seconds"`

	ResendMaxAttempts   int `mapstructure:"resend_max_attempts"`
	ResendWindowSeconds int `mapstructure:"resend_window_seconds"`
}

// Load creates a new Config object from environment variables.
func Load() *Config {
	// --- Set up Viper ---
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	// Use a replacer to map env vars like SERVER_PORT to Server.Port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Load .env into process environment for BindEnv to work with file-based envs
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ godotenv could not load .env: %v", err)
	}

	// Bind structured keys to environment variables
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.base_url", "SERVER_BASE_URL")
	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("redis.url", "REDIS_URL")
	_ = viper.BindEnv("smtp.host", "SMTP_HOST")
	_ = viper.BindEnv("smtp.port", "SMTP_PORT")
	_ = viper.BindEnv("smtp.username", "SMTP_USERNAME")
	_ = viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	_ = viper.BindEnv("smtp.from", "SMTP_FROM")
	_ = viper.BindEnv("auth.session_ttl_seconds", "AUTH_SESSION_TTL_SECONDS")
	_ = viper.BindEnv("auth.otp_ttl_seconds", "AUTH_OTP_TTL_SECONDS")
	_ = viper.BindEnv("auth.reset_token_ttl_seconds", "AUTH_RESET_TOKEN_TTL_SECONDS")
	_ = viper.BindEnv("auth.login_max_attempts", "AUTH_LOGIN_MAX_ATTEMPTS")
	_ = viper.BindEnv("auth.login_window_seconds", "AUTH_LOGIN_WINDOW_SECONDS")
	_ = viper.BindEnv("auth.register_max_attempts", "AUTH_REGISTER_MAX_ATTEMPTS")
	_ = viper.BindEnv("auth.register_window_seconds", "AUTH_REGISTER_WINDOW_SECONDS")
	_ = viper.BindEnv("auth.reset_max_attempts", "AUTH_RESET_MAX_ATTEMPTS")
	_ = viper.BindEnv("auth.reset_window_seconds", "AUTH_RESET_WINDOW_SECONDS")
	_ = viper.BindEnv("auth.resend_max_attempts", "AUTH_RESEND_MAX_ATTEMPTS")
	_ = viper.BindEnv("auth.resend_window_seconds", "AUTH_RESEND_WINDOW_SECONDS")

	// --- Read Configuration ---
	if err := viper.ReadInConfig(); err != nil {
		// Only log a warning if the .env file is not found.
		// We can still proceed if all config is set via environment variables.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("❌ Error reading config file: %s", err)
		} else {
			log.Printf("⚠️ .env file not found, relying on environment variables")
		}
	}

	// --- Unmarshal configuration into our struct ---
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("❌ Unable to decode config into struct: %v", err)
	}

	// --- Set default values ---
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:" + cfg.Server.Port
	}
	if cfg.Auth.SessionTTLSeconds <= 0 {
		cfg.Auth.SessionTTLSeconds = 7 * 24 * 60 * 60
	}
	if cfg.Auth.OTPTTLSeconds <= 0 {
		cfg.Auth.OTPTTLSeconds = 10 * 60
	}
	if cfg.Auth.ResetTokenTTLSeconds <= 0 {
		cfg.Auth.ResetTokenTTLSeconds = 15 * 60
	}
	if cfg.Auth.LoginMaxAttempts <= 0 {
		cfg.Auth.LoginMaxAttempts = 5
	}
	if cfg.Auth.LoginWindowSeconds <= 0 {
		cfg.Auth.LoginWindowSeconds = 15 * 60
	}
	if cfg.Auth.RegisterMaxAttempts <= 0 {
		cfg.Auth.RegisterMaxAttempts = 3
	}
	if cfg.Auth.RegisterWindowSeconds <= 0 {
		cfg.Auth.RegisterWindowSeconds = 60 * 60
	}
	if cfg.Auth.ResetMaxAttempts <= 0 {
		cfg.Auth.ResetMaxAttempts = 3
	}
	if cfg.Auth.ResetWindowSeconds <= 0 {
		cfg.Auth.ResetWindowSeconds = 60 * 60
	}
	if cfg.Auth.ResendMaxAttempts <= 0 {
		cfg.Auth.ResendMaxAttempts = 3
	}
	if cfg.Auth.ResendWindowSeconds <= 0 {
		cfg.Auth.ResendWindowSeconds = 10 * 60
	}

	log.Println("✅ Configuration loaded successfully")
	return &cfg
}

// IsProduction reports whether the server is running in the production environment.
// Controls, among other things, whether session cookies are marked Secure.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}
