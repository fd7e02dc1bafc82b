package auth

import (
	"time"
)

// User represents an account in the system.
// This is the core entity for the auth module, used across the repository, service, and handler layers.
type User struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Email         string    `db:"email"`
	PasswordHash  string    `db:"password_hash"`
	EmailVerified bool      `db:"email_verified"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// SessionAudit mirrors an issued session into Postgres for observability.
// It is write-only from the auth flows: lookups always go to the session
// store, never to this table.
type SessionAudit struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	SessionToken string    `db:"session_token"`
	UserAgent    string    `db:"user_agent"`
	IPAddress    string    `db:"ip_address"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// PasswordResetAudit mirrors an issued password-reset token for observability.
// Like SessionAudit it is never read back to make auth decisions.
type PasswordResetAudit struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Token     string    `db:"token"`
	Used      bool      `db:"used"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}
