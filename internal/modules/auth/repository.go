package auth

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/inkwell-app/inkwell-api/internal/database"
)

// Repository defines the interface for database operations for the auth module.
// This abstraction allows the service layer to be independent of the database implementation.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, userID string, newPasswordHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error

	// Audit mirrors. These rows exist for observability only; failures here
	// must never fail the primary auth operation.
	InsertSessionAudit(ctx context.Context, audit *SessionAudit) error
	DeleteSessionAudit(ctx context.Context, sessionToken string) error
	DeleteSessionAuditByUser(ctx context.Context, userID string) error
	InsertPasswordResetAudit(ctx context.Context, audit *PasswordResetAudit) error
	MarkPasswordResetAuditUsed(ctx context.Context, token string) error
}

// repository implements the Repository interface using pgx and squirrel.
type repository struct {
	db   database.DBTX
	psql squirrel.StatementBuilderType
}

// NewRepository creates a new auth repository with the given database connection.
func NewRepository(db database.DBTX) Repository {
	return &repository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}
