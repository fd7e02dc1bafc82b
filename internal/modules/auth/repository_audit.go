package auth

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// InsertSessionAudit mirrors a newly issued session into the audit table.
func (r *repository) InsertSessionAudit(ctx context.Context, audit *SessionAudit) error {
	if audit.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		audit.ID = id.String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query, args, err := r.psql.Insert("user_session_audit").
		Columns("id", "user_id", "session_token", "user_agent", "ip_address", "created_at", "expires_at").
		Values(audit.ID, audit.UserID, audit.SessionToken, audit.UserAgent, audit.IPAddress, audit.CreatedAt, audit.ExpiresAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// DeleteSessionAudit removes the audit row for a revoked session.
func (r *repository) DeleteSessionAudit(ctx context.Context, sessionToken string) error {
	query, args, err := r.psql.Delete("user_session_audit").
		Where(squirrel.Eq{"session_token": sessionToken}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// DeleteSessionAuditByUser removes every session audit row for a user,
// matching a bulk revocation.
func (r *repository) DeleteSessionAuditByUser(ctx context.Context, userID string) error {
	query, args, err := r.psql.Delete("user_session_audit").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// InsertPasswordResetAudit mirrors a newly issued password-reset token.
func (r *repository) InsertPasswordResetAudit(ctx context.Context, audit *PasswordResetAudit) error {
	if audit.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		audit.ID = id.String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query, args, err := r.psql.Insert("password_reset_audit").
		Columns("id", "user_id", "token", "used", "created_at", "expires_at").
		Values(audit.ID, audit.UserID, audit.Token, audit.Used, audit.CreatedAt, audit.ExpiresAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// MarkPasswordResetAuditUsed flags the audit row for a redeemed token.
func (r *repository) MarkPasswordResetAuditUsed(ctx context.Context, token string) error {
	query, args, err := r.psql.Update("password_reset_audit").
		Set("used", true).
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}
