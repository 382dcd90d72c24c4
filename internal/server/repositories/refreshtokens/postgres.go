// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh sessions used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new session row with a fresh id.
func (r *PostgresRepository) Create(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_sessions (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	t := &models.RefreshToken{ID: uuid.NewString(), UserID: userID, Token: token, ExpiresAt: expiresAt}
	if err := r.db.QueryRowContext(ctx, query, t.ID, userID, token, expiresAt).Scan(&t.CreatedAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("refresh session for user %s: %w", userID, common.ErrConflict)
		}
		return nil, dbx.Wrap(err)
	}
	return t, nil
}

// Find returns the session row for the given token string.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, expires_at, revoked, created_at
		FROM refresh_sessions
		WHERE token = $1
	`
	t := &models.RefreshToken{Token: token}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.Wrap(err)
	}
	return t, nil
}

// Revoke is a conditional update on the revoked flag.
func (r *PostgresRepository) Revoke(ctx context.Context, token string) (bool, error) {
	query := `
		UPDATE refresh_sessions SET revoked = TRUE
		WHERE token = $1 AND NOT revoked
	`
	n, err := r.exec(ctx, query, token)
	return n > 0, err
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE refresh_sessions SET revoked = TRUE
		WHERE user_id = $1 AND NOT revoked
	`
	return r.exec(ctx, query, userID)
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	query := `
		DELETE FROM refresh_sessions
		WHERE user_id = $1
	`
	return r.exec(ctx, query, userID)
}

func (r *PostgresRepository) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_sessions SET revoked = TRUE
		WHERE NOT revoked AND expires_at <= $1
	`
	return r.exec(ctx, query, now)
}

func (r *PostgresRepository) PurgeRevoked(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_sessions
		WHERE revoked AND expires_at < $1
	`
	return r.exec(ctx, query, cutoff)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, dbx.Wrap(err)
	}
	return dbx.RowsAffected(res)
}
