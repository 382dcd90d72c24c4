package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

const (
	keyEmail            = "email"
	keyUserID           = "user_id"
	keyAccessToken      = "access_token"
	keyRefreshToken     = "refresh_token"
	keyRefreshExpiresAt = "refresh_expires_at"
)

// SQLiteRepository keeps the session as key/value rows in the local state
// database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (*Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM session`)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	if values[keyRefreshToken] == "" {
		return nil, nil
	}

	s := &Session{
		Email:        values[keyEmail],
		UserID:       values[keyUserID],
		AccessToken:  values[keyAccessToken],
		RefreshToken: values[keyRefreshToken],
	}
	if v := values[keyRefreshExpiresAt]; v != "" {
		if s.RefreshExpiresAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("stored refresh expiry: %w", err)
		}
	}
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s *Session) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return setAll(ctx, tx, map[string]string{
			keyEmail:            s.Email,
			keyUserID:           s.UserID,
			keyAccessToken:      s.AccessToken,
			keyRefreshToken:     s.RefreshToken,
			keyRefreshExpiresAt: formatTime(s.RefreshExpiresAt),
		})
	})
}

func (r *SQLiteRepository) UpdateTokens(ctx context.Context, access, refresh string, refreshExpiresAt time.Time) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return setAll(ctx, tx, map[string]string{
			keyAccessToken:      access,
			keyRefreshToken:     refresh,
			keyRefreshExpiresAt: formatTime(refreshExpiresAt),
		})
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func setAll(ctx context.Context, tx dbx.DBTX, values map[string]string) error {
	for k, v := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, v)
		if err != nil {
			return fmt.Errorf("failed to set session[%s]: %w", k, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
