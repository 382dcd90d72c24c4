package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
)

type sessionRepo struct {
	s  *Store
	tx bool
}

var _ refreshtokens.Repository = (*sessionRepo)(nil)

// Create enforces the same one-active-row-per-user rule as the partial
// unique index of the SQL schema.
func (r *sessionRepo) Create(_ context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := r.s.data.users[userID]; !ok {
		return nil, dbx.Wrap(fmt.Errorf("refresh_sessions.user_id: %w", errForeignKey))
	}
	if _, ok := r.s.data.sessions[token]; ok {
		return nil, fmt.Errorf("refresh token: %w", common.ErrConflict)
	}
	for _, t := range r.s.data.sessions {
		if t.UserID == userID && !t.Revoked {
			return nil, fmt.Errorf("active session exists: %w", common.ErrConflict)
		}
	}

	t := models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.now(),
	}
	r.s.data.sessions[token] = t
	return &t, nil
}

func (r *sessionRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	t, ok := r.s.data.sessions[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *sessionRepo) Revoke(_ context.Context, token string) (bool, error) {
	n, err := r.revokeWhere(func(t models.RefreshToken) bool { return t.Token == token })
	return n > 0, err
}

func (r *sessionRepo) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	return r.revokeWhere(func(t models.RefreshToken) bool { return t.UserID == userID })
}

func (r *sessionRepo) RevokeExpired(_ context.Context, now time.Time) (int64, error) {
	return r.revokeWhere(func(t models.RefreshToken) bool { return !t.ExpiresAt.After(now) })
}

func (r *sessionRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	return r.deleteWhere(func(t models.RefreshToken) bool { return t.UserID == userID })
}

func (r *sessionRepo) PurgeRevoked(_ context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(t models.RefreshToken) bool { return t.Revoked && t.ExpiresAt.Before(cutoff) })
}

func (r *sessionRepo) revokeWhere(match func(models.RefreshToken) bool) (int64, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int64
	for k, t := range r.s.data.sessions {
		if !t.Revoked && match(t) {
			t.Revoked = true
			r.s.data.sessions[k] = t
			n++
		}
	}
	return n, nil
}

func (r *sessionRepo) deleteWhere(match func(models.RefreshToken) bool) (int64, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int64
	for k, t := range r.s.data.sessions {
		if match(t) {
			delete(r.s.data.sessions, k)
			n++
		}
	}
	return n, nil
}
