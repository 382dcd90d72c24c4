// Package services contains server-side business logic: the refresh session
// manager, the account lifecycle coordinator and invitations.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// SweepResult reports what one sweep changed.
type SweepResult struct {
	Revoked int64
	Purged  int64
}

// SessionConfig carries token secrets and lifetimes.
type SessionConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Retention is how long revoked rows are kept past their expiry.
	Retention time.Duration
}

// SessionService owns refresh sessions. A user has at most one active
// session: issuing revokes the previous one in the same transaction.
type SessionService struct {
	store dbx.Store
	repos repomanager.RepositoryManager
	cfg   SessionConfig
	log   logging.Logger
	now   func() time.Time
}

func NewSessionService(store dbx.Store, repos repomanager.RepositoryManager, cfg SessionConfig, log logging.Logger) *SessionService {
	return &SessionService{
		store: store,
		repos: repos,
		cfg:   cfg,
		log:   log.With("module", "sessions"),
		now:   time.Now,
	}
}

// Issue starts a new session for user, revoking any active one.
func (s *SessionService) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	var pair *TokenPair
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).LockForUpdate(ctx, user.ID); err != nil {
			return err
		}
		var err error
		pair, err = s.mint(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// issueLocked is Issue for callers that already run inside a transaction.
func (s *SessionService) issueLocked(ctx context.Context, tx dbx.DBTX, user *models.User) (*TokenPair, error) {
	if err := s.repos.Users(tx).LockForUpdate(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.mint(ctx, tx, user)
}

// mint revokes every active session of user and inserts a new one. The
// caller holds the user row lock.
func (s *SessionService) mint(ctx context.Context, tx dbx.DBTX, user *models.User) (*TokenPair, error) {
	sessions := s.repos.RefreshTokens(tx)

	if _, err := sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return nil, err
	}

	now := s.now()
	refresh, err := auth.GenerateRefreshToken(user.ID, s.cfg.Secret, s.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	row, err := sessions.Create(ctx, user.ID, refresh, now.Add(s.cfg.RefreshTTL))
	if err != nil {
		return nil, err
	}

	access, err := auth.GenerateAccessToken(user.ID, string(user.Role), s.cfg.Secret, s.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.cfg.AccessTTL),
		RefreshExpiresAt: row.ExpiresAt,
	}, nil
}

// Rotate exchanges a live refresh token for a new pair. The presented row is
// revoked with a compare-and-set, so of two concurrent rotations of the same
// token exactly one succeeds and the other gets common.ErrAlreadyRevoked.
func (s *SessionService) Rotate(ctx context.Context, presented string) (*TokenPair, error) {
	current, err := s.repos.RefreshTokens(s.store.Conn()).Find(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "unknown refresh token presented")
			return nil, fmt.Errorf("refresh token: %w", common.ErrorNotFound)
		}
		return nil, err
	}
	if current.Revoked {
		s.reuse(ctx, current.UserID)
		return nil, common.ErrAlreadyRevoked
	}
	if !s.now().Before(current.ExpiresAt) {
		return nil, fmt.Errorf("refresh token: %w", common.ErrExpired)
	}

	var pair *TokenPair
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repos.Users(tx)
		if err := users.LockForUpdate(ctx, current.UserID); err != nil {
			return err
		}

		ok, err := s.repos.RefreshTokens(tx).Revoke(ctx, presented)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrAlreadyRevoked
		}

		user, err := users.GetByID(ctx, current.UserID)
		if err != nil {
			return err
		}
		pair, err = s.mint(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyRevoked) {
			s.reuse(ctx, current.UserID)
		}
		return nil, err
	}

	s.log.Debug(ctx, "session rotated", "user_id", current.UserID)
	return pair, nil
}

func (s *SessionService) reuse(ctx context.Context, userID string) {
	s.log.Warn(ctx, "revoked refresh token reused", "user_id", userID)
}

// Revoke ends the session behind presented. Revoking an already revoked
// session succeeds.
func (s *SessionService) Revoke(ctx context.Context, presented string) error {
	conn := s.store.Conn()
	t, err := s.repos.RefreshTokens(conn).Find(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("refresh token: %w", common.ErrorNotFound)
		}
		return err
	}
	if t.Revoked {
		return nil
	}
	if _, err := s.repos.RefreshTokens(conn).Revoke(ctx, presented); err != nil {
		return err
	}
	s.log.Debug(ctx, "session revoked", "user_id", t.UserID)
	return nil
}

// Sweep revokes sessions that have expired and purges revoked rows older
// than the retention window. It never un-revokes anything, so running it
// repeatedly or concurrently with rotations is safe.
func (s *SessionService) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()
	sessions := s.repos.RefreshTokens(s.store.Conn())

	n, err := sessions.RevokeExpired(ctx, now)
	if err != nil {
		return res, err
	}
	res.Revoked = n

	n, err = sessions.PurgeRevoked(ctx, now.Add(-s.cfg.Retention))
	if err != nil {
		return res, err
	}
	res.Purged = n

	s.log.Info(ctx, "session sweep", "revoked", res.Revoked, "purged", res.Purged)
	return res, nil
}
