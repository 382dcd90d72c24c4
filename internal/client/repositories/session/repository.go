// Package session persists the signed-in identity of the CLI between runs.
package session

import (
	"context"
	"time"
)

// Session is what the CLI remembers after a successful sign-in.
type Session struct {
	Email            string
	UserID           string
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Repository stores at most one Session.
type Repository interface {
	// Load returns nil, nil when nothing is stored.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// UpdateTokens replaces the token pair of the stored session.
	UpdateTokens(ctx context.Context, access, refresh string, refreshExpiresAt time.Time) error
	Clear(ctx context.Context) error
}
