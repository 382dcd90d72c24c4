// Package refreshtokens declares the server-side repository contract for
// refresh sessions in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations for issuing, retrieving, revoking and
// cleaning up refresh sessions.
type Repository interface {
	// Create stores a new, non-revoked session for userID.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// Find looks up a session by its opaque token string.
	// Implementations return common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke flips revoked false→true for token. It reports false when no
	// non-revoked row matched, which makes it a compare-and-set.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllForUser revokes every non-revoked session of userID.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteByUser removes every session of userID.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// RevokeExpired revokes non-revoked sessions whose expiry is at or before now.
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)

	// PurgeRevoked deletes revoked sessions that expired before cutoff.
	PurgeRevoked(ctx context.Context, cutoff time.Time) (int64, error)
}
