// Package invitations declares the repository contract for referral
// invitations.
package invitations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines persistence for invitations.
type Repository interface {
	// Create stores inv and fills ID (when empty) and CreatedAt.
	Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error)

	// FindByToken returns common.ErrorNotFound when token is unknown.
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)

	// Accept marks the invitation accepted. It reports false when the
	// invitation was already accepted (or does not exist).
	Accept(ctx context.Context, token string, acceptedBy string, at time.Time) (bool, error)

	// ListByInviter returns the invitations created by inviterID, newest first.
	ListByInviter(ctx context.Context, inviterID string) ([]models.Invitation, error)

	// DeleteByInviter removes every invitation created by inviterID.
	DeleteByInviter(ctx context.Context, inviterID string) (int64, error)
}
