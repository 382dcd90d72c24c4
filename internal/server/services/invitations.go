package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/mailer"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// InvitationService creates and redeems referral invitations.
type InvitationService struct {
	store dbx.Store
	repos repomanager.RepositoryManager
	mail  mailer.Sender
	log   logging.Logger
	now   func() time.Time
}

func NewInvitationService(store dbx.Store, repos repomanager.RepositoryManager, mail mailer.Sender, log logging.Logger) *InvitationService {
	return &InvitationService{store: store, repos: repos, mail: mail, log: log.With("module", "invitations"), now: time.Now}
}

// Send creates an invitation from inviterID. When email is given the token
// is mailed there; a failed mail does not undo the invitation.
func (s *InvitationService) Send(ctx context.Context, inviterID string, email string) (*models.Invitation, error) {
	if email != "" {
		var err error
		if email, err = normalizeEmail(email); err != nil {
			return nil, err
		}
	}

	conn := s.store.Conn()
	inviter, err := s.repos.Users(conn).GetByID(ctx, inviterID)
	if err != nil {
		return nil, err
	}

	inv, err := s.repos.Invitations(conn).Create(ctx, &models.Invitation{
		Token:     uuid.NewString(),
		InvitedBy: inviter.ID,
		Email:     email,
	})
	if err != nil {
		return nil, err
	}

	if email != "" {
		name := inviter.Name
		if name == "" {
			name = inviter.Email
		}
		if err := s.mail.SendInvitation(ctx, email, inv.Token, name); err != nil {
			s.log.Warn(ctx, "invitation mail failed", "invitation_id", inv.ID, "error", err)
		}
	}
	s.log.Info(ctx, "invitation created", "invitation_id", inv.ID, "inviter_id", inviter.ID)
	return inv, nil
}

// Accept redeems token once. acceptedBy may be empty when the invitee has
// no account yet.
func (s *InvitationService) Accept(ctx context.Context, token string, acceptedBy string) (*models.Invitation, error) {
	var inv *models.Invitation
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		inv, err = acceptInvitation(ctx, s.repos.Invitations(tx), token, acceptedBy, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListMine returns the invitations created by inviterID, newest first.
func (s *InvitationService) ListMine(ctx context.Context, inviterID string) ([]models.Invitation, error) {
	return s.repos.Invitations(s.store.Conn()).ListByInviter(ctx, inviterID)
}

// acceptInvitation is shared by Accept and referral signup.
func acceptInvitation(ctx context.Context, repo invitations.Repository, token string, acceptedBy string, at time.Time) (*models.Invitation, error) {
	if token == "" {
		return nil, fmt.Errorf("invitation token: %w", common.ErrValidation)
	}
	inv, err := repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Accepted {
		return nil, fmt.Errorf("invitation already used: %w", common.ErrConflict)
	}
	ok, err := repo.Accept(ctx, token, acceptedBy, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("invitation already used: %w", common.ErrConflict)
	}
	inv.Accepted, inv.AcceptedAt, inv.AcceptedBy = true, at, acceptedBy
	return inv, nil
}
