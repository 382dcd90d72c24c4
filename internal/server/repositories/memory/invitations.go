package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/invitations"
	"github.com/google/uuid"
)

type invitationRepo struct {
	s  *Store
	tx bool
}

var _ invitations.Repository = (*invitationRepo)(nil)

func (r *invitationRepo) Create(_ context.Context, inv *models.Invitation) (*models.Invitation, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := r.s.data.users[inv.InvitedBy]; !ok {
		return nil, dbx.Wrap(fmt.Errorf("invitations.invited_by: %w", errForeignKey))
	}
	if _, ok := r.s.data.invitations[inv.Token]; ok {
		return nil, common.ErrConflict
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = r.s.now()
	r.s.nextSeq++
	r.s.data.seq[inv.Token] = r.s.nextSeq
	r.s.data.invitations[inv.Token] = *inv

	out := *inv
	return &out, nil
}

func (r *invitationRepo) FindByToken(_ context.Context, token string) (*models.Invitation, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	inv, ok := r.s.data.invitations[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &inv, nil
}

func (r *invitationRepo) Accept(_ context.Context, token string, acceptedBy string, at time.Time) (bool, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return false, err
	}
	defer release()

	inv, ok := r.s.data.invitations[token]
	if !ok || inv.Accepted {
		return false, nil
	}
	inv.Accepted, inv.AcceptedAt, inv.AcceptedBy = true, at, acceptedBy
	r.s.data.invitations[token] = inv
	return true, nil
}

func (r *invitationRepo) ListByInviter(_ context.Context, inviterID string) ([]models.Invitation, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []models.Invitation
	for _, inv := range r.s.data.invitations {
		if inv.InvitedBy == inviterID {
			out = append(out, inv)
		}
	}
	seq := r.s.data.seq
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return seq[out[i].Token] > seq[out[j].Token]
	})
	return out, nil
}

func (r *invitationRepo) DeleteByInviter(_ context.Context, inviterID string) (int64, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int64
	for k, inv := range r.s.data.invitations {
		if inv.InvitedBy == inviterID {
			delete(r.s.data.invitations, k)
			delete(r.s.data.seq, k)
			n++
		}
	}
	return n, nil
}
