package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/google/uuid"
)

var errForeignKey = errors.New("foreign key violation")

type userRepo struct {
	s  *Store
	tx bool
}

var _ users.Repository = (*userRepo)(nil)

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return nil, fmt.Errorf("user %s: %w", user.Email, common.ErrConflict)
		}
		if user.ProviderSubject != "" && u.Provider == user.Provider && u.ProviderSubject == user.ProviderSubject {
			return nil, fmt.Errorf("provider identity already linked: %w", common.ErrConflict)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.HasPassword() && user.CanCreatePassword {
		return nil, dbx.Wrap(errors.New("check constraint users_password_xor_create"))
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.data.users[user.ID] = *user

	out := *user
	return &out, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return nil, err
	}
	defer release()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

// LockForUpdate only checks existence; WithinTx already runs exclusively.
func (r *userRepo) LockForUpdate(_ context.Context, id string) error {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.s.data.users[id]; !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (r *userRepo) SetOTP(_ context.Context, id string, code string, expiresAt time.Time) error {
	ok, err := r.update(id, func(u *models.User) bool {
		u.OTPCode, u.OTPExpiresAt = code, expiresAt
		return true
	})
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (r *userRepo) ConsumeOTP(_ context.Context, id string, code string, effects users.OTPEffects) (bool, error) {
	return r.update(id, func(u *models.User) bool {
		if u.OTPCode == "" || u.OTPCode != code {
			return false
		}
		u.OTPCode, u.OTPExpiresAt = "", time.Time{}
		u.IsVerified = u.IsVerified || effects.Verify
		u.CanResetPassword = u.CanResetPassword || effects.AllowReset
		return true
	})
}

func (r *userRepo) ResetPassword(_ context.Context, id string, passwordHash string) (bool, error) {
	return r.update(id, func(u *models.User) bool {
		if !u.CanResetPassword {
			return false
		}
		u.PasswordHash = passwordHash
		u.CanResetPassword, u.CanCreatePassword = false, false
		return true
	})
}

func (r *userRepo) CreatePassword(_ context.Context, id string, passwordHash string) (bool, error) {
	return r.update(id, func(u *models.User) bool {
		if !u.IsVerified || u.HasPassword() {
			return false
		}
		u.PasswordHash = passwordHash
		u.CanCreatePassword = false
		return true
	})
}

func (r *userRepo) LinkProvider(_ context.Context, id string, provider models.Provider, subject string) (bool, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return false, err
	}
	defer release()

	for _, u := range r.s.data.users {
		if u.ID != id && u.Provider == provider && u.ProviderSubject == subject {
			return false, fmt.Errorf("provider identity already linked: %w", common.ErrConflict)
		}
	}
	return r.apply(id, func(u *models.User) bool {
		if u.ProviderSubject != "" {
			return false
		}
		u.Provider, u.ProviderSubject, u.IsVerified = provider, subject, true
		return true
	}), nil
}

// Delete mirrors the schema: sessions and issued invitations must be gone
// first, accepted invitations lose their acceptor.
func (r *userRepo) Delete(_ context.Context, id string) (int64, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return 0, err
	}
	defer release()

	if _, ok := r.s.data.users[id]; !ok {
		return 0, nil
	}
	for _, t := range r.s.data.sessions {
		if t.UserID == id {
			return 0, dbx.Wrap(fmt.Errorf("refresh_sessions: %w", errForeignKey))
		}
	}
	for token, inv := range r.s.data.invitations {
		if inv.InvitedBy == id {
			return 0, dbx.Wrap(fmt.Errorf("invitations: %w", errForeignKey))
		}
		if inv.AcceptedBy == id {
			inv.AcceptedBy = ""
			r.s.data.invitations[token] = inv
		}
	}
	delete(r.s.data.users, id)
	return 1, nil
}

func (r *userRepo) update(id string, fn func(u *models.User) bool) (bool, error) {
	release, err := r.s.enter(r.tx)
	if err != nil {
		return false, err
	}
	defer release()
	return r.apply(id, fn), nil
}

// apply runs fn on a copy of the row and stores it when fn reports a match.
// The caller holds the lock.
func (r *userRepo) apply(id string, fn func(u *models.User) bool) bool {
	u, ok := r.s.data.users[id]
	if !ok || !fn(&u) {
		return false
	}
	u.UpdatedAt = r.s.now()
	r.s.data.users[id] = u
	return true
}
