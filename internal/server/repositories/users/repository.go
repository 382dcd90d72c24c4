// Package users declares the credential store: persistence of accounts, their
// password hash, verification state and the single pending OTP challenge.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// OTPEffects lists the state changes applied together with consuming an OTP.
type OTPEffects struct {
	// Verify marks the account as verified.
	Verify bool
	// AllowReset grants the one-shot password reset permission.
	AllowReset bool
}

// Repository is the persistence contract for accounts. Methods returning a
// bool perform a conditional update and report whether the condition held;
// false means nothing was written.
type Repository interface {
	// Create inserts user. A duplicate email or provider link yields common.ErrConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail and GetByID return common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// LockForUpdate takes a row lock on the account for the rest of the
	// enclosing transaction.
	LockForUpdate(ctx context.Context, id string) error

	// SetOTP overwrites the pending challenge.
	SetOTP(ctx context.Context, id string, code string, expiresAt time.Time) error

	// ConsumeOTP clears the challenge iff it still holds code, applying effects.
	ConsumeOTP(ctx context.Context, id string, code string, effects OTPEffects) (bool, error)

	// ResetPassword sets the hash iff the reset permission is held, consuming it.
	ResetPassword(ctx context.Context, id string, passwordHash string) (bool, error)

	// CreatePassword sets the first hash iff the account is verified and has none.
	CreatePassword(ctx context.Context, id string, passwordHash string) (bool, error)

	// LinkProvider binds an external identity iff the account is unlinked,
	// and marks it verified.
	LinkProvider(ctx context.Context, id string, provider models.Provider, subject string) (bool, error)

	// Delete removes the account row and reports how many rows went away.
	Delete(ctx context.Context, id string) (int64, error)
}
