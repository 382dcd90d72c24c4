// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleUser    Role = "user"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTrainer, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a caller may choose r for their own account.
func (r Role) SelfAssignable() bool {
	return r == RoleUser || r == RoleTrainer
}

// Provider names the identity source an account is bound to.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// User is an account together with its credential state and the single
// pending OTP challenge.
type User struct {
	ID    string
	Email string
	Name  string

	// PasswordHash is empty for social-only and pre-password accounts.
	PasswordHash string
	IsVerified   bool
	Role         Role

	// Provider and ProviderSubject form the one external identity link.
	// ProviderSubject is empty while the account is unlinked.
	Provider        Provider
	ProviderSubject string

	OTPCode      string
	OTPExpiresAt time.Time

	CanResetPassword  bool
	CanCreatePassword bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether a password hash is set.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// HasOTP reports whether a challenge is pending.
func (u *User) HasOTP() bool { return u.OTPCode != "" }

// LinkedTo reports whether the account is bound to an external provider.
func (u *User) LinkedTo() (Provider, bool) {
	if u.ProviderSubject == "" {
		return "", false
	}
	return u.Provider, true
}
