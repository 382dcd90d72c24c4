package models

import "time"

// RefreshToken is one outstanding refresh grant. Token is the opaque value
// handed to the client and doubles as the lookup key.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
