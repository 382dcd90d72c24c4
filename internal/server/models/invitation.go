package models

import "time"

// Invitation is a referral created by an existing user. It may be accepted
// exactly once.
type Invitation struct {
	ID         string
	Token      string
	InvitedBy  string
	Email      string
	Accepted   bool
	AcceptedAt time.Time
	AcceptedBy string
	CreatedAt  time.Time
}
