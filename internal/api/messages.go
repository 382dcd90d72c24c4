package api

import "time"

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name,omitempty"`
	Role              string    `json:"role"`
	Provider          string    `json:"provider,omitempty"`
	IsVerified        bool      `json:"is_verified"`
	CanCreatePassword bool      `json:"can_create_password,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type Tokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type AuthResponse struct {
	User   *User   `json:"user"`
	Tokens *Tokens `json:"tokens"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Referral string `json:"referral,omitempty"`
}

type UserResponse struct {
	User *User `json:"user"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type OTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type PasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SocialLoginRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"id_token"`
	Role     string `json:"role,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type DeleteAccountResponse struct {
	UserID             string `json:"user_id"`
	SessionsDeleted    int64  `json:"sessions_deleted"`
	InvitationsDeleted int64  `json:"invitations_deleted"`
}

type Invitation struct {
	ID         string     `json:"id"`
	Token      string     `json:"token"`
	Email      string     `json:"email,omitempty"`
	Accepted   bool       `json:"accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy string     `json:"accepted_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type SendInvitationRequest struct {
	Email string `json:"email,omitempty"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

type InvitationList struct {
	Invitations []Invitation `json:"invitations"`
}

type WhoAmIResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type SweepResponse struct {
	Revoked int64 `json:"revoked"`
	Purged  int64 `json:"purged"`
}
