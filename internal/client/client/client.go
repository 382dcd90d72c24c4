package client

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/api"
)

// Client is the CLI's view of the gophauth server.
type Client interface {
	Close() error
	Ping(ctx context.Context) error

	Signup(ctx context.Context, req *api.SignupRequest) (*api.User, error)
	ResendSignupOTP(ctx context.Context, email string) error
	VerifySignupOTP(ctx context.Context, email, code string) (*api.AuthResponse, error)
	CreatePassword(ctx context.Context, email, password string) (*api.AuthResponse, error)
	SignIn(ctx context.Context, email, password string) (*api.AuthResponse, error)
	SocialLogin(ctx context.Context, provider, idToken, role string) (*api.AuthResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyForgotPasswordOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error

	RequestDeleteOTP(ctx context.Context, email string) error
	VerifyDeleteOTP(ctx context.Context, email, code string) (*api.DeleteAccountResponse, error)
	SendInvitation(ctx context.Context, email string) (*api.Invitation, error)
	AcceptInvitation(ctx context.Context, token string) (*api.Invitation, error)
	ListInvitations(ctx context.Context) ([]api.Invitation, error)
	WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error)
	Sweep(ctx context.Context) (*api.SweepResponse, error)

	// SetTokens installs the pair used for protected calls.
	SetTokens(t api.Tokens)
	Tokens() api.Tokens
	// OnRotate registers fn to run after the client rotated its tokens.
	OnRotate(fn func(api.Tokens))
}
