// Package services contains application services for the gophauth CLI.
// The auth service drives the account flows against the server and keeps
// the signed-in session in the local store so it survives restarts.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/session"
)

// AuthService defines the account operations available to the CLI.
//
// Methods that sign the user in persist the returned session. Logout and a
// confirmed deletion wipe it.
type AuthService interface {
	Restore(ctx context.Context) (*session.Session, error)
	Current() *session.Session

	Signup(ctx context.Context, req *api.SignupRequest) (*api.User, error)
	ResendSignupOTP(ctx context.Context, email string) error
	VerifySignup(ctx context.Context, email, code string) (*api.User, error)
	CreatePassword(ctx context.Context, email, password string) (*api.User, error)
	SignIn(ctx context.Context, email, password string) (*api.User, error)
	SocialLogin(ctx context.Context, provider, idToken, role string) (*api.User, error)
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error)

	ForgotPassword(ctx context.Context, email string) error
	VerifyForgotPassword(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, password string) error

	RequestDelete(ctx context.Context) error
	ConfirmDelete(ctx context.Context, code string) (*api.DeleteAccountResponse, error)

	Invite(ctx context.Context, email string) (*api.Invitation, error)
	Accept(ctx context.Context, token string) (*api.Invitation, error)
	Invitations(ctx context.Context) ([]api.Invitation, error)
	Sweep(ctx context.Context) (*api.SweepResponse, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client  client.Client
	repo    session.Repository
	current *session.Session
}

// NewAuthService binds the API client to the session store. Token rotations
// performed by the client are written back to the store.
func NewAuthService(c client.Client, repo session.Repository) AuthService {
	a := &authService{client: c, repo: repo}
	c.OnRotate(a.persistRotation)
	return a
}

func (a *authService) persistRotation(t api.Tokens) {
	if a.current == nil {
		return
	}
	a.current.AccessToken = t.AccessToken
	a.current.RefreshToken = t.RefreshToken
	a.current.RefreshExpiresAt = t.RefreshExpiresAt
	// Best effort: the pair in memory stays usable for this run.
	_ = a.repo.UpdateTokens(context.Background(), t.AccessToken, t.RefreshToken, t.RefreshExpiresAt)
}

// Restore loads the stored session, if any, and hands its tokens to the client.
func (a *authService) Restore(ctx context.Context) (*session.Session, error) {
	s, err := a.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	a.current = s
	a.client.SetTokens(api.Tokens{
		AccessToken:      s.AccessToken,
		RefreshToken:     s.RefreshToken,
		RefreshExpiresAt: s.RefreshExpiresAt,
	})
	return s, nil
}

func (a *authService) Current() *session.Session {
	return a.current
}

func (a *authService) save(ctx context.Context, resp *api.AuthResponse) (*api.User, error) {
	if resp.User == nil || resp.Tokens == nil {
		return nil, fmt.Errorf("incomplete auth response")
	}
	s := &session.Session{
		Email:            resp.User.Email,
		UserID:           resp.User.ID,
		AccessToken:      resp.Tokens.AccessToken,
		RefreshToken:     resp.Tokens.RefreshToken,
		RefreshExpiresAt: resp.Tokens.RefreshExpiresAt,
	}
	if err := a.repo.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	a.current = s
	return resp.User, nil
}

func (a *authService) forget(ctx context.Context) error {
	a.current = nil
	a.client.SetTokens(api.Tokens{})
	if err := a.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (a *authService) Signup(ctx context.Context, req *api.SignupRequest) (*api.User, error) {
	return a.client.Signup(ctx, req)
}

func (a *authService) ResendSignupOTP(ctx context.Context, email string) error {
	return a.client.ResendSignupOTP(ctx, email)
}

func (a *authService) VerifySignup(ctx context.Context, email, code string) (*api.User, error) {
	resp, err := a.client.VerifySignupOTP(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return a.save(ctx, resp)
}

func (a *authService) CreatePassword(ctx context.Context, email, password string) (*api.User, error) {
	resp, err := a.client.CreatePassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.save(ctx, resp)
}

func (a *authService) SignIn(ctx context.Context, email, password string) (*api.User, error) {
	resp, err := a.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.save(ctx, resp)
}

func (a *authService) SocialLogin(ctx context.Context, provider, idToken, role string) (*api.User, error) {
	resp, err := a.client.SocialLogin(ctx, provider, idToken, role)
	if err != nil {
		return nil, err
	}
	return a.save(ctx, resp)
}

// Logout revokes the session on the server and then forgets it locally.
func (a *authService) Logout(ctx context.Context) error {
	if a.current == nil {
		return client.ErrNotSignedIn
	}
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	return a.forget(ctx)
}

func (a *authService) WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error) {
	if a.current == nil {
		return nil, client.ErrNotSignedIn
	}
	return a.client.WhoAmI(ctx)
}

func (a *authService) ForgotPassword(ctx context.Context, email string) error {
	return a.client.ForgotPassword(ctx, email)
}

func (a *authService) VerifyForgotPassword(ctx context.Context, email, code string) error {
	return a.client.VerifyForgotPasswordOTP(ctx, email, code)
}

func (a *authService) ResetPassword(ctx context.Context, email, password string) error {
	return a.client.ResetPassword(ctx, email, password)
}

func (a *authService) RequestDelete(ctx context.Context) error {
	if a.current == nil {
		return client.ErrNotSignedIn
	}
	return a.client.RequestDeleteOTP(ctx, a.current.Email)
}

// ConfirmDelete finishes account deletion and drops the local session.
func (a *authService) ConfirmDelete(ctx context.Context, code string) (*api.DeleteAccountResponse, error) {
	if a.current == nil {
		return nil, client.ErrNotSignedIn
	}
	resp, err := a.client.VerifyDeleteOTP(ctx, a.current.Email, code)
	if err != nil {
		return nil, err
	}
	if err := a.forget(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *authService) Invite(ctx context.Context, email string) (*api.Invitation, error) {
	if a.current == nil {
		return nil, client.ErrNotSignedIn
	}
	return a.client.SendInvitation(ctx, email)
}

func (a *authService) Accept(ctx context.Context, token string) (*api.Invitation, error) {
	if a.current == nil {
		return nil, client.ErrNotSignedIn
	}
	return a.client.AcceptInvitation(ctx, token)
}

func (a *authService) Invitations(ctx context.Context) ([]api.Invitation, error) {
	if a.current == nil {
		return nil, client.ErrNotSignedIn
	}
	return a.client.ListInvitations(ctx)
}

func (a *authService) Sweep(ctx context.Context) (*api.SweepResponse, error) {
	if a.current == nil {
		return nil, client.ErrNotSignedIn
	}
	return a.client.Sweep(ctx)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
