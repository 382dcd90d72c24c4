package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *api.Empty) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) Signup(ctx context.Context, req *api.SignupRequest) (*api.UserResponse, error) {
	u, err := s.accounts.Signup(ctx, services.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     models.Role(req.Role),
		Referral: req.Referral,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "signup", err)
	}
	return &api.UserResponse{User: toUser(u)}, nil
}

func (s *GRPCServer) ResendSignupOTP(ctx context.Context, req *api.EmailRequest) (*api.Empty, error) {
	if err := s.accounts.ResendSignupOTP(ctx, req.Email); err != nil {
		return nil, s.toStatus(ctx, "resend signup otp", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) VerifySignupOTP(ctx context.Context, req *api.OTPRequest) (*api.AuthResponse, error) {
	res, err := s.accounts.VerifySignupOTP(ctx, req.Email, req.Code)
	if err != nil {
		return nil, s.toStatus(ctx, "verify signup otp", err)
	}
	return toAuth(res), nil
}

func (s *GRPCServer) CreatePassword(ctx context.Context, req *api.PasswordRequest) (*api.AuthResponse, error) {
	res, err := s.accounts.CreatePassword(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "create password", err)
	}
	return toAuth(res), nil
}

func (s *GRPCServer) SignIn(ctx context.Context, req *api.PasswordRequest) (*api.AuthResponse, error) {
	res, err := s.accounts.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "sign in", err)
	}
	return toAuth(res), nil
}

func (s *GRPCServer) ForgotPassword(ctx context.Context, req *api.EmailRequest) (*api.Empty, error) {
	if err := s.accounts.ForgotPassword(ctx, req.Email); err != nil {
		return nil, s.toStatus(ctx, "forgot password", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) VerifyForgotPasswordOTP(ctx context.Context, req *api.OTPRequest) (*api.Empty, error) {
	if err := s.accounts.VerifyForgotPasswordOTP(ctx, req.Email, req.Code); err != nil {
		return nil, s.toStatus(ctx, "verify forgot password otp", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *api.PasswordRequest) (*api.Empty, error) {
	if err := s.accounts.ResetPassword(ctx, req.Email, req.Password); err != nil {
		return nil, s.toStatus(ctx, "reset password", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) SocialLogin(ctx context.Context, req *api.SocialLoginRequest) (*api.AuthResponse, error) {
	res, err := s.accounts.SocialLogin(ctx, models.Provider(req.Provider), req.IDToken, models.Role(req.Role))
	if err != nil {
		return nil, s.toStatus(ctx, "social login", err)
	}
	return toAuth(res), nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshRequest) (*api.Tokens, error) {
	pair, err := s.sessions.Rotate(ctx, req.RefreshToken)
	if err != nil {
		if rejectedRefresh(err) {
			return nil, status.Error(codes.Unauthenticated, errRefreshRejected)
		}
		return nil, s.toStatus(ctx, "refresh token", err)
	}
	return toTokens(pair), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.RefreshRequest) (*api.Empty, error) {
	if err := s.sessions.Revoke(ctx, req.RefreshToken); err != nil {
		return nil, s.toStatus(ctx, "logout", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) RequestDeleteOTP(ctx context.Context, req *api.EmailRequest) (*api.Empty, error) {
	caller, _ := UserIDFromContext(ctx)
	if err := s.accounts.RequestDeleteOTP(ctx, caller, req.Email); err != nil {
		return nil, s.toStatus(ctx, "request delete otp", err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) VerifyDeleteOTP(ctx context.Context, req *api.OTPRequest) (*api.DeleteAccountResponse, error) {
	caller, _ := UserIDFromContext(ctx)
	res, err := s.accounts.VerifyDeleteOTP(ctx, caller, req.Email, req.Code)
	if err != nil {
		return nil, s.toStatus(ctx, "verify delete otp", err)
	}
	return &api.DeleteAccountResponse{
		UserID:             res.UserID,
		SessionsDeleted:    res.SessionsDeleted,
		InvitationsDeleted: res.InvitationsDeleted,
	}, nil
}

func (s *GRPCServer) SendInvitation(ctx context.Context, req *api.SendInvitationRequest) (*api.Invitation, error) {
	caller, _ := UserIDFromContext(ctx)
	inv, err := s.invitations.Send(ctx, caller, req.Email)
	if err != nil {
		return nil, s.toStatus(ctx, "send invitation", err)
	}
	return toInvitation(*inv), nil
}

func (s *GRPCServer) AcceptInvitation(ctx context.Context, req *api.AcceptInvitationRequest) (*api.Invitation, error) {
	caller, _ := UserIDFromContext(ctx)
	inv, err := s.invitations.Accept(ctx, req.Token, caller)
	if err != nil {
		return nil, s.toStatus(ctx, "accept invitation", err)
	}
	return toInvitation(*inv), nil
}

func (s *GRPCServer) ListInvitations(ctx context.Context, req *api.Empty) (*api.InvitationList, error) {
	caller, _ := UserIDFromContext(ctx)
	list, err := s.invitations.ListMine(ctx, caller)
	if err != nil {
		return nil, s.toStatus(ctx, "list invitations", err)
	}
	out := &api.InvitationList{Invitations: make([]api.Invitation, 0, len(list))}
	for _, inv := range list {
		out.Invitations = append(out.Invitations, *toInvitation(inv))
	}
	return out, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, req *api.Empty) (*api.WhoAmIResponse, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	role, _ := RoleFromContext(ctx)
	return &api.WhoAmIResponse{UserID: id, Role: string(role)}, nil
}

// Sweep runs the session sweep on demand. Admins only.
func (s *GRPCServer) Sweep(ctx context.Context, req *api.Empty) (*api.SweepResponse, error) {
	if err := RequireRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	res, err := s.sessions.Sweep(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "sweep", err)
	}
	return &api.SweepResponse{Revoked: res.Revoked, Purged: res.Purged}, nil
}

func toUser(u *models.User) *api.User {
	if u == nil {
		return nil
	}
	return &api.User{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		Role:              string(u.Role),
		Provider:          string(u.Provider),
		IsVerified:        u.IsVerified,
		CanCreatePassword: u.CanCreatePassword,
		CreatedAt:         u.CreatedAt,
	}
}

func toTokens(p *services.TokenPair) *api.Tokens {
	if p == nil {
		return nil
	}
	return &api.Tokens{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func toAuth(r *services.AuthResult) *api.AuthResponse {
	return &api.AuthResponse{User: toUser(r.User), Tokens: toTokens(r.Tokens)}
}

func toInvitation(inv models.Invitation) *api.Invitation {
	out := &api.Invitation{
		ID:         inv.ID,
		Token:      inv.Token,
		Email:      inv.Email,
		Accepted:   inv.Accepted,
		AcceptedBy: inv.AcceptedBy,
		CreatedAt:  inv.CreatedAt,
	}
	if !inv.AcceptedAt.IsZero() {
		at := inv.AcceptedAt
		out.AcceptedAt = &at
	}
	return out
}
