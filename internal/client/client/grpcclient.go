package client

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *api.Client

	mu       sync.Mutex
	tokens   api.Tokens
	onRotate func(api.Tokens)
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func isExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == api.FullMethod(api.MethodRefreshToken) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	current := s.Tokens()
	if current.AccessToken != "" {
		ctx = withAccessToken(ctx, current.AccessToken)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil || !isExpired(err) || current.RefreshToken == "" {
		return err
	}

	rotated, rerr := s.client.RefreshToken(ctx, &api.RefreshRequest{RefreshToken: current.RefreshToken})
	if rerr != nil {
		return rerr
	}
	s.SetTokens(*rotated)
	s.notifyRotate(*rotated)

	ctx = withAccessToken(ctx, rotated.AccessToken)
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewGophAuthClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(extra ...grpc.DialOption) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, extra...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) SetTokens(t api.Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func (s *GRPCClient) Tokens() api.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCClient) OnRotate(fn func(api.Tokens)) {
	s.mu.Lock()
	s.onRotate = fn
	s.mu.Unlock()
}

func (s *GRPCClient) notifyRotate(t api.Tokens) {
	s.mu.Lock()
	fn := s.onRotate
	s.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// signedIn stores the pair returned by a sign-in flow.
func (s *GRPCClient) signedIn(resp *api.AuthResponse, err error) (*api.AuthResponse, error) {
	if err != nil {
		return nil, mapError(err)
	}
	if resp.Tokens != nil {
		s.SetTokens(*resp.Tokens)
	}
	return resp, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.Empty{})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Signup(ctx context.Context, req *api.SignupRequest) (*api.User, error) {
	resp, err := s.client.Signup(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.User, nil
}

func (s *GRPCClient) ResendSignupOTP(ctx context.Context, email string) error {
	_, err := s.client.ResendSignupOTP(ctx, &api.EmailRequest{Email: email})
	return mapError(err)
}

func (s *GRPCClient) VerifySignupOTP(ctx context.Context, email, code string) (*api.AuthResponse, error) {
	return s.signedIn(s.client.VerifySignupOTP(ctx, &api.OTPRequest{Email: email, Code: code}))
}

func (s *GRPCClient) CreatePassword(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	return s.signedIn(s.client.CreatePassword(ctx, &api.PasswordRequest{Email: email, Password: password}))
}

func (s *GRPCClient) SignIn(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	return s.signedIn(s.client.SignIn(ctx, &api.PasswordRequest{Email: email, Password: password}))
}

func (s *GRPCClient) SocialLogin(ctx context.Context, provider, idToken, role string) (*api.AuthResponse, error) {
	return s.signedIn(s.client.SocialLogin(ctx, &api.SocialLoginRequest{Provider: provider, IDToken: idToken, Role: role}))
}

func (s *GRPCClient) ForgotPassword(ctx context.Context, email string) error {
	_, err := s.client.ForgotPassword(ctx, &api.EmailRequest{Email: email})
	return mapError(err)
}

func (s *GRPCClient) VerifyForgotPasswordOTP(ctx context.Context, email, code string) error {
	_, err := s.client.VerifyForgotPasswordOTP(ctx, &api.OTPRequest{Email: email, Code: code})
	return mapError(err)
}

func (s *GRPCClient) ResetPassword(ctx context.Context, email, password string) error {
	_, err := s.client.ResetPassword(ctx, &api.PasswordRequest{Email: email, Password: password})
	return mapError(err)
}

// Logout revokes the current refresh token and forgets the pair.
func (s *GRPCClient) Logout(ctx context.Context) error {
	t := s.Tokens()
	if t.RefreshToken == "" {
		return ErrNotSignedIn
	}
	if _, err := s.client.Logout(ctx, &api.RefreshRequest{RefreshToken: t.RefreshToken}); err != nil {
		return mapError(err)
	}
	s.SetTokens(api.Tokens{})
	return nil
}

func (s *GRPCClient) RequestDeleteOTP(ctx context.Context, email string) error {
	_, err := s.client.RequestDeleteOTP(ctx, &api.EmailRequest{Email: email})
	return mapError(err)
}

func (s *GRPCClient) VerifyDeleteOTP(ctx context.Context, email, code string) (*api.DeleteAccountResponse, error) {
	resp, err := s.client.VerifyDeleteOTP(ctx, &api.OTPRequest{Email: email, Code: code})
	if err != nil {
		return nil, mapError(err)
	}
	s.SetTokens(api.Tokens{})
	return resp, nil
}

func (s *GRPCClient) SendInvitation(ctx context.Context, email string) (*api.Invitation, error) {
	resp, err := s.client.SendInvitation(ctx, &api.SendInvitationRequest{Email: email})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) AcceptInvitation(ctx context.Context, token string) (*api.Invitation, error) {
	resp, err := s.client.AcceptInvitation(ctx, &api.AcceptInvitationRequest{Token: token})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ListInvitations(ctx context.Context) ([]api.Invitation, error) {
	resp, err := s.client.ListInvitations(ctx, &api.Empty{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Invitations, nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error) {
	resp, err := s.client.WhoAmI(ctx, &api.Empty{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Sweep(ctx context.Context) (*api.SweepResponse, error) {
	resp, err := s.client.Sweep(ctx, &api.Empty{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}
