package api

import (
	"context"

	"google.golang.org/grpc"
)

// Client is the typed caller side of AuthService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *Client) Signup(ctx context.Context, in *SignupRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c.cc, MethodSignup, in, opts)
}

func (c *Client) ResendSignupOTP(ctx context.Context, in *EmailRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodResendSignupOTP, in, opts)
}

func (c *Client) VerifySignupOTP(ctx context.Context, in *OTPRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, MethodVerifySignupOTP, in, opts)
}

func (c *Client) CreatePassword(ctx context.Context, in *PasswordRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, MethodCreatePassword, in, opts)
}

func (c *Client) SignIn(ctx context.Context, in *PasswordRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, MethodSignIn, in, opts)
}

func (c *Client) ForgotPassword(ctx context.Context, in *EmailRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodForgotPassword, in, opts)
}

func (c *Client) VerifyForgotPasswordOTP(ctx context.Context, in *OTPRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodVerifyForgotPasswordOTP, in, opts)
}

func (c *Client) ResetPassword(ctx context.Context, in *PasswordRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodResetPassword, in, opts)
}

func (c *Client) SocialLogin(ctx context.Context, in *SocialLoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, MethodSocialLogin, in, opts)
}

func (c *Client) RefreshToken(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*Tokens, error) {
	return invoke[Tokens](ctx, c.cc, MethodRefreshToken, in, opts)
}

func (c *Client) Logout(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodLogout, in, opts)
}

func (c *Client) RequestDeleteOTP(ctx context.Context, in *EmailRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRequestDeleteOTP, in, opts)
}

func (c *Client) VerifyDeleteOTP(ctx context.Context, in *OTPRequest, opts ...grpc.CallOption) (*DeleteAccountResponse, error) {
	return invoke[DeleteAccountResponse](ctx, c.cc, MethodVerifyDeleteOTP, in, opts)
}

func (c *Client) SendInvitation(ctx context.Context, in *SendInvitationRequest, opts ...grpc.CallOption) (*Invitation, error) {
	return invoke[Invitation](ctx, c.cc, MethodSendInvitation, in, opts)
}

func (c *Client) AcceptInvitation(ctx context.Context, in *AcceptInvitationRequest, opts ...grpc.CallOption) (*Invitation, error) {
	return invoke[Invitation](ctx, c.cc, MethodAcceptInvitation, in, opts)
}

func (c *Client) ListInvitations(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*InvitationList, error) {
	return invoke[InvitationList](ctx, c.cc, MethodListInvitations, in, opts)
}

func (c *Client) WhoAmI(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*WhoAmIResponse, error) {
	return invoke[WhoAmIResponse](ctx, c.cc, MethodWhoAmI, in, opts)
}

func (c *Client) Sweep(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SweepResponse, error) {
	return invoke[SweepResponse](ctx, c.cc, MethodSweep, in, opts)
}
