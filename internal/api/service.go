package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gophauth.v1.AuthService"

const (
	MethodPing                    = "Ping"
	MethodSignup                  = "Signup"
	MethodResendSignupOTP         = "ResendSignupOTP"
	MethodVerifySignupOTP         = "VerifySignupOTP"
	MethodCreatePassword          = "CreatePassword"
	MethodSignIn                  = "SignIn"
	MethodForgotPassword          = "ForgotPassword"
	MethodVerifyForgotPasswordOTP = "VerifyForgotPasswordOTP"
	MethodResetPassword           = "ResetPassword"
	MethodSocialLogin             = "SocialLogin"
	MethodRefreshToken            = "RefreshToken"
	MethodLogout                  = "Logout"
	MethodRequestDeleteOTP        = "RequestDeleteOTP"
	MethodVerifyDeleteOTP         = "VerifyDeleteOTP"
	MethodSendInvitation          = "SendInvitation"
	MethodAcceptInvitation        = "AcceptInvitation"
	MethodListInvitations         = "ListInvitations"
	MethodWhoAmI                  = "WhoAmI"
	MethodSweep                   = "Sweep"
)

// FullMethod returns the "/service/method" path gRPC reports to interceptors.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Server is implemented by the gophauth gRPC adapter.
type Server interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
	Signup(context.Context, *SignupRequest) (*UserResponse, error)
	ResendSignupOTP(context.Context, *EmailRequest) (*Empty, error)
	VerifySignupOTP(context.Context, *OTPRequest) (*AuthResponse, error)
	CreatePassword(context.Context, *PasswordRequest) (*AuthResponse, error)
	SignIn(context.Context, *PasswordRequest) (*AuthResponse, error)
	ForgotPassword(context.Context, *EmailRequest) (*Empty, error)
	VerifyForgotPasswordOTP(context.Context, *OTPRequest) (*Empty, error)
	ResetPassword(context.Context, *PasswordRequest) (*Empty, error)
	SocialLogin(context.Context, *SocialLoginRequest) (*AuthResponse, error)
	RefreshToken(context.Context, *RefreshRequest) (*Tokens, error)
	Logout(context.Context, *RefreshRequest) (*Empty, error)
	RequestDeleteOTP(context.Context, *EmailRequest) (*Empty, error)
	VerifyDeleteOTP(context.Context, *OTPRequest) (*DeleteAccountResponse, error)
	SendInvitation(context.Context, *SendInvitationRequest) (*Invitation, error)
	AcceptInvitation(context.Context, *AcceptInvitationRequest) (*Invitation, error)
	ListInvitations(context.Context, *Empty) (*InvitationList, error)
	WhoAmI(context.Context, *Empty) (*WhoAmIResponse, error)
	Sweep(context.Context, *Empty) (*SweepResponse, error)
}

// unary adapts a typed Server method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes AuthService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, Server.Ping),
		unary(MethodSignup, Server.Signup),
		unary(MethodResendSignupOTP, Server.ResendSignupOTP),
		unary(MethodVerifySignupOTP, Server.VerifySignupOTP),
		unary(MethodCreatePassword, Server.CreatePassword),
		unary(MethodSignIn, Server.SignIn),
		unary(MethodForgotPassword, Server.ForgotPassword),
		unary(MethodVerifyForgotPasswordOTP, Server.VerifyForgotPasswordOTP),
		unary(MethodResetPassword, Server.ResetPassword),
		unary(MethodSocialLogin, Server.SocialLogin),
		unary(MethodRefreshToken, Server.RefreshToken),
		unary(MethodLogout, Server.Logout),
		unary(MethodRequestDeleteOTP, Server.RequestDeleteOTP),
		unary(MethodVerifyDeleteOTP, Server.VerifyDeleteOTP),
		unary(MethodSendInvitation, Server.SendInvitation),
		unary(MethodAcceptInvitation, Server.AcceptInvitation),
		unary(MethodListInvitations, Server.ListInvitations),
		unary(MethodWhoAmI, Server.WhoAmI),
		unary(MethodSweep, Server.Sweep),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/api",
}

// RegisterServer attaches srv to a gRPC registrar.
func RegisterServer(r grpc.ServiceRegistrar, srv Server) {
	r.RegisterService(&ServiceDesc, srv)
}
