// Package grpc exposes the account, session and invitation services over
// gRPC using the JSON codec from internal/api.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
)

type accountService interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
	ResendSignupOTP(ctx context.Context, email string) error
	VerifySignupOTP(ctx context.Context, email string, code string) (*services.AuthResult, error)
	CreatePassword(ctx context.Context, email string, password string) (*services.AuthResult, error)
	SignIn(ctx context.Context, email string, password string) (*services.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyForgotPasswordOTP(ctx context.Context, email string, code string) error
	ResetPassword(ctx context.Context, email string, newPassword string) error
	RequestDeleteOTP(ctx context.Context, callerID string, email string) error
	VerifyDeleteOTP(ctx context.Context, callerID string, email string, code string) (*services.CascadeResult, error)
	SocialLogin(ctx context.Context, provider models.Provider, rawToken string, role models.Role) (*services.AuthResult, error)
}

type sessionService interface {
	Rotate(ctx context.Context, presented string) (*services.TokenPair, error)
	Revoke(ctx context.Context, presented string) error
	Sweep(ctx context.Context) (services.SweepResult, error)
}

type invitationService interface {
	Send(ctx context.Context, inviterID string, email string) (*models.Invitation, error)
	Accept(ctx context.Context, token string, acceptedBy string) (*models.Invitation, error)
	ListMine(ctx context.Context, inviterID string) ([]models.Invitation, error)
}

// Services bundles the domain services served over gRPC.
type Services struct {
	Accounts    accountService
	Sessions    sessionService
	Invitations invitationService
}

type GRPCServer struct {
	address     string
	accounts    accountService
	sessions    sessionService
	invitations invitationService
	logger      logging.Logger
	jwtSecret   []byte
}

var _ api.Server = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, svc Services, secretKey []byte) *GRPCServer {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		accounts:    svc.Accounts,
		sessions:    svc.Sessions,
		invitations: svc.Invitations,
		jwtSecret:   secretKey,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.accessTokenInterceptor),
		grpc.ForceServerCodec(api.Codec()),
	)
	api.RegisterServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
