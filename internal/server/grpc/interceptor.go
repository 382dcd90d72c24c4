package grpc

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	UserIDKey ctxKey = "userID"
	RoleKey   ctxKey = "role"
)

// protected lists the methods that require a valid access token.
var protected = map[string]bool{
	api.FullMethod(api.MethodRequestDeleteOTP): true,
	api.FullMethod(api.MethodVerifyDeleteOTP):  true,
	api.FullMethod(api.MethodSendInvitation):   true,
	api.FullMethod(api.MethodAcceptInvitation): true,
	api.FullMethod(api.MethodListInvitations):  true,
	api.FullMethod(api.MethodWhoAmI):           true,
	api.FullMethod(api.MethodSweep):            true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !protected[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := auth.ParseAccessToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		s.logger.Warn(ctx, "access token rejected", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = context.WithValue(ctx, UserIDKey, claims.UserID())
	ctx = context.WithValue(ctx, RoleKey, models.Role(claims.Role))
	return handler(ctx, req)
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic in handler", "method", info.FullMethod,
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

// UserIDFromContext returns the caller placed in ctx by the access token
// interceptor.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

// RoleFromContext returns the caller's role from the access token.
func RoleFromContext(ctx context.Context) (models.Role, bool) {
	r, ok := ctx.Value(RoleKey).(models.Role)
	return r, ok && r != ""
}

// RequireRole fails with PermissionDenied unless the caller holds one of
// roles.
func RequireRole(ctx context.Context, roles ...models.Role) error {
	r, ok := RoleFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing identity")
	}
	for _, want := range roles {
		if r == want {
			return nil
		}
	}
	return status.Error(codes.PermissionDenied, "role not permitted")
}
