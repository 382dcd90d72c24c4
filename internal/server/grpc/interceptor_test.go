package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(secret string) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), Services{}, []byte(secret))
}

func withToken(token string) context.Context {
	md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
	return metadata.NewIncomingContext(context.Background(), md)
}

var protectedInfo = &grpc.UnaryServerInfo{FullMethod: api.FullMethod(api.MethodWhoAmI)}

func TestInterceptor_PublicMethodWithoutToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: api.FullMethod(api.MethodSignIn)}

	called := false
	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")

	_, err := s.accessTokenInterceptor(context.Background(), nil, protectedInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing token", status.Convert(err).Message())
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer("secret")
	other, err := auth.GenerateAccessToken("u1", "user", []byte("other-secret"), time.Hour)
	require.NoError(t, err)

	for _, token := range []string{"not-a-valid-jwt", other} {
		_, err := s.accessTokenInterceptor(withToken(token), nil, protectedInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
			t.Fatal("handler should not be called for invalid token")
			return nil, nil
		})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
		assert.Equal(t, common.ErrInvalidToken.Error(), status.Convert(err).Message())
	}
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	s := newTestServer("secret")
	token, err := auth.GenerateAccessToken("u1", "user", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	_, err = s.accessTokenInterceptor(withToken(token), nil, protectedInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, nil
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, common.ErrTokenExpired.Error(), status.Convert(err).Message(), "clients refresh on this message")
}

func TestInterceptor_ValidTokenSetsIdentity(t *testing.T) {
	s := newTestServer("super-secret")
	token, err := auth.GenerateAccessToken("user-123", "trainer", []byte("super-secret"), time.Hour)
	require.NoError(t, err)

	var (
		gotID   string
		gotRole models.Role
	)
	_, err = s.accessTokenInterceptor(withToken(token), nil, protectedInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
		gotID, _ = UserIDFromContext(ctx)
		gotRole, _ = RoleFromContext(ctx)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "user-123", gotID)
	assert.Equal(t, models.RoleTrainer, gotRole)
}

func TestRecoveryInterceptor(t *testing.T) {
	s := newTestServer("secret")

	_, err := s.recoveryInterceptor(context.Background(), nil, protectedInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRequireRole(t *testing.T) {
	admin := context.WithValue(context.Background(), RoleKey, models.RoleAdmin)
	user := context.WithValue(context.Background(), RoleKey, models.RoleUser)

	assert.NoError(t, RequireRole(admin, models.RoleAdmin))
	assert.NoError(t, RequireRole(user, models.RoleAdmin, models.RoleUser))
	assert.Equal(t, codes.PermissionDenied, status.Code(RequireRole(user, models.RoleAdmin)))
	assert.Equal(t, codes.Unauthenticated, status.Code(RequireRole(context.Background(), models.RoleAdmin)))
}
