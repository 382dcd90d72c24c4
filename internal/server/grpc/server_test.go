package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/mailer"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var e2eSecret = []byte("e2e-secret")

// startServer serves real services over an in-memory listener.
func startServer(t *testing.T) *api.Client {
	t.Helper()
	return startServerWithRefreshTTL(t, time.Hour)
}

func startServerWithRefreshTTL(t *testing.T, refreshTTL time.Duration) *api.Client {
	t.Helper()

	store := memory.New()
	log := logging.Nop()
	sessions := services.NewSessionService(store, store, services.SessionConfig{
		Secret:     e2eSecret,
		AccessTTL:  time.Minute,
		RefreshTTL: refreshTTL,
		Retention:  time.Hour,
	}, log)
	accounts := services.NewAccountService(services.AccountDeps{
		Store:    store,
		Repos:    store,
		Sessions: sessions,
		OTP:      otp.NewManager(otp.WithGenerator(otp.Fixed("123456"))),
		Hasher:   cryptox.NewBcryptHasher(bcrypt.MinCost),
		Mailer:   &mailer.Recorder{},
		Logger:   log,
	}, services.AccountConfig{})
	invites := services.NewInvitationService(store, store, &mailer.Recorder{}, log)

	srv := NewGRPCServer("bufnet", log, Services{Accounts: accounts, Sessions: sessions, Invitations: invites}, e2eSecret)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return api.NewClient(conn)
}

func bearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

func TestEndToEnd_SignupRotateLogout(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	ping, err := c.Ping(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "OK", ping.Status)

	_, err = c.Signup(ctx, &api.SignupRequest{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)

	_, err = c.Signup(ctx, &api.SignupRequest{Email: "a@x.io", Password: "pw"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	auth, err := c.VerifySignupOTP(ctx, &api.OTPRequest{Email: "a@x.io", Code: "123456"})
	require.NoError(t, err)
	assert.True(t, auth.User.IsVerified)

	me, err := c.WhoAmI(bearer(ctx, auth.Tokens.AccessToken), &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, auth.User.ID, me.UserID)
	assert.Equal(t, "user", me.Role)

	_, err = c.WhoAmI(ctx, &api.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	rotated, err := c.RefreshToken(ctx, &api.RefreshRequest{RefreshToken: auth.Tokens.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, auth.Tokens.RefreshToken, rotated.RefreshToken)

	_, err = c.RefreshToken(ctx, &api.RefreshRequest{RefreshToken: auth.Tokens.RefreshToken})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "replayed token")
	replayMsg := status.Convert(err).Message()

	_, err = c.RefreshToken(ctx, &api.RefreshRequest{RefreshToken: "never-issued"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "unknown token")
	assert.Equal(t, replayMsg, status.Convert(err).Message())

	_, err = c.Sweep(bearer(ctx, rotated.AccessToken), &api.Empty{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = c.Logout(ctx, &api.RefreshRequest{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err)
	_, err = c.Logout(ctx, &api.RefreshRequest{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err, "logout is idempotent")
}

func TestEndToEnd_ExpiredRefreshToken(t *testing.T) {
	c := startServerWithRefreshTTL(t, 10*time.Millisecond)
	ctx := context.Background()

	_, err := c.Signup(ctx, &api.SignupRequest{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	auth, err := c.VerifySignupOTP(ctx, &api.OTPRequest{Email: "a@x.io", Code: "123456"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = c.RefreshToken(ctx, &api.RefreshRequest{RefreshToken: auth.Tokens.RefreshToken})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "invalid or expired refresh token", status.Convert(err).Message())
}

func TestEndToEnd_InvitationsAndDeletion(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	_, err := c.Signup(ctx, &api.SignupRequest{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	auth, err := c.VerifySignupOTP(ctx, &api.OTPRequest{Email: "a@x.io", Code: "123456"})
	require.NoError(t, err)
	authed := bearer(ctx, auth.Tokens.AccessToken)

	inv, err := c.SendInvitation(authed, &api.SendInvitationRequest{Email: "friend@x.io"})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Token)

	list, err := c.ListInvitations(authed, &api.Empty{})
	require.NoError(t, err)
	assert.Len(t, list.Invitations, 1)

	_, err = c.RequestDeleteOTP(authed, &api.EmailRequest{Email: "a@x.io"})
	require.NoError(t, err)
	del, err := c.VerifyDeleteOTP(authed, &api.OTPRequest{Email: "a@x.io", Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, auth.User.ID, del.UserID)
	assert.EqualValues(t, 1, del.SessionsDeleted)
	assert.EqualValues(t, 1, del.InvitationsDeleted)

	_, err = c.SignIn(ctx, &api.PasswordRequest{Email: "a@x.io", Password: "pw"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), Services{}, []byte("secret"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), Services{}, []byte("secret"))
	assert.Error(t, srv.Run(context.Background()))
}
