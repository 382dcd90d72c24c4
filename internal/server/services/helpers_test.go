package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mailer"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/social"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	store    *memory.Store
	sessions *SessionService
	accounts *AccountService
	invites  *InvitationService
	mail     *mailer.Recorder
	social   *social.Registry
	clock    *fakeClock
}

type envOption func(*envConfig)

type envConfig struct {
	account AccountConfig
	repos   func(*memory.Store) repomanager.RepositoryManager
	code    string
}

func withSignupMode(m config.SignupMode) envOption {
	return func(c *envConfig) { c.account.SignupMode = m }
}

func withRepos(fn func(*memory.Store) repomanager.RepositoryManager) envOption {
	return func(c *envConfig) { c.repos = fn }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	ec := envConfig{
		account: AccountConfig{SignupMode: config.SignupWithPassword, DefaultRole: models.RoleUser},
		repos:   func(s *memory.Store) repomanager.RepositoryManager { return s },
		code:    "123456",
	}
	for _, o := range opts {
		o(&ec)
	}

	clock := &fakeClock{t: time.Now()}
	store := memory.New()
	store.SetClock(clock.now)
	repos := ec.repos(store)
	log := logging.Nop()
	rec := &mailer.Recorder{}
	reg := social.NewRegistry()

	sessions := NewSessionService(store, repos, SessionConfig{
		Secret:     testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Retention:  24 * time.Hour,
	}, log)
	sessions.now = clock.now

	accounts := NewAccountService(AccountDeps{
		Store:    store,
		Repos:    repos,
		Sessions: sessions,
		OTP:      otp.NewManager(otp.WithGenerator(otp.Fixed(ec.code)), otp.WithClock(clock.now)),
		Hasher:   cryptox.NewBcryptHasher(bcrypt.MinCost),
		Mailer:   rec,
		Social:   reg,
		Logger:   log,
	}, ec.account)
	accounts.now = clock.now

	invites := NewInvitationService(store, repos, rec, log)
	invites.now = clock.now

	return &env{
		store:    store,
		sessions: sessions,
		accounts: accounts,
		invites:  invites,
		mail:     rec,
		social:   reg,
		clock:    clock,
	}
}

// verifiedUser runs signup and verification and returns the stored account
// with its first token pair.
func (e *env) verifiedUser(t *testing.T, email, password string) (*models.User, *TokenPair) {
	t.Helper()
	ctx := context.Background()

	_, err := e.accounts.Signup(ctx, SignupInput{Email: email, Password: password})
	require.NoError(t, err)
	msg, ok := e.mail.Last()
	require.True(t, ok)

	res, err := e.accounts.VerifySignupOTP(ctx, email, msg.Code)
	require.NoError(t, err)
	return res.User, res.Tokens
}
