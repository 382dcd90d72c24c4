// Package server wires configuration, storage, services and transports into
// the gophauth process and runs it until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/jobs"
	"github.com/dmitrijs2005/gophauth/internal/server/mailer"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/social"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	sessions    *services.SessionService
	accounts    *services.AccountService
	invitations *services.InvitationService
	scheduler   *jobs.Scheduler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := newLogger(c.LogLevel)

	store, repos, db, err := openStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	secret := []byte(c.SecretKey)
	sessions := services.NewSessionService(store, repos, services.SessionConfig{
		Secret:     secret,
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
		Retention:  c.SessionRetention,
	}, logger)

	mail := newMailer(c, logger)

	accounts := services.NewAccountService(services.AccountDeps{
		Store:    store,
		Repos:    repos,
		Sessions: sessions,
		OTP:      otp.NewManager(otp.WithTTL(c.OTPValidityDuration)),
		Hasher:   cryptox.NewBcryptHasher(c.BcryptCost),
		Mailer:   mail,
		Social:   newSocialRegistry(c),
		Logger:   logger,
	}, services.AccountConfig{SignupMode: c.SignupMode, DefaultRole: c.DefaultRole})

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		sessions:    sessions,
		accounts:    accounts,
		invitations: services.NewInvitationService(store, repos, mail, logger),
		scheduler:   jobs.NewScheduler(sessions, c.SweepSchedule, logger),
	}, nil
}

func newLogger(level string) logging.Logger {
	return logging.NewJSONLogger(os.Stdout, logging.ParseLevel(level))
}

// openStorage returns the in-memory store for config.MemoryDSN and a
// migrated PostgreSQL pool otherwise.
func openStorage(ctx context.Context, dsn string) (dbx.Store, repomanager.RepositoryManager, *sql.DB, error) {
	if dsn == config.MemoryDSN {
		m := memory.New()
		return m, m, nil, nil
	}
	db, rm, err := repomanager.Open(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	return dbx.NewSQLStore(db, nil), rm, db, nil
}

func newMailer(c *config.Config, logger logging.Logger) mailer.Sender {
	if c.SMTPAddr == "" {
		return mailer.NewLogSender(logger)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Addr:     c.SMTPAddr,
		From:     c.SMTPFrom,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
	})
}

// newSocialRegistry registers one verifier per configured client id, in
// order, for each provider.
func newSocialRegistry(c *config.Config) *social.Registry {
	reg := social.NewRegistry()
	client := &http.Client{Timeout: 10 * time.Second}

	add := func(p models.Provider, jwksURL string, issuers, audiences []string) {
		if len(audiences) == 0 {
			return
		}
		keys := social.NewKeySet(jwksURL, client)
		vs := make([]social.Verifier, 0, len(audiences))
		for _, aud := range audiences {
			vs = append(vs, &social.JWTVerifier{Keys: keys, Issuers: issuers, Audience: aud})
		}
		reg.Register(p, vs...)
	}
	add(models.ProviderGoogle, c.GoogleJWKSURL, social.GoogleIssuers, c.GoogleAudiences)
	add(models.ProviderApple, c.AppleJWKSURL, social.AppleIssuers, c.AppleAudiences)
	return reg
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, gs.Services{
		Accounts:    app.accounts,
		Sessions:    app.sessions,
		Invitations: app.invitations,
	}, []byte(app.config.SecretKey))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if err := app.scheduler.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.scheduler.Stop(stopCtx); err != nil {
		app.logger.Warn(stopCtx, "sweeper did not stop in time", "error", err)
	}
	return app.close()
}

func (app *App) close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}
