package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/session"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	db          *sql.DB
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := client.InitDatabase(ctx, c.StateFile)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient, err := client.NewGophAuthClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	as := services.NewAuthService(apiClient, session.NewSQLiteRepository(db))

	return &App{
		config:      c,
		authService: as,
		db:          db,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}, nil
}

// Run restores the stored session and serves the REPL until the user exits.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		_ = a.authService.Close(ctx)
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	s, err := a.authService.Restore(ctx)
	if err != nil {
		return err
	}
	if s != nil {
		a.printf("Restored session for %s\n", s.Email)
	}

	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.authService.Current() != nil
}

func (a *App) status() string {
	if s := a.authService.Current(); s != nil {
		return s.Email
	}
	return "guest"
}

// call bounds one server round trip by the configured request timeout.
func (a *App) call(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 10 * time.Second
	if a.config != nil && a.config.RequestTimeout > 0 {
		timeout = a.config.RequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.writer(), format, args...)
}

func (a *App) writer() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.writer())
}
