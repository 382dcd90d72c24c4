// Package memory is an in-process implementation of the repositories and of
// dbx.Store. Transactions are serialized and roll back to a snapshot on
// error, which gives the same compare-and-set outcomes as the PostgreSQL
// backend. It backs the test suites and the "memory" DSN.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type state struct {
	users       map[string]models.User // by id
	sessions    map[string]models.RefreshToken
	invitations map[string]models.Invitation
	seq         map[string]int64 // insertion order of invitations
}

func newState() state {
	return state{
		users:       map[string]models.User{},
		sessions:    map[string]models.RefreshToken{},
		invitations: map[string]models.Invitation{},
		seq:         map[string]int64{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.invitations {
		c.invitations[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// Store holds all rows in memory.
type Store struct {
	mu      sync.Mutex
	data    state
	nextSeq int64
	now     func() time.Time

	// returned once by the next repository call, see FailNext
	failNext error
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// handle is the DBTX given to repositories. Repositories only use it to
// tell whether they run inside a transaction that already holds the lock.
type handle struct {
	store *Store
	inTx  bool
}

func (h *handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (h *handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (h *handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// Conn returns a handle whose operations each run under the store lock.
func (s *Store) Conn() dbx.DBTX { return &handle{store: s} }

// WithinTx runs fn exclusively. If fn fails or panics every change it made
// is discarded.
func (s *Store) WithinTx(ctx context.Context, fn dbx.TxFunc) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(ctx, &handle{store: s, inTx: true})
}

// FailNext makes the next repository operation return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// SetClock replaces the clock used for CreatedAt and UpdatedAt stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Users implements repomanager.RepositoryManager.
func (s *Store) Users(db dbx.DBTX) users.Repository {
	return &userRepo{s: s, tx: inTx(s, db)}
}

// RefreshTokens implements repomanager.RepositoryManager.
func (s *Store) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &sessionRepo{s: s, tx: inTx(s, db)}
}

// Invitations implements repomanager.RepositoryManager.
func (s *Store) Invitations(db dbx.DBTX) invitations.Repository {
	return &invitationRepo{s: s, tx: inTx(s, db)}
}

func inTx(s *Store, db dbx.DBTX) bool {
	h, ok := db.(*handle)
	return ok && h.store == s && h.inTx
}

// enter takes the lock unless the caller is inside WithinTx, and consumes
// an injected failure.
func (s *Store) enter(tx bool) (func(), error) {
	release := func() {}
	if !tx {
		s.mu.Lock()
		release = s.mu.Unlock
	}
	if err := s.failNext; err != nil {
		s.failNext = nil
		release()
		return nil, dbx.Wrap(err)
	}
	return release, nil
}

// Snapshot accessors used by tests.

// User returns a copy of the stored user with id.
func (s *Store) User(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	return u, ok
}

// Sessions returns copies of every session row of userID.
func (s *Store) Sessions(userID string) []models.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RefreshToken
	for _, t := range s.data.sessions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// ActiveSessions counts non-revoked session rows of userID.
func (s *Store) ActiveSessions(userID string) int {
	n := 0
	for _, t := range s.Sessions(userID) {
		if !t.Revoked {
			n++
		}
	}
	return n
}
