package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_LeavesExactlyOneActiveSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user, _ := e.verifiedUser(t, "a@x.io", "pw")

	for i := 0; i < 3; i++ {
		pair, err := e.sessions.Issue(ctx, user)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.Equal(t, 1, e.store.ActiveSessions(user.ID))
	}
	assert.Len(t, e.store.Sessions(user.ID), 4)
}

func TestIssue_AccessTokenCarriesRole(t *testing.T) {
	e := newEnv(t)
	user, _ := e.verifiedUser(t, "a@x.io", "pw")

	pair, err := e.sessions.Issue(context.Background(), user)
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(pair.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())
	assert.Equal(t, string(models.RoleUser), claims.Role)
	assert.Equal(t, e.clock.now().Add(7*24*time.Hour), pair.RefreshExpiresAt)
}

func TestIssue_UnknownUser(t *testing.T) {
	e := newEnv(t)

	_, err := e.sessions.Issue(context.Background(), &models.User{ID: "ghost"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRotate_R1ToR2(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user, r1 := e.verifiedUser(t, "a@x.io", "pw")

	r2, err := e.sessions.Rotate(ctx, r1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, r1.RefreshToken, r2.RefreshToken)

	var old, current *models.RefreshToken
	for _, s := range e.store.Sessions(user.ID) {
		s := s
		switch s.Token {
		case r1.RefreshToken:
			old = &s
		case r2.RefreshToken:
			current = &s
		}
	}
	require.NotNil(t, old)
	require.NotNil(t, current)
	assert.True(t, old.Revoked)
	assert.False(t, current.Revoked)

	_, err = e.sessions.Rotate(ctx, r1.RefreshToken)
	assert.ErrorIs(t, err, common.ErrAlreadyRevoked)
	assert.Equal(t, 1, e.store.ActiveSessions(user.ID), "replay leaves the live session alone")
}

func TestRotate_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, pair := e.verifiedUser(t, "a@x.io", "pw")

	_, err := e.sessions.Rotate(ctx, "never-issued")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	e.clock.advance(7*24*time.Hour + time.Second)
	_, err = e.sessions.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrExpired)
}

func TestRotate_ConcurrentDoubleRotation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user, pair := e.verifiedUser(t, "a@x.io", "pw")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		revoked int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.sessions.Rotate(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, common.ErrAlreadyRevoked):
				revoked++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, revoked)
	assert.Equal(t, 1, e.store.ActiveSessions(user.ID))
}

func TestRevoke_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user, pair := e.verifiedUser(t, "a@x.io", "pw")

	require.NoError(t, e.sessions.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, e.sessions.Revoke(ctx, pair.RefreshToken))
	assert.Equal(t, 0, e.store.ActiveSessions(user.ID))

	err := e.sessions.Revoke(ctx, "never-issued")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.sessions.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrAlreadyRevoked)
}

func TestSweep(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _ := e.verifiedUser(t, "a@x.io", "pw")
	b, _ := e.verifiedUser(t, "b@x.io", "pw")

	// a's session expires, b re-issues just before the sweep so it stays live.
	e.clock.advance(9 * 24 * time.Hour)
	_, err := e.sessions.Issue(ctx, b)
	require.NoError(t, err)

	res, err := e.sessions.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Revoked, "a's expired session")
	assert.EqualValues(t, 2, res.Purged, "both first sessions expired more than a day ago")
	assert.Len(t, e.store.Sessions(a.ID), 0)
	assert.Equal(t, 0, e.store.ActiveSessions(a.ID))
	assert.Equal(t, 1, e.store.ActiveSessions(b.ID))

	res, err = e.sessions.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Revoked)
	assert.Equal(t, 1, e.store.ActiveSessions(b.ID), "sweep never un-revokes or touches live rows")
}

func TestSessions_StorageFailurePropagates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, pair := e.verifiedUser(t, "a@x.io", "pw")

	e.store.FailNext(errors.New("connection reset"))
	_, err := e.sessions.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnavailable)

	e.store.FailNext(errors.New("connection reset"))
	_, err = e.sessions.Sweep(ctx)
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

// The SQL-backed path must lock the user, revoke, then insert, all in one
// transaction.
func TestIssue_SQLStatementOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+id\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectExec(`UPDATE\s+refresh_sessions\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+user_id`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT\s+INTO\s+refresh_sessions`).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	s := newSQLSessions(db)
	pair, err := s.Issue(context.Background(), &models.User{ID: "u1", Role: models.RoleUser})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotate_SQLCompareAndSetLoses(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_sessions\s+WHERE\s+token`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "revoked", "created_at"}).
			AddRow("s1", "u1", time.Now().Add(time.Hour), false, time.Now()))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR\s+UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectExec(`UPDATE\s+refresh_sessions\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+token`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	s := newSQLSessions(db)
	_, err = s.Rotate(context.Background(), "r1")
	assert.ErrorIs(t, err, common.ErrAlreadyRevoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newSQLSessions(db *sql.DB) *SessionService {
	var store dbx.Store = dbx.NewSQLStore(db, nil)
	var repos repomanager.RepositoryManager = repomanager.NewPostgresRepositoryManager()
	return NewSessionService(store, repos, SessionConfig{
		Secret:     testSecret,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, logging.Nop())
}
