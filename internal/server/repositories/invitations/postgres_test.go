package invitations

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "token", "invited_by", "email", "accepted", "accepted_at", "accepted_by", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+invitations\s+\(id,\s*token,\s*invited_by,\s*email\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+created_at\s*$`
	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "tok", "u1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	got, err := repo.Create(context.Background(), &models.Invitation{Token: "tok", InvitedBy: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+invitations`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.Invitation{Token: "tok", InvitedBy: "u1", Email: "a@b.c"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestFindByToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Now()
	q := `(?s)^SELECT\s+id,\s*token,.*FROM\s+invitations\s+WHERE\s+token\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("i1", "tok", "u1", nil, true, at, "u2", at))

	got, err := repo.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.AcceptedBy)
	assert.Equal(t, "", got.Email)
	assert.True(t, got.Accepted)
}

func TestFindByToken_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+invitations`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByToken(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAccept(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Now()
	q := `(?s)^UPDATE\s+invitations\s+SET\s+accepted\s*=\s*TRUE,.*WHERE\s+token\s*=\s*\$1\s+AND\s+NOT\s+accepted\s*$`
	mock.ExpectExec(q).WithArgs("tok", at, "u2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("tok", at, "u2").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Accept(context.Background(), "tok", "u2", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Accept(context.Background(), "tok", "u2", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListByInviter(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	q := `(?s)FROM\s+invitations\s+WHERE\s+invited_by\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC`
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("i2", "t2", "u1", "b@x.io", false, nil, nil, now).
			AddRow("i1", "t1", "u1", nil, false, nil, nil, now.Add(-time.Hour)))

	got, err := repo.ListByInviter(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "i2", got[0].ID)
	assert.Equal(t, "b@x.io", got[0].Email)
}

func TestListByInviter_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+invitations`).WillReturnError(errors.New("boom"))

	_, err := repo.ListByInviter(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestDeleteByInviter(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^DELETE\s+FROM\s+invitations\s+WHERE\s+invited_by\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteByInviter(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
