package invitations

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

const invitationColumns = `id, token, invited_by, email, accepted, accepted_at, accepted_by, created_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}

	query := `
		INSERT INTO invitations (id, token, invited_by, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, inv.ID, inv.Token, inv.InvitedBy, nullString(inv.Email)).
		Scan(&inv.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, dbx.Wrap(err)
	}
	return inv, nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations
		WHERE token = $1
	`
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.Wrap(err)
	}
	return inv, nil
}

func (r *PostgresRepository) Accept(ctx context.Context, token string, acceptedBy string, at time.Time) (bool, error) {
	query := `
		UPDATE invitations
		SET accepted = TRUE, accepted_at = $2, accepted_by = $3
		WHERE token = $1 AND NOT accepted
	`
	res, err := r.db.ExecContext(ctx, query, token, at, nullString(acceptedBy))
	if err != nil {
		return false, dbx.Wrap(err)
	}
	n, err := dbx.RowsAffected(res)
	return n > 0, err
}

func (r *PostgresRepository) ListByInviter(ctx context.Context, inviterID string) ([]models.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations
		WHERE invited_by = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, inviterID)
	if err != nil {
		return nil, dbx.Wrap(err)
	}
	defer rows.Close()

	var out []models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, dbx.Wrap(err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Wrap(err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteByInviter(ctx context.Context, inviterID string) (int64, error) {
	query := `
		DELETE FROM invitations
		WHERE invited_by = $1
	`
	res, err := r.db.ExecContext(ctx, query, inviterID)
	if err != nil {
		return 0, dbx.Wrap(err)
	}
	return dbx.RowsAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row scanner) (*models.Invitation, error) {
	var (
		inv        models.Invitation
		email      sql.NullString
		acceptedAt sql.NullTime
		acceptedBy sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.Token, &inv.InvitedBy, &email, &inv.Accepted, &acceptedAt, &acceptedBy, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.Email = email.String
	inv.AcceptedAt = acceptedAt.Time
	inv.AcceptedBy = acceptedBy.String
	return &inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
