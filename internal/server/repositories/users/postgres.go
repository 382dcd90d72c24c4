package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, name, password_hash, is_verified, role, provider, provider_subject,
		otp_code, otp_expires_at, can_reset_password, can_create_password, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, is_verified, role, provider, provider_subject,
			otp_code, otp_expires_at, can_reset_password, can_create_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Name, nullString(user.PasswordHash), user.IsVerified, string(user.Role),
		string(user.Provider), nullString(user.ProviderSubject), nullString(user.OTPCode), nullTime(user.OTPExpiresAt),
		user.CanResetPassword, user.CanCreatePassword,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", user.Email, common.ErrConflict)
		}
		return nil, dbx.Wrap(err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) LockForUpdate(ctx context.Context, id string) error {
	query := `
		SELECT id FROM users
		WHERE id = $1
		FOR UPDATE
	`
	var got string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return dbx.Wrap(err)
	}
	return nil
}

func (r *PostgresRepository) SetOTP(ctx context.Context, id string, code string, expiresAt time.Time) error {
	query := `
		UPDATE users SET otp_code = $2, otp_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	ok, err := r.execConditional(ctx, query, id, code, expiresAt)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ConsumeOTP(ctx context.Context, id string, code string, effects OTPEffects) (bool, error) {
	query := `
		UPDATE users SET otp_code = NULL, otp_expires_at = NULL,
			is_verified = is_verified OR $3,
			can_reset_password = can_reset_password OR $4,
			updated_at = NOW()
		WHERE id = $1 AND otp_code = $2
	`
	return r.execConditional(ctx, query, id, code, effects.Verify, effects.AllowReset)
}

func (r *PostgresRepository) ResetPassword(ctx context.Context, id string, passwordHash string) (bool, error) {
	query := `
		UPDATE users SET password_hash = $2, can_reset_password = FALSE, can_create_password = FALSE,
			updated_at = NOW()
		WHERE id = $1 AND can_reset_password
	`
	return r.execConditional(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) CreatePassword(ctx context.Context, id string, passwordHash string) (bool, error) {
	query := `
		UPDATE users SET password_hash = $2, can_create_password = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_verified AND password_hash IS NULL
	`
	return r.execConditional(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) LinkProvider(ctx context.Context, id string, provider models.Provider, subject string) (bool, error) {
	query := `
		UPDATE users SET provider = $2, provider_subject = $3, is_verified = TRUE, updated_at = NOW()
		WHERE id = $1 AND provider_subject IS NULL
	`
	ok, err := r.execConditional(ctx, query, id, string(provider), subject)
	if err != nil && dbx.IsUniqueViolation(err) {
		return false, fmt.Errorf("provider identity already linked: %w", common.ErrConflict)
	}
	return ok, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (int64, error) {
	query := `
		DELETE FROM users
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, dbx.Wrap(err)
	}
	return dbx.RowsAffected(res)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.Wrap(err)
	}
	return user, nil
}

func (r *PostgresRepository) execConditional(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, dbx.Wrap(err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u               models.User
		role, provider  string
		passwordHash    sql.NullString
		providerSubject sql.NullString
		otpCode         sql.NullString
		otpExpiresAt    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &passwordHash, &u.IsVerified, &role, &provider, &providerSubject,
		&otpCode, &otpExpiresAt, &u.CanResetPassword, &u.CanCreatePassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.Provider = models.Provider(provider)
	u.PasswordHash = passwordHash.String
	u.ProviderSubject = providerSubject.String
	u.OTPCode = otpCode.String
	if otpExpiresAt.Valid {
		u.OTPExpiresAt = otpExpiresAt.Time
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
