package dbx

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Wrap annotates a driver error as a storage failure. The original error
// stays reachable through errors.Is / errors.As.
func Wrap(err error) error {
	return fmt.Errorf("db error: %w: %w", common.ErrUnavailable, err)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// RowsAffected returns the affected row count of res, wrapping failures.
func RowsAffected(res interface{ RowsAffected() (int64, error) }) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Wrap(err)
	}
	return n, nil
}
