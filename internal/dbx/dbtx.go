// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a helper to run functions inside a transaction, and a Store that lets
// services open transactions without knowing the backing engine.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work executed by WithTx and Store.WithinTx.
type TxFunc func(ctx context.Context, tx DBTX) error

// Store couples a plain connection handle with the ability to run a unit of
// work atomically. Repositories built from Conn() run outside a transaction;
// repositories built from the tx handle passed to WithinTx run inside it.
type Store interface {
	Conn() DBTX
	WithinTx(ctx context.Context, fn TxFunc) error
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    // use tx instead of db
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// SQLStore is a Store over a *sql.DB.
type SQLStore struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewSQLStore wraps db. opts may be nil for the driver default isolation.
func NewSQLStore(db *sql.DB, opts *sql.TxOptions) *SQLStore {
	return &SQLStore{db: db, opts: opts}
}

// Conn returns the underlying *sql.DB.
func (s *SQLStore) Conn() DBTX { return s.db }

// DB exposes the raw handle for migrations and shutdown.
func (s *SQLStore) DB() *sql.DB { return s.db }

// WithinTx runs fn inside a database transaction.
func (s *SQLStore) WithinTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, s.db, s.opts, fn)
}
