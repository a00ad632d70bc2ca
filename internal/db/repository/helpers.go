// Package repository implements the catalog store and the constraint
// framework on top of the SQLite row store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"mdms/internal/domain"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories execute
// statements through.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a DBTX that can also open transactions.
type DB interface {
	DBTX
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// withTx runs fn inside a transaction and commits when fn succeeds.
func withTx(ctx context.Context, db DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// mapDBError passes domain errors through, translates "no rows" into
// NotFoundError and duplicate keys into ConflictError, and wraps anything
// else as a StoreError for op.
func mapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		notFound    *domain.NotFoundError
		validation  *domain.ValidationError
		collision   *domain.IDCollisionError
		conflict    *domain.ConflictError
		unsupported *domain.UnsupportedConstraintError
		storeErr    *domain.StoreError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &validation), errors.As(err, &collision),
		errors.As(err, &conflict), errors.As(err, &unsupported), errors.As(err, &storeErr):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound("%s: not found", op)
	case isUniqueViolation(err):
		return domain.ErrConflict("%s: already exists", op)
	default:
		return domain.ErrStore(op, err)
	}
}

// toID converts a stored INTEGER back into an identifier.
func toID(v int64) domain.ID { return domain.ID(uint32(v)) }

func idArgs(ids []domain.ID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	return args
}

// sqliteTimestamp is the layout of SQLite's datetime('now').
const sqliteTimestamp = "2006-01-02 15:04:05"

// parseTimestamp parses a timestamp column written by SQLite.
func parseTimestamp(op, value string) (time.Time, error) {
	t, err := time.Parse(sqliteTimestamp, value)
	if err != nil {
		return time.Time{}, domain.ErrStore(op, fmt.Errorf("parse timestamp %q: %w", value, err))
	}
	return t, nil
}
