package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// OpenTestSQLite opens a write-mode SQLite database in t.TempDir(), runs all
// migrations, and registers cleanup.
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.sqlite")

	db, err := OpenSQLite(path, "write", 0)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}

// CountingDB wraps a *sql.DB and counts the queries issued outside of
// transactions. Tests use it to assert cache behaviour.
type CountingDB struct {
	*sql.DB
	queries atomic.Int64
}

// NewCountingDB wraps db.
func NewCountingDB(db *sql.DB) *CountingDB {
	return &CountingDB{DB: db}
}

// Queries returns the number of queries issued so far.
func (c *CountingDB) Queries() int64 { return c.queries.Load() }

// Reset sets the query counter back to zero.
func (c *CountingDB) Reset() { c.queries.Store(0) }

func (c *CountingDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.queries.Add(1)
	return c.DB.QueryContext(ctx, query, args...)
}

func (c *CountingDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	c.queries.Add(1)
	return c.DB.QueryRowContext(ctx, query, args...)
}
