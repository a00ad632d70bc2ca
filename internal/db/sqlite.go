// Package db opens the SQLite backing store of the metadata catalog and keeps
// its relations migrated.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// Relations lists every relation the catalog needs, in creation order.
var Relations = []string{
	"location", "location_property", "target",
	"schema_target", "table_target", "column_target",
	"constraint_collection", "scope", "constraint_entry",
	"fd", "fd_lhs", "ind_part", "ucc_column",
	"distinct_value_count", "distinct_value_overlap",
	"type_constraint", "tuple_count", "config",
}

// OpenSQLite opens a *sql.DB pool for the SQLite file at path.
//
// mode controls write-safety and pool sizing:
//   - "write": a single connection with _txlock=immediate; the catalog store
//     runs as one writer session over it
//   - "read":  up to maxOpen connections (0 means 4) for read-only tools
//
// Both modes set WAL journal, busy_timeout=5000ms, synchronous=NORMAL,
// and foreign_keys=on.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != "read" && mode != "write" {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	switch mode {
	case "write":
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case "read":
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	if mode == "write" {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}

// ExistingRelations returns the lower-cased names of all tables in the
// database. SQLite table names are case-insensitive.
func ExistingRelations(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan relation name: %w", err)
		}
		names[strings.ToLower(name)] = struct{}{}
	}
	return names, rows.Err()
}

// RelationExists reports whether a table named name exists, ignoring case.
func RelationExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	names, err := ExistingRelations(ctx, db)
	if err != nil {
		return false, err
	}
	_, ok := names[strings.ToLower(name)]
	return ok, nil
}

// MissingRelations returns the catalog relations absent from db.
func MissingRelations(ctx context.Context, db *sql.DB) ([]string, error) {
	names, err := ExistingRelations(ctx, db)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, r := range Relations {
		if _, ok := names[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing, nil
}
