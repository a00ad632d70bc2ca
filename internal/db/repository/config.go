package repository

import (
	"context"
	"database/sql"

	"mdms/internal/domain"
)

// Keys of the store configuration relation.
const (
	ConfigKeyStoreID       = "store.id"
	ConfigKeyTableBits     = "ids.table_bits"
	ConfigKeyColumnBits    = "ids.column_bits"
	ConfigKeySchemaVersion = "store.schema_version"
)

// ConfigRepo reads and writes the key/value store configuration.
type ConfigRepo struct {
	db DB
}

// NewConfigRepo creates a ConfigRepo.
func NewConfigRepo(db DB) *ConfigRepo {
	return &ConfigRepo{db: db}
}

// Load returns every configuration entry.
func (r *ConfigRepo) Load(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT config_key, config_value FROM config`)
	if err != nil {
		return nil, domain.ErrStore("load config", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, domain.ErrStore("scan config", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStore("load config", err)
	}
	return out, nil
}

// Save upserts every entry of values in one transaction. Keys absent from
// values are left untouched.
func (r *ConfigRepo) Save(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO config (config_key, config_value) VALUES (?, ?)
			 ON CONFLICT(config_key) DO UPDATE SET config_value = excluded.config_value`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for k, v := range values {
			if _, err := stmt.ExecContext(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	return mapDBError("save config", err)
}
