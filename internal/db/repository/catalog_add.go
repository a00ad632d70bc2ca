package repository

import (
	"context"
	"database/sql"

	"mdms/internal/domain"
)

// AddSchema persists a schema: its identity row, its schema row, and its
// location. Afterwards the schema is cached and the all-targets and
// all-schemas aggregates are dropped.
func (r *CatalogRepo) AddSchema(ctx context.Context, s *domain.Schema) error {
	if k := r.codec.KindOf(s.ID); k != domain.KindSchema {
		return domain.ErrValidation("identifier %s is a %s id, not a schema id", s.ID, k)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.persistTargetLocked(ctx, s.ID, s.Name, s.Description, s.Location,
		`INSERT INTO schema_target (id) VALUES (?)`, int64(s.ID)); err != nil {
		return err
	}

	cp := s.Clone()
	r.schemas.put(cp.ID, cp)
	r.locations.put(cp.ID, cp.Location)
	r.allTargets = nil
	r.allSchemas = nil
	r.logger.Debug("added schema", "id", s.ID, "name", s.Name)
	return nil
}

// AddTableToSchema persists a table under schema. The table id must encode
// the schema. Afterwards the table is cached, the schema's table aggregate
// and the all-targets aggregate are dropped, and the schema's child set
// includes the table.
func (r *CatalogRepo) AddTableToSchema(ctx context.Context, t *domain.Table, schema *domain.Schema) error {
	if k := r.codec.KindOf(t.ID); k != domain.KindTable {
		return domain.ErrValidation("identifier %s is a %s id, not a table id", t.ID, k)
	}
	if r.codec.SchemaOf(t.ID) != schema.ID {
		return domain.ErrValidation("table %s does not belong to schema %s", t.ID, schema.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.persistTargetLocked(ctx, t.ID, t.Name, t.Description, t.Location,
		`INSERT INTO table_target (id, schema_id) VALUES (?, ?)`, int64(t.ID), int64(schema.ID)); err != nil {
		return err
	}

	cp := t.Clone()
	cp.SchemaID = schema.ID
	r.tables.put(cp.ID, cp)
	r.locations.put(cp.ID, cp.Location)
	r.tablesForSchema.remove(schema.ID)
	r.allTargets = nil
	r.noteChildLocked(cp.ID)
	r.logger.Debug("added table", "id", t.ID, "name", t.Name, "schema", schema.ID)
	return nil
}

// AddColumnToTable persists a column under table. The column id must encode
// the table. Afterwards the column is cached, the table's column aggregate
// and the all-targets aggregate are dropped, and the table's child set
// includes the column.
func (r *CatalogRepo) AddColumnToTable(ctx context.Context, c *domain.Column, table *domain.Table) error {
	if k := r.codec.KindOf(c.ID); k != domain.KindColumn {
		return domain.ErrValidation("identifier %s is a %s id, not a column id", c.ID, k)
	}
	if r.codec.TableOf(c.ID) != table.ID {
		return domain.ErrValidation("column %s does not belong to table %s", c.ID, table.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.persistTargetLocked(ctx, c.ID, c.Name, c.Description, c.Location,
		`INSERT INTO column_target (id, table_id) VALUES (?, ?)`, int64(c.ID), int64(table.ID)); err != nil {
		return err
	}

	cp := c.Clone()
	cp.TableID = table.ID
	r.columns.put(cp.ID, cp)
	r.locations.put(cp.ID, cp.Location)
	r.columnsForTable.remove(table.ID)
	r.allTargets = nil
	r.noteChildLocked(cp.ID)
	r.logger.Debug("added column", "id", c.ID, "name", c.Name, "table", table.ID)
	return nil
}

// persistTargetLocked writes the location, the identity row, and the
// kind-specific row of a target in one transaction.
func (r *CatalogRepo) persistTargetLocked(ctx context.Context, id domain.ID, name, description string,
	loc *domain.Location, kindInsert string, kindArgs ...any,
) error {
	if name == "" {
		return domain.ErrValidation("target %s needs a name", id)
	}
	if err := r.flushLocked(ctx); err != nil {
		return err
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var locationID sql.NullInt64
		if loc != nil {
			lid, err := insertLocation(ctx, tx, loc)
			if err != nil {
				return err
			}
			locationID = sql.NullInt64{Int64: lid, Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO target (id, name, description, location_id) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			                               description = excluded.description,
			                               location_id = excluded.location_id`,
			int64(id), name, description, locationID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, kindInsert, kindArgs...)
		return err
	})
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		r.logger.Debug("identifier collision", "id", id)
		return domain.ErrIDCollision(id)
	case isForeignKeyViolation(err):
		if parent, ok := r.codec.Parent(id); ok {
			return domain.ErrNotFound("parent %s of target %s not found", parent, id)
		}
		return domain.ErrStore("add target", err)
	default:
		return domain.ErrStore("add target", err)
	}
}

// insertLocation writes a location and its properties, returning the new
// location id.
func insertLocation(ctx context.Context, tx *sql.Tx, loc *domain.Location) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO location (type) VALUES (?)`, loc.Type)
	if err != nil {
		return 0, err
	}
	locationID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if len(loc.Properties) == 0 {
		return locationID, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO location_property (location_id, prop_key, prop_value) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close() //nolint:errcheck

	for _, key := range loc.SortedKeys() {
		if _, err := stmt.ExecContext(ctx, locationID, key, loc.Properties[key]); err != nil {
			return 0, err
		}
	}
	return locationID, nil
}

// GetLocationFor returns the location of a target, or nil when the target has
// none. Both outcomes are cached.
func (r *CatalogRepo) GetLocationFor(ctx context.Context, id domain.ID) (*domain.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loc, ok := r.locations.get(id); ok {
		return loc.Clone(), nil
	}
	if err := r.flushLocked(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.type, p.prop_key, p.prop_value
		 FROM target t
		 LEFT JOIN location l ON l.id = t.location_id
		 LEFT JOIN location_property p ON p.location_id = l.id
		 WHERE t.id = ?`, int64(id))
	if err != nil {
		return nil, domain.ErrStore("get location", err)
	}
	defer rows.Close() //nolint:errcheck

	var (
		found bool
		loc   *domain.Location
	)
	for rows.Next() {
		found = true
		var (
			locationID        sql.NullInt64
			locType, key, val sql.NullString
		)
		if err := rows.Scan(&locationID, &locType, &key, &val); err != nil {
			return nil, domain.ErrStore("get location", err)
		}
		if !locationID.Valid {
			continue
		}
		if loc == nil {
			loc = &domain.Location{Type: locType.String, Properties: map[string]string{}}
		}
		if key.Valid {
			loc.Properties[key.String] = val.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStore("get location", err)
	}
	if !found {
		return nil, domain.ErrNotFound("target %s not found", id)
	}

	r.locations.put(id, loc)
	return loc.Clone(), nil
}
