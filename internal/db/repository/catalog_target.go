package repository

import (
	"context"
	"database/sql"

	"mdms/internal/domain"
)

// Each target query returns one row per location property so that a target
// and its location are read in a single round trip. The fourth column is the
// parent id (NULL for schemas).
const (
	querySchemaByID = `SELECT t.id, t.name, t.description, NULL, l.id, l.type, p.prop_key, p.prop_value
		FROM target t
		JOIN schema_target k ON k.id = t.id
		LEFT JOIN location l ON l.id = t.location_id
		LEFT JOIN location_property p ON p.location_id = l.id
		WHERE t.id = ?`
	queryAllSchemas = `SELECT t.id, t.name, t.description, NULL, l.id, l.type, p.prop_key, p.prop_value
		FROM target t
		JOIN schema_target k ON k.id = t.id
		LEFT JOIN location l ON l.id = t.location_id
		LEFT JOIN location_property p ON p.location_id = l.id
		ORDER BY t.id`
	queryTableByID = `SELECT t.id, t.name, t.description, k.schema_id, l.id, l.type, p.prop_key, p.prop_value
		FROM target t
		JOIN table_target k ON k.id = t.id
		LEFT JOIN location l ON l.id = t.location_id
		LEFT JOIN location_property p ON p.location_id = l.id
		WHERE t.id = ?`
	queryTablesForSchema = `SELECT t.id, t.name, t.description, k.schema_id, l.id, l.type, p.prop_key, p.prop_value
		FROM target t
		JOIN table_target k ON k.id = t.id
		LEFT JOIN location l ON l.id = t.location_id
		LEFT JOIN location_property p ON p.location_id = l.id
		WHERE k.schema_id = ?
		ORDER BY t.id`
	queryColumnByID = `SELECT t.id, t.name, t.description, k.table_id, l.id, l.type, p.prop_key, p.prop_value
		FROM target t
		JOIN column_target k ON k.id = t.id
		LEFT JOIN location l ON l.id = t.location_id
		LEFT JOIN location_property p ON p.location_id = l.id
		WHERE t.id = ?`
	queryColumnsForTable = `SELECT t.id, t.name, t.description, k.table_id, l.id, l.type, p.prop_key, p.prop_value
		FROM target t
		JOIN column_target k ON k.id = t.id
		LEFT JOIN location l ON l.id = t.location_id
		LEFT JOIN location_property p ON p.location_id = l.id
		WHERE k.table_id = ?
		ORDER BY t.id`
	queryAllTargetIDs = `SELECT id FROM schema_target
		UNION ALL SELECT id FROM table_target
		UNION ALL SELECT id FROM column_target
		ORDER BY id`
)

type targetRow struct {
	id          domain.ID
	name        string
	description string
	parent      domain.ID
	location    *domain.Location
}

func (r *CatalogRepo) queryTargets(ctx context.Context, op, query string, args ...any) ([]targetRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ErrStore(op, err)
	}
	defer rows.Close() //nolint:errcheck

	var out []targetRow
	index := make(map[domain.ID]int)
	for rows.Next() {
		var (
			id                 int64
			name, description  sql.NullString
			parent, locationID sql.NullInt64
			locType, key, val  sql.NullString
		)
		if err := rows.Scan(&id, &name, &description, &parent, &locationID, &locType, &key, &val); err != nil {
			return nil, domain.ErrStore(op, err)
		}
		i, seen := index[toID(id)]
		if !seen {
			row := targetRow{
				id:          toID(id),
				name:        name.String,
				description: description.String,
				parent:      toID(parent.Int64),
			}
			if locationID.Valid {
				row.location = &domain.Location{Type: locType.String, Properties: map[string]string{}}
			}
			out = append(out, row)
			i = len(out) - 1
			index[row.id] = i
		}
		if key.Valid && out[i].location != nil {
			out[i].location.Properties[key.String] = val.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStore(op, err)
	}
	return out, nil
}

// ResolveTarget returns the schema, table, or column with the given id,
// dispatching on the kind encoded in the identifier.
func (r *CatalogRepo) ResolveTarget(ctx context.Context, id domain.ID) (domain.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.resolveLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.CloneTarget(t), nil
}

func (r *CatalogRepo) resolveLocked(ctx context.Context, id domain.ID) (domain.Target, error) {
	switch r.codec.KindOf(id) {
	case domain.KindSchema:
		return r.schemaLocked(ctx, id)
	case domain.KindTable:
		return r.tableLocked(ctx, id)
	default:
		return r.columnLocked(ctx, id)
	}
}

// GetSchemaByID returns a schema, served from cache when resident.
func (r *CatalogRepo) GetSchemaByID(ctx context.Context, id domain.ID) (*domain.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.schemaLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// GetTableByID returns a table, served from cache when resident. Its schema
// is resolved and cached as well.
func (r *CatalogRepo) GetTableByID(ctx context.Context, id domain.ID) (*domain.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.tableLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// GetColumnByID returns a column, served from cache when resident. Its table
// and schema are resolved and cached as well.
func (r *CatalogRepo) GetColumnByID(ctx context.Context, id domain.ID) (*domain.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.columnLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (r *CatalogRepo) schemaLocked(ctx context.Context, id domain.ID) (*domain.Schema, error) {
	if s, ok := r.schemas.get(id); ok {
		return s, nil
	}
	if err := r.flushLocked(ctx); err != nil {
		return nil, err
	}
	rows, err := r.queryTargets(ctx, "get schema", querySchemaByID, int64(id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound("schema %s not found", id)
	}
	s := r.cacheSchemaLocked(rows[0])
	return s, nil
}

func (r *CatalogRepo) tableLocked(ctx context.Context, id domain.ID) (*domain.Table, error) {
	if t, ok := r.tables.get(id); ok {
		return t, nil
	}
	if err := r.flushLocked(ctx); err != nil {
		return nil, err
	}
	rows, err := r.queryTargets(ctx, "get table", queryTableByID, int64(id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound("table %s not found", id)
	}
	if _, err := r.schemaLocked(ctx, rows[0].parent); err != nil {
		return nil, err
	}
	return r.cacheTableLocked(rows[0]), nil
}

func (r *CatalogRepo) columnLocked(ctx context.Context, id domain.ID) (*domain.Column, error) {
	if c, ok := r.columns.get(id); ok {
		return c, nil
	}
	if err := r.flushLocked(ctx); err != nil {
		return nil, err
	}
	rows, err := r.queryTargets(ctx, "get column", queryColumnByID, int64(id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound("column %s not found", id)
	}
	if _, err := r.tableLocked(ctx, rows[0].parent); err != nil {
		return nil, err
	}
	return r.cacheColumnLocked(rows[0]), nil
}

func (r *CatalogRepo) cacheSchemaLocked(row targetRow) *domain.Schema {
	s := &domain.Schema{ID: row.id, Name: row.name, Description: row.description, Location: row.location}
	r.schemas.put(s.ID, s)
	r.locations.put(s.ID, row.location)
	return s
}

func (r *CatalogRepo) cacheTableLocked(row targetRow) *domain.Table {
	t := &domain.Table{ID: row.id, Name: row.name, Description: row.description, Location: row.location, SchemaID: row.parent}
	r.tables.put(t.ID, t)
	r.locations.put(t.ID, row.location)
	return t
}

func (r *CatalogRepo) cacheColumnLocked(row targetRow) *domain.Column {
	c := &domain.Column{ID: row.id, Name: row.name, Description: row.description, Location: row.location, TableID: row.parent}
	r.columns.put(c.ID, c)
	r.locations.put(c.ID, row.location)
	return c
}

// GetAllTargets returns every schema, table, and column, ordered by id.
// Registered identifiers that were never added as targets are not included.
func (r *CatalogRepo) GetAllTargets(ctx context.Context) ([]domain.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.allTargets != nil {
		return cloneEach(r.allTargets, domain.CloneTarget), nil
	}
	if err := r.flushLocked(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, queryAllTargetIDs)
	if err != nil {
		return nil, domain.ErrStore("list targets", err)
	}
	var ids []domain.ID
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, domain.ErrStore("list targets", err)
		}
		ids = append(ids, toID(v))
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStore("list targets", err)
	}

	targets := make([]domain.Target, 0, len(ids))
	for _, id := range ids {
		t, err := r.resolveLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	r.allTargets = targets
	return cloneEach(targets, domain.CloneTarget), nil
}

// GetAllSchemas returns every schema, ordered by id.
func (r *CatalogRepo) GetAllSchemas(ctx context.Context) ([]*domain.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.allSchemas != nil {
		return cloneEach(r.allSchemas, (*domain.Schema).Clone), nil
	}
	rows, err := r.queryTargets(ctx, "list schemas", queryAllSchemas)
	if err != nil {
		return nil, err
	}
	schemas := make([]*domain.Schema, 0, len(rows))
	for _, row := range rows {
		schemas = append(schemas, r.cacheSchemaLocked(row))
	}
	r.allSchemas = schemas
	return cloneEach(schemas, (*domain.Schema).Clone), nil
}

// GetAllTablesForSchema returns the tables of a schema, ordered by id.
func (r *CatalogRepo) GetAllTablesForSchema(ctx context.Context, schemaID domain.ID) ([]*domain.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tables, ok := r.tablesForSchema.get(schemaID); ok {
		return cloneEach(tables, (*domain.Table).Clone), nil
	}
	if _, err := r.schemaLocked(ctx, schemaID); err != nil {
		return nil, err
	}
	rows, err := r.queryTargets(ctx, "list tables", queryTablesForSchema, int64(schemaID))
	if err != nil {
		return nil, err
	}
	tables := make([]*domain.Table, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, r.cacheTableLocked(row))
	}
	r.tablesForSchema.put(schemaID, tables)
	return cloneEach(tables, (*domain.Table).Clone), nil
}

// GetAllColumnsForTable returns the columns of a table, ordered by id.
func (r *CatalogRepo) GetAllColumnsForTable(ctx context.Context, tableID domain.ID) ([]*domain.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if columns, ok := r.columnsForTable.get(tableID); ok {
		return cloneEach(columns, (*domain.Column).Clone), nil
	}
	if _, err := r.tableLocked(ctx, tableID); err != nil {
		return nil, err
	}
	rows, err := r.queryTargets(ctx, "list columns", queryColumnsForTable, int64(tableID))
	if err != nil {
		return nil, err
	}
	columns := make([]*domain.Column, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, r.cacheColumnLocked(row))
	}
	r.columnsForTable.put(tableID, columns)
	return cloneEach(columns, (*domain.Column).Clone), nil
}

// cloneEach deep-copies cached entries so callers never share them.
func cloneEach[T any](in []T, clone func(T) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}
