package metadata

import (
	"context"
	"errors"

	"mdms/internal/domain"
)

// AddSchema adds a schema under the lowest unused schema number. Schema names
// are unique within the store.
func (s *MetadataStore) AddSchema(ctx context.Context, name, description string, loc *domain.Location) (*domain.Schema, error) {
	if name == "" {
		return nil, domain.ErrValidation("schema name is required")
	}
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	if _, err := s.GetSchemaByName(ctx, name); err == nil {
		return nil, domain.ErrConflict("schema %q already exists", name)
	} else if !isNotFound(err) {
		return nil, err
	}

	codec := s.catalog.Codec()
	id, err := s.firstFree(ctx, codec.MaxSchemaNumber(), func(n int) (domain.ID, error) {
		return codec.SchemaID(n)
	})
	if err != nil {
		return nil, err
	}
	schema := &domain.Schema{ID: id, Name: name, Description: description, Location: loc}
	if err := s.catalog.AddSchema(ctx, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// AddTable adds a table to a schema under the lowest unused table number.
// Table names are unique within their schema.
func (s *MetadataStore) AddTable(ctx context.Context, schemaID domain.ID, name, description string, loc *domain.Location) (*domain.Table, error) {
	if name == "" {
		return nil, domain.ErrValidation("table name is required")
	}
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	schema, err := s.catalog.GetSchemaByID(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetTableByName(ctx, schemaID, name); err == nil {
		return nil, domain.ErrConflict("table %q already exists in schema %q", name, schema.Name)
	} else if !isNotFound(err) {
		return nil, err
	}

	codec := s.catalog.Codec()
	schemaNumber := codec.SchemaLocal(schemaID)
	id, err := s.firstFree(ctx, codec.MaxTableNumber(), func(n int) (domain.ID, error) {
		return codec.TableID(schemaNumber, n)
	})
	if err != nil {
		return nil, err
	}
	table := &domain.Table{ID: id, Name: name, Description: description, Location: loc, SchemaID: schemaID}
	if err := s.catalog.AddTableToSchema(ctx, table, schema); err != nil {
		return nil, err
	}
	return table, nil
}

// AddColumn adds a column to a table. The column's local number is its index
// within the table. A nil location defaults to an indexed location inside the
// table's location.
func (s *MetadataStore) AddColumn(ctx context.Context, tableID domain.ID, name, description string, index int, loc *domain.Location) (*domain.Column, error) {
	if name == "" {
		return nil, domain.ErrValidation("column name is required")
	}
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	table, err := s.catalog.GetTableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetColumnByName(ctx, tableID, name); err == nil {
		return nil, domain.ErrConflict("column %q already exists in table %q", name, table.Name)
	} else if !isNotFound(err) {
		return nil, err
	}

	codec := s.catalog.Codec()
	id, err := codec.ColumnID(codec.SchemaLocal(tableID), codec.TableLocal(tableID), index)
	if err != nil {
		return nil, err
	}
	inUse, err := s.catalog.IsIDInUse(ctx, id)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, domain.ErrIDCollision(id)
	}
	if err := s.catalog.RegisterID(ctx, id); err != nil {
		return nil, err
	}

	if loc == nil {
		loc = domain.NewIndexedLocation(index, table.Location)
	}
	column := &domain.Column{ID: id, Name: name, Description: description, Location: loc, TableID: tableID}
	if err := s.catalog.AddColumnToTable(ctx, column, table); err != nil {
		return nil, err
	}
	return column, nil
}

// firstFree registers and returns the id of the lowest local number in
// [0, maxNumber] whose id is unused.
func (s *MetadataStore) firstFree(ctx context.Context, maxNumber int, encode func(int) (domain.ID, error)) (domain.ID, error) {
	for n := 0; n <= maxNumber; n++ {
		id, err := encode(n)
		if err != nil {
			return 0, err
		}
		inUse, err := s.catalog.IsIDInUse(ctx, id)
		if err != nil {
			return 0, err
		}
		if inUse {
			continue
		}
		if err := s.catalog.RegisterID(ctx, id); err != nil {
			return 0, err
		}
		return id, nil
	}
	return 0, domain.ErrConflict("no free identifier left (maximum local number %d)", maxNumber)
}

// ResolveTarget returns the target with the given id.
func (s *MetadataStore) ResolveTarget(ctx context.Context, id domain.ID) (domain.Target, error) {
	return s.catalog.ResolveTarget(ctx, id)
}

// GetSchemaByName returns the schema with exactly this name.
func (s *MetadataStore) GetSchemaByName(ctx context.Context, name string) (*domain.Schema, error) {
	schemas, err := s.catalog.GetAllSchemas(ctx)
	if err != nil {
		return nil, err
	}
	for _, sc := range schemas {
		if sc.Name == name {
			return sc, nil
		}
	}
	return nil, domain.ErrNotFound("schema %q not found", name)
}

// GetTableByName returns the table of a schema with exactly this name.
func (s *MetadataStore) GetTableByName(ctx context.Context, schemaID domain.ID, name string) (*domain.Table, error) {
	tables, err := s.catalog.GetAllTablesForSchema(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound("table %q not found in schema %s", name, schemaID)
}

// GetColumnByName returns the column of a table with exactly this name.
func (s *MetadataStore) GetColumnByName(ctx context.Context, tableID domain.ID, name string) (*domain.Column, error) {
	columns, err := s.catalog.GetAllColumnsForTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound("column %q not found in table %s", name, tableID)
}

// ListSchemas returns every schema ordered by id.
func (s *MetadataStore) ListSchemas(ctx context.Context) ([]*domain.Schema, error) {
	return s.catalog.GetAllSchemas(ctx)
}

// ListTables returns the tables of a schema ordered by id.
func (s *MetadataStore) ListTables(ctx context.Context, schemaID domain.ID) ([]*domain.Table, error) {
	return s.catalog.GetAllTablesForSchema(ctx, schemaID)
}

// ListColumns returns the columns of a table ordered by id.
func (s *MetadataStore) ListColumns(ctx context.Context, tableID domain.ID) ([]*domain.Column, error) {
	return s.catalog.GetAllColumnsForTable(ctx, tableID)
}

// TableNode is a table with its columns.
type TableNode struct {
	Table   *domain.Table
	Columns []*domain.Column
}

// SchemaNode is a schema with its tables.
type SchemaNode struct {
	Schema *domain.Schema
	Tables []TableNode
}

// Tree returns the whole target hierarchy.
func (s *MetadataStore) Tree(ctx context.Context) ([]SchemaNode, error) {
	schemas, err := s.catalog.GetAllSchemas(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SchemaNode, 0, len(schemas))
	for _, sc := range schemas {
		tables, err := s.catalog.GetAllTablesForSchema(ctx, sc.ID)
		if err != nil {
			return nil, err
		}
		node := SchemaNode{Schema: sc, Tables: make([]TableNode, 0, len(tables))}
		for _, t := range tables {
			cols, err := s.catalog.GetAllColumnsForTable(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			node.Tables = append(node.Tables, TableNode{Table: t, Columns: cols})
		}
		out = append(out, node)
	}
	return out, nil
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}
