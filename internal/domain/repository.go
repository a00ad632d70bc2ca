package domain

import "context"

// CatalogRepository is the catalog store: the schema, table, and column
// hierarchy with identifier registration and location lookup.
type CatalogRepository interface {
	ResolveTarget(ctx context.Context, id ID) (Target, error)
	GetSchemaByID(ctx context.Context, id ID) (*Schema, error)
	GetTableByID(ctx context.Context, id ID) (*Table, error)
	GetColumnByID(ctx context.Context, id ID) (*Column, error)

	AddSchema(ctx context.Context, s *Schema) error
	AddTableToSchema(ctx context.Context, t *Table, schema *Schema) error
	AddColumnToTable(ctx context.Context, c *Column, table *Table) error

	IsIDInUse(ctx context.Context, id ID) (bool, error)
	RegisterID(ctx context.Context, id ID) error
	GetLocationFor(ctx context.Context, id ID) (*Location, error)

	GetAllTargets(ctx context.Context) ([]Target, error)
	GetAllSchemas(ctx context.Context) ([]*Schema, error)
	GetAllTablesForSchema(ctx context.Context, schemaID ID) ([]*Table, error)
	GetAllColumnsForTable(ctx context.Context, tableID ID) ([]*Column, error)

	Codec() IDCodec
	Flush(ctx context.Context) error
	PurgeCaches()
}

// ConstraintRepository stores constraint collections, their scopes, and
// their constraints.
type ConstraintRepository interface {
	CreateConstraintCollection(ctx context.Context, req CreateCollectionRequest) (*ConstraintCollection, error)
	GetConstraintCollection(ctx context.Context, id int64) (*ConstraintCollection, error)
	ListConstraintCollections(ctx context.Context, page PageRequest) ([]ConstraintCollection, int64, error)
	GetScopeForCollection(ctx context.Context, collectionID int64) ([]Target, error)

	AddConstraint(ctx context.Context, collectionID int64, c Constraint) (int64, error)
	AddConstraints(ctx context.Context, collectionID int64, cs []Constraint) ([]int64, error)
	GetConstraintsForCollection(ctx context.Context, collectionID int64) ([]ConstraintRecord, error)
}

// StoreConfigRepository persists key/value settings of a store.
type StoreConfigRepository interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
}
