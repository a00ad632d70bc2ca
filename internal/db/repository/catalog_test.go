package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdms/internal/db"
	"mdms/internal/domain"
)

var codec = domain.DefaultIDCodec

func schemaID(t *testing.T, s int) domain.ID {
	t.Helper()
	id, err := codec.SchemaID(s)
	require.NoError(t, err)
	return id
}

func tableID(t *testing.T, s, tb int) domain.ID {
	t.Helper()
	id, err := codec.TableID(s, tb)
	require.NoError(t, err)
	return id
}

func columnID(t *testing.T, s, tb, c int) domain.ID {
	t.Helper()
	id, err := codec.ColumnID(s, tb, c)
	require.NoError(t, err)
	return id
}

func setupCatalog(t *testing.T, opts CatalogOptions) (*CatalogRepo, *db.CountingDB) {
	t.Helper()
	cdb := db.NewCountingDB(db.OpenTestSQLite(t))
	return NewCatalogRepo(cdb, codec, opts), cdb
}

// seedTable adds schema 0 with table 0 and columns 0..n-1 and returns them.
func seedTable(t *testing.T, repo *CatalogRepo, n int) (*domain.Schema, *domain.Table, []*domain.Column) {
	t.Helper()
	ctx := context.Background()

	schema := &domain.Schema{ID: schemaID(t, 0), Name: "sales", Location: domain.NewDefaultLocation("/data/sales")}
	require.NoError(t, repo.RegisterID(ctx, schema.ID))
	require.NoError(t, repo.AddSchema(ctx, schema))

	table := &domain.Table{ID: tableID(t, 0, 0), Name: "orders", Location: domain.NewDefaultLocation("/data/sales/orders.csv")}
	require.NoError(t, repo.RegisterID(ctx, table.ID))
	require.NoError(t, repo.AddTableToSchema(ctx, table, schema))

	var cols []*domain.Column
	for i := 0; i < n; i++ {
		c := &domain.Column{
			ID:       columnID(t, 0, 0, i),
			Name:     []string{"id", "customer", "amount", "note", "extra"}[i],
			Location: domain.NewIndexedLocation(i, table.Location),
		}
		require.NoError(t, repo.RegisterID(ctx, c.ID))
		require.NoError(t, repo.AddColumnToTable(ctx, c, table))
		cols = append(cols, c)
	}
	return schema, table, cols
}

func TestCatalog_AddAndResolveFromFreshRepo(t *testing.T) {
	ctx := context.Background()
	repo, cdb := setupCatalog(t, CatalogOptions{})
	schema, table, cols := seedTable(t, repo, 2)
	require.NoError(t, repo.Flush(ctx))

	fresh := NewCatalogRepo(cdb, codec, CatalogOptions{})

	got, err := fresh.ResolveTarget(ctx, schema.ID)
	require.NoError(t, err)
	s, ok := got.(*domain.Schema)
	require.True(t, ok)
	assert.Equal(t, "sales", s.Name)
	assert.True(t, schema.Location.Equal(s.Location))

	tb, err := fresh.GetTableByID(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ID, tb.SchemaID)
	assert.Equal(t, "/data/sales/orders.csv", tb.Location.Get(domain.LocationPropPath))

	c, err := fresh.GetColumnByID(ctx, cols[1].ID)
	require.NoError(t, err)
	assert.Equal(t, table.ID, c.TableID)
	assert.Equal(t, 1, c.Index(codec))
	assert.Equal(t, domain.LocationTypeIndexed, c.Location.Type)
	assert.Equal(t, "1", c.Location.Get(domain.LocationPropIndex))
}

func TestCatalog_ResolveUnknown(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{})

	for _, id := range []domain.ID{schemaID(t, 3), tableID(t, 3, 1), columnID(t, 3, 1, 2)} {
		_, err := repo.ResolveTarget(ctx, id)
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf, "id %s", id)
	}
}

func TestCatalog_CacheAvoidsRepeatedQueries(t *testing.T) {
	ctx := context.Background()
	repo, cdb := setupCatalog(t, CatalogOptions{})
	schema, _, cols := seedTable(t, repo, 1)

	cdb.Reset()
	_, err := repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err)
	_, err = repo.GetColumnByID(ctx, cols[0].ID)
	require.NoError(t, err)
	assert.Zero(t, cdb.Queries(), "targets added through the repo are resident")

	repo.PurgeCaches()
	cdb.Reset()
	_, err = repo.GetColumnByID(ctx, cols[0].ID)
	require.NoError(t, err)
	first := cdb.Queries()
	assert.Positive(t, first)

	_, err = repo.GetColumnByID(ctx, cols[0].ID)
	require.NoError(t, err)
	_, err = repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err, "resolving a column materialises its schema")
	assert.Equal(t, first, cdb.Queries())

	stats := repo.CacheStats()
	assert.Positive(t, stats["column"].Hits)
	assert.Positive(t, stats["schema"].Hits)
}

func TestCatalog_ReturnedTargetsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{})
	schema, _, _ := seedTable(t, repo, 0)

	s, err := repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err)
	s.Name = "changed"
	s.Location.Properties[domain.LocationPropPath] = "/mutated"

	again, err := repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", again.Name)
	assert.Equal(t, "/data/sales", again.Location.Get(domain.LocationPropPath))

	loc, err := repo.GetLocationFor(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "/data/sales", loc.Get(domain.LocationPropPath))
	loc.Properties[domain.LocationPropPath] = "/mutated"

	target, err := repo.ResolveTarget(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "/data/sales", target.TargetLocation().Get(domain.LocationPropPath))

	schemas, err := repo.GetAllSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	schemas[0].Location.Properties[domain.LocationPropPath] = "/mutated"
	schemas[0].Name = "changed"

	schemas, err = repo.GetAllSchemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sales", schemas[0].Name)
	assert.Equal(t, "/data/sales", schemas[0].Location.Get(domain.LocationPropPath))
}

func TestCatalog_AddCopiesCallerLocation(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{})

	loc := domain.NewDefaultLocation("/data/hr")
	schema := &domain.Schema{ID: schemaID(t, 1), Name: "hr", Location: loc}
	require.NoError(t, repo.RegisterID(ctx, schema.ID))
	require.NoError(t, repo.AddSchema(ctx, schema))
	loc.Properties[domain.LocationPropPath] = "/changed-after-add"

	s, err := repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "/data/hr", s.Location.Get(domain.LocationPropPath))

	got, err := repo.GetLocationFor(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "/data/hr", got.Get(domain.LocationPropPath))
}

func TestCatalog_CacheEviction(t *testing.T) {
	ctx := context.Background()
	repo, cdb := setupCatalog(t, CatalogOptions{CacheSize: 1})
	_, _, cols := seedTable(t, repo, 2)

	cdb.Reset()
	_, err := repo.GetColumnByID(ctx, cols[0].ID)
	require.NoError(t, err)
	assert.Positive(t, cdb.Queries(), "cols[0] was evicted by cols[1]")
	assert.Positive(t, repo.CacheStats()["column"].Evictions)
}

func TestCatalog_IsIDInUse(t *testing.T) {
	ctx := context.Background()
	repo, cdb := setupCatalog(t, CatalogOptions{})
	_, table, _ := seedTable(t, repo, 2)

	inUse, err := repo.IsIDInUse(ctx, columnID(t, 0, 0, 1))
	require.NoError(t, err)
	assert.True(t, inUse)

	free := columnID(t, 0, 0, 2)
	inUse, err = repo.IsIDInUse(ctx, free)
	require.NoError(t, err)
	assert.False(t, inUse)

	// The table is resident, so its child set answers further lookups.
	cdb.Reset()
	inUse, err = repo.IsIDInUse(ctx, columnID(t, 0, 0, 3))
	require.NoError(t, err)
	assert.False(t, inUse)
	assert.Zero(t, cdb.Queries())

	require.NoError(t, repo.RegisterID(ctx, free))
	inUse, err = repo.IsIDInUse(ctx, free)
	require.NoError(t, err)
	assert.True(t, inUse, "pending ids are in use")

	require.NoError(t, repo.Flush(ctx))
	inUse, err = repo.IsIDInUse(ctx, free)
	require.NoError(t, err)
	assert.True(t, inUse, "flushed ids stay in use")

	cols, err := repo.GetAllColumnsForTable(ctx, table.ID)
	require.NoError(t, err)
	assert.Len(t, cols, 2, "registered-only ids are not columns")
}

func TestCatalog_IsIDInUse_ChildSetLoadedBeforeFlush(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{BatchSize: 100})
	schema, _, _ := seedTable(t, repo, 0)

	pendingTable := tableID(t, 0, 5)
	require.NoError(t, repo.RegisterID(ctx, pendingTable))

	// Loads the schema's child set while pendingTable is still pending.
	inUse, err := repo.IsIDInUse(ctx, tableID(t, 0, 7))
	require.NoError(t, err)
	assert.False(t, inUse)

	require.NoError(t, repo.Flush(ctx))
	inUse, err = repo.IsIDInUse(ctx, pendingTable)
	require.NoError(t, err)
	assert.True(t, inUse)

	_, err = repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err)
}

func TestCatalog_RegisterCollisions(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{BatchSize: 100})
	id := schemaID(t, 9)

	require.NoError(t, repo.RegisterID(ctx, id))
	err := repo.RegisterID(ctx, id)
	var collision *domain.IDCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, id, collision.ID)

	require.NoError(t, repo.Flush(ctx))
	require.NoError(t, repo.RegisterID(ctx, id), "the caller is trusted until the batch is written")
	require.NoError(t, repo.Flush(ctx), "an already persisted id is skipped")

	inUse, err := repo.IsIDInUse(ctx, id)
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestCatalog_RegisterResidentIDCollides(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{BatchSize: 100})
	schema, table, cols := seedTable(t, repo, 1)

	// Load the table's child set so column ids are answered from cache.
	_, err := repo.IsIDInUse(ctx, columnID(t, 0, 0, 4))
	require.NoError(t, err)

	for _, id := range []domain.ID{schema.ID, table.ID, cols[0].ID} {
		err := repo.RegisterID(ctx, id)
		var collision *domain.IDCollisionError
		require.ErrorAs(t, err, &collision, "id %s", id)
		assert.Equal(t, id, collision.ID)
	}
}

func TestCatalog_ReadsIgnoreStaleRegistrations(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{BatchSize: 100})
	schema, table, _ := seedTable(t, repo, 0)

	repo.PurgeCaches()
	require.NoError(t, repo.RegisterID(ctx, schema.ID), "nothing resident proves the id is taken")

	s, err := repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", s.Name)

	repo.PurgeCaches()
	require.NoError(t, repo.RegisterID(ctx, table.ID))
	target, err := repo.ResolveTarget(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders", target.TargetName())

	all, err := repo.GetAllTargets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCatalog_BatchFlushesWhenFull(t *testing.T) {
	ctx := context.Background()
	repo, cdb := setupCatalog(t, CatalogOptions{BatchSize: 2})

	require.NoError(t, repo.RegisterID(ctx, schemaID(t, 1)))
	var n int
	require.NoError(t, cdb.DB.QueryRow(`SELECT COUNT(*) FROM target`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, repo.RegisterID(ctx, schemaID(t, 2)))
	require.NoError(t, cdb.DB.QueryRow(`SELECT COUNT(*) FROM target`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestCatalog_AddRejectsWrongKinds(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{})
	schema, table, _ := seedTable(t, repo, 0)

	var ve *domain.ValidationError
	err := repo.AddSchema(ctx, &domain.Schema{ID: table.ID, Name: "x"})
	require.ErrorAs(t, err, &ve)

	other := &domain.Schema{ID: schemaID(t, 1)}
	err = repo.AddTableToSchema(ctx, &domain.Table{ID: tableID(t, 0, 1), Name: "x"}, other)
	require.ErrorAs(t, err, &ve, "table id encodes schema 0")

	err = repo.AddColumnToTable(ctx, &domain.Column{ID: columnID(t, 0, 1, 0), Name: "x"}, table)
	require.ErrorAs(t, err, &ve)

	err = repo.AddTableToSchema(ctx, &domain.Table{ID: tableID(t, 0, 1)}, schema)
	require.ErrorAs(t, err, &ve, "names are required")
}

func TestCatalog_AddDuplicateAndOrphan(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{})
	schema, _, _ := seedTable(t, repo, 0)

	err := repo.AddSchema(ctx, &domain.Schema{ID: schema.ID, Name: "again"})
	var collision *domain.IDCollisionError
	require.ErrorAs(t, err, &collision)

	s, err := repo.GetSchemaByID(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", s.Name, "the failed add rolled back")

	orphanSchema := &domain.Schema{ID: schemaID(t, 4), Name: "ghost"}
	err = repo.AddTableToSchema(ctx, &domain.Table{ID: tableID(t, 4, 0), Name: "t"}, orphanSchema)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCatalog_ColumnsForTable(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{})
	_, table, cols := seedTable(t, repo, 3)

	got, err := repo.GetAllColumnsForTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, cols[i].ID, c.ID)
		assert.Equal(t, cols[i].Name, c.Name)
	}

	extra := &domain.Column{ID: columnID(t, 0, 0, 3), Name: "note"}
	require.NoError(t, repo.RegisterID(ctx, extra.ID))
	require.NoError(t, repo.AddColumnToTable(ctx, extra, table))

	got, err = repo.GetAllColumnsForTable(ctx, table.ID)
	require.NoError(t, err)
	assert.Len(t, got, 4, "adding a column drops the aggregate")
	assert.Nil(t, got[3].Location)
}

func TestCatalog_AllTargetsAndSchemas(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupCatalog(t, CatalogOptions{})
	schema, table, cols := seedTable(t, repo, 2)
	require.NoError(t, repo.RegisterID(ctx, schemaID(t, 7)))

	all, err := repo.GetAllTargets(ctx)
	require.NoError(t, err)
	ids := domain.TargetIDs(all)
	assert.Equal(t, []domain.ID{cols[0].ID, cols[1].ID, table.ID, schema.ID}, ids)

	second := &domain.Schema{ID: schemaID(t, 1), Name: "hr"}
	require.NoError(t, repo.RegisterID(ctx, second.ID))
	require.NoError(t, repo.AddSchema(ctx, second))

	schemas, err := repo.GetAllSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "sales", schemas[0].Name)
	assert.Equal(t, "hr", schemas[1].Name)

	tables, err := repo.GetAllTablesForSchema(ctx, schema.ID)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	_, err = repo.GetAllTablesForSchema(ctx, schemaID(t, 2))
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCatalog_GetLocationFor(t *testing.T) {
	ctx := context.Background()
	repo, cdb := setupCatalog(t, CatalogOptions{})
	_, table, _ := seedTable(t, repo, 0)

	bare := &domain.Column{ID: columnID(t, 0, 0, 0), Name: "id"}
	require.NoError(t, repo.RegisterID(ctx, bare.ID))
	require.NoError(t, repo.AddColumnToTable(ctx, bare, table))

	fresh := NewCatalogRepo(cdb, codec, CatalogOptions{})
	loc, err := fresh.GetLocationFor(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, "/data/sales/orders.csv", loc.Get(domain.LocationPropPath))

	loc, err = fresh.GetLocationFor(ctx, bare.ID)
	require.NoError(t, err)
	assert.Nil(t, loc)

	cdb.Reset()
	_, err = fresh.GetLocationFor(ctx, bare.ID)
	require.NoError(t, err)
	assert.Zero(t, cdb.Queries(), "an absent location is cached too")

	_, err = fresh.GetLocationFor(ctx, schemaID(t, 5))
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestCatalog_CloseFlushes(t *testing.T) {
	ctx := context.Background()
	repo, cdb := setupCatalog(t, CatalogOptions{BatchSize: 100})
	require.NoError(t, repo.RegisterID(ctx, schemaID(t, 3)))
	require.NoError(t, repo.Close(ctx))

	var n int
	require.NoError(t, cdb.DB.QueryRow(`SELECT COUNT(*) FROM target`).Scan(&n))
	assert.Equal(t, 1, n)
}
