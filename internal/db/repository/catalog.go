package repository

import (
	"context"
	"log/slog"
	"sync"

	"mdms/internal/domain"
)

// Default sizes of the catalog caches and the identifier write batch.
const (
	DefaultCacheSize = 1000
	DefaultBatchSize = 500
)

// CatalogOptions tunes a CatalogRepo. Zero values select the defaults.
type CatalogOptions struct {
	CacheSize int
	BatchSize int
	Logger    *slog.Logger
}

// CatalogRepo is the catalog store. It keeps bounded caches of schemas,
// tables, columns, and locations consistent with the row store, which is
// always the source of truth.
//
// All caches and the pending identifier batch share one mutex, so a
// CatalogRepo is safe for concurrent use. Mutations are not transactional
// across calls.
type CatalogRepo struct {
	db     DB
	codec  domain.IDCodec
	logger *slog.Logger

	mu sync.Mutex

	schemas   *lruCache[domain.ID, *domain.Schema]
	tables    *lruCache[domain.ID, *domain.Table]
	columns   *lruCache[domain.ID, *domain.Column]
	locations *lruCache[domain.ID, *domain.Location] // nil value: target has no location

	// Aggregates are dropped whole on any mutation that affects them.
	allTargets      []domain.Target
	allSchemas      []*domain.Schema
	tablesForSchema *lruCache[domain.ID, []*domain.Table]
	columnsForTable *lruCache[domain.ID, []*domain.Column]

	// childIDs holds, per resident parent, every registered identifier of
	// its direct children, including ids that were registered but never
	// added as targets.
	childIDs *lruCache[domain.ID, map[domain.ID]struct{}]

	pending      map[domain.ID]struct{}
	pendingOrder []domain.ID
	batchSize    int
}

// NewCatalogRepo creates a catalog store over db using codec for identifier
// semantics.
func NewCatalogRepo(db DB, codec domain.IDCodec, opts CatalogOptions) *CatalogRepo {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogRepo{
		db:              db,
		codec:           codec,
		logger:          logger,
		schemas:         newLRUCache[domain.ID, *domain.Schema](size),
		tables:          newLRUCache[domain.ID, *domain.Table](size),
		columns:         newLRUCache[domain.ID, *domain.Column](size),
		locations:       newLRUCache[domain.ID, *domain.Location](size),
		tablesForSchema: newLRUCache[domain.ID, []*domain.Table](size),
		columnsForTable: newLRUCache[domain.ID, []*domain.Column](size),
		childIDs:        newLRUCache[domain.ID, map[domain.ID]struct{}](size),
		pending:         make(map[domain.ID]struct{}),
		batchSize:       batch,
	}
}

// Codec returns the identifier layout of the catalog.
func (r *CatalogRepo) Codec() domain.IDCodec { return r.codec }

// Flush writes all pending registered identifiers to the row store.
func (r *CatalogRepo) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(ctx)
}

// Close flushes pending identifiers and drops all caches. It does not close
// the underlying database, which the caller owns.
func (r *CatalogRepo) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.flushLocked(ctx)
	r.purgeLocked()
	return err
}

// PurgeCaches drops every cached entry. Call it after the row store was
// changed behind the catalog's back, for example by a reset.
func (r *CatalogRepo) PurgeCaches() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
}

func (r *CatalogRepo) purgeLocked() {
	r.schemas.purge()
	r.tables.purge()
	r.columns.purge()
	r.locations.purge()
	r.tablesForSchema.purge()
	r.columnsForTable.purge()
	r.childIDs.purge()
	r.allTargets = nil
	r.allSchemas = nil
}

// CacheStats reports hit and miss counters per cache.
func (r *CatalogRepo) CacheStats() map[string]CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]CacheStats{
		"schema":            r.schemas.snapshot(),
		"table":             r.tables.snapshot(),
		"column":            r.columns.snapshot(),
		"location":          r.locations.snapshot(),
		"tables_for_schema": r.tablesForSchema.snapshot(),
		"columns_for_table": r.columnsForTable.snapshot(),
		"child_ids":         r.childIDs.snapshot(),
	}
}
