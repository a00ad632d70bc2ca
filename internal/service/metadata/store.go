// Package metadata implements the metadata store service on top of the
// catalog and constraint repositories.
package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mdms/internal/db"
	"mdms/internal/db/repository"
	"mdms/internal/domain"
)

// Options configures how a store is opened or initialised.
type Options struct {
	CacheSize int
	BatchSize int
	// TableBits and ColumnBits select the identifier layout of a new store.
	// Zero selects the default layout. Open ignores them and reads the
	// layout the store was initialised with.
	TableBits  int
	ColumnBits int
	Logger     *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) codec() (domain.IDCodec, error) {
	if o.TableBits == 0 && o.ColumnBits == 0 {
		return domain.DefaultIDCodec, nil
	}
	return domain.NewIDCodec(o.TableBits, o.ColumnBits)
}

// MetadataStore is the entry point for clients of a metadata store. It
// allocates local numbers for new targets, looks targets up by name, and
// manages constraint collections.
//
//nolint:revive // Name chosen for clarity across package boundaries
type MetadataStore struct {
	catalog     domain.CatalogRepository
	constraints domain.ConstraintRepository
	settings    domain.StoreConfigRepository
	logger      *slog.Logger

	// allocMu serialises find-free-number-then-register sequences.
	allocMu sync.Mutex
}

// NewMetadataStore creates a MetadataStore over existing repositories.
func NewMetadataStore(
	catalog domain.CatalogRepository,
	constraints domain.ConstraintRepository,
	settings domain.StoreConfigRepository,
	logger *slog.Logger,
) *MetadataStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataStore{
		catalog:     catalog,
		constraints: constraints,
		settings:    settings,
		logger:      logger,
	}
}

// Initialize drops every catalog relation of sqlDB, recreates them empty, and
// records the store configuration. Existing contents are lost.
func Initialize(ctx context.Context, sqlDB *sql.DB, opts Options) (*MetadataStore, error) {
	codec, err := opts.codec()
	if err != nil {
		return nil, err
	}
	if err := db.ResetMigrations(sqlDB); err != nil {
		return nil, domain.ErrStore("initialise store", err)
	}
	version, err := db.SchemaVersion(sqlDB)
	if err != nil {
		return nil, domain.ErrStore("initialise store", err)
	}

	settings := repository.NewConfigRepo(sqlDB)
	storeID := uuid.NewString()
	if err := settings.Save(ctx, map[string]string{
		repository.ConfigKeyStoreID:       storeID,
		repository.ConfigKeyTableBits:     strconv.Itoa(codec.TableBits()),
		repository.ConfigKeyColumnBits:    strconv.Itoa(codec.ColumnBits()),
		repository.ConfigKeySchemaVersion: strconv.FormatInt(version, 10),
	}); err != nil {
		return nil, err
	}

	s := newFromDB(sqlDB, codec, settings, opts)
	s.logger.Info("initialised metadata store", "store_id", storeID, "layout", layoutString(codec))
	return s, nil
}

// Open attaches to an initialised store. It fails with a ValidationError
// naming the missing relations if the store was never initialised.
func Open(ctx context.Context, sqlDB *sql.DB, opts Options) (*MetadataStore, error) {
	missing, err := db.MissingRelations(ctx, sqlDB)
	if err != nil {
		return nil, domain.ErrStore("open store", err)
	}
	if len(missing) > 0 {
		return nil, domain.ErrValidation("store is not initialised, missing relations: %s", strings.Join(missing, ", "))
	}

	settings := repository.NewConfigRepo(sqlDB)
	values, err := settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	codec, err := codecFromSettings(values)
	if err != nil {
		return nil, err
	}

	s := newFromDB(sqlDB, codec, settings, opts)
	s.logger.Debug("opened metadata store", "store_id", values[repository.ConfigKeyStoreID], "layout", layoutString(codec))
	return s, nil
}

func newFromDB(sqlDB *sql.DB, codec domain.IDCodec, settings *repository.ConfigRepo, opts Options) *MetadataStore {
	logger := opts.logger()
	catalog := repository.NewCatalogRepo(sqlDB, codec, repository.CatalogOptions{
		CacheSize: opts.CacheSize,
		BatchSize: opts.BatchSize,
		Logger:    logger,
	})
	constraints := repository.NewStandardConstraintRepo(sqlDB, catalog, logger)
	return NewMetadataStore(catalog, constraints, settings, logger)
}

func codecFromSettings(values map[string]string) (domain.IDCodec, error) {
	tb, tok := values[repository.ConfigKeyTableBits]
	cb, cok := values[repository.ConfigKeyColumnBits]
	if !tok && !cok {
		return domain.DefaultIDCodec, nil
	}
	tableBits, err := strconv.Atoi(tb)
	if err != nil {
		return domain.IDCodec{}, domain.ErrValidation("invalid %s %q", repository.ConfigKeyTableBits, tb)
	}
	columnBits, err := strconv.Atoi(cb)
	if err != nil {
		return domain.IDCodec{}, domain.ErrValidation("invalid %s %q", repository.ConfigKeyColumnBits, cb)
	}
	return domain.NewIDCodec(tableBits, columnBits)
}

func layoutString(c domain.IDCodec) string {
	return fmt.Sprintf("%d/%d/%d", c.SchemaBits(), c.TableBits(), c.ColumnBits())
}

// Codec returns the identifier layout of the store.
func (s *MetadataStore) Codec() domain.IDCodec { return s.catalog.Codec() }

// Settings returns the persisted store configuration.
func (s *MetadataStore) Settings(ctx context.Context) (map[string]string, error) {
	return s.settings.Load(ctx)
}

// Flush writes pending identifier registrations.
func (s *MetadataStore) Flush(ctx context.Context) error {
	return s.catalog.Flush(ctx)
}

// Close flushes pending writes. The caller closes the database.
func (s *MetadataStore) Close(ctx context.Context) error {
	if err := s.catalog.Flush(ctx); err != nil {
		return err
	}
	s.catalog.PurgeCaches()
	return nil
}
