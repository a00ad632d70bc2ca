package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"mdms/internal/domain"
)

// ConstraintSerializer persists one constraint kind. Each serializer owns the
// relations of its kind; nothing else reads or writes them.
type ConstraintSerializer interface {
	Kind() domain.ConstraintKind
	// Serialize writes the payload of c, whose generic row with constraintID
	// was already written through the same tx.
	Serialize(ctx context.Context, tx DBTX, constraintID int64, c domain.Constraint) error
	// DeserializeForCollection reads every constraint of the serializer's kind
	// that belongs to the collection.
	DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error)
}

// TargetResolver resolves target identifiers. CatalogRepo implements it.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, id domain.ID) (domain.Target, error)
}

// ConstraintRepo manages constraint collections, their scopes, and their
// constraints. Constraint ids come from one store-wide counter that is read
// from the row store once and then advanced in memory.
type ConstraintRepo struct {
	db          DB
	targets     TargetResolver
	logger      *slog.Logger
	serializers map[domain.ConstraintKind]ConstraintSerializer
	kinds       []domain.ConstraintKind

	idMu     sync.Mutex
	lastID   int64
	idLoaded bool
}

// NewConstraintRepo creates a constraint repository with the given
// serializers. Registering two serializers for one kind panics.
func NewConstraintRepo(db DB, targets TargetResolver, logger *slog.Logger, serializers ...ConstraintSerializer) *ConstraintRepo {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ConstraintRepo{
		db:          db,
		targets:     targets,
		logger:      logger,
		serializers: make(map[domain.ConstraintKind]ConstraintSerializer, len(serializers)),
	}
	for _, s := range serializers {
		if _, dup := r.serializers[s.Kind()]; dup {
			panic(fmt.Sprintf("repository: duplicate serializer for constraint kind %q", s.Kind()))
		}
		r.serializers[s.Kind()] = s
		r.kinds = append(r.kinds, s.Kind())
	}
	return r
}

// StandardSerializers returns serializers for every built-in constraint kind.
func StandardSerializers() []ConstraintSerializer {
	return []ConstraintSerializer{
		FunctionalDependencySerializer{},
		InclusionDependencySerializer{},
		UniqueColumnCombinationSerializer{},
		DistinctValueCountSerializer{},
		DistinctValueOverlapSerializer{},
		TypeConstraintSerializer{},
		TupleCountSerializer{},
	}
}

// NewStandardConstraintRepo creates a constraint repository with all
// built-in serializers registered.
func NewStandardConstraintRepo(db DB, targets TargetResolver, logger *slog.Logger) *ConstraintRepo {
	return NewConstraintRepo(db, targets, logger, StandardSerializers()...)
}

// Kinds returns the registered constraint kinds in registration order.
func (r *ConstraintRepo) Kinds() []domain.ConstraintKind { return slices.Clone(r.kinds) }

// AddConstraint persists c in the collection and returns its new id.
func (r *ConstraintRepo) AddConstraint(ctx context.Context, collectionID int64, c domain.Constraint) (int64, error) {
	ids, err := r.AddConstraints(ctx, collectionID, []domain.Constraint{c})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AddConstraints persists several constraints of one collection in a single
// transaction. The returned ids are contiguous and in input order. If any
// constraint fails, none is stored and the counter is not advanced.
func (r *ConstraintRepo) AddConstraints(ctx context.Context, collectionID int64, cs []domain.Constraint) ([]int64, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	for _, c := range cs {
		if _, ok := r.serializers[c.Kind()]; !ok {
			return nil, &domain.UnsupportedConstraintError{Kind: c.Kind()}
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	if err := r.requireCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	r.idMu.Lock()
	defer r.idMu.Unlock()

	if err := r.loadCounterLocked(ctx); err != nil {
		return nil, err
	}

	ids := make([]int64, len(cs))
	for i := range cs {
		ids[i] = r.lastID + int64(i) + 1
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for i, c := range cs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO constraint_entry (id, collection_id, kind) VALUES (?, ?, ?)`,
				ids[i], collectionID, string(c.Kind())); err != nil {
				return err
			}
			if err := r.serializers[c.Kind()].Serialize(ctx, tx, ids[i], c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrValidation("constraint references an unknown target")
		}
		return nil, mapDBError("add constraint", err)
	}

	r.lastID = ids[len(ids)-1]
	return ids, nil
}

// loadCounterLocked reads the highest persisted constraint id once.
func (r *ConstraintRepo) loadCounterLocked(ctx context.Context) error {
	if r.idLoaded {
		return nil
	}
	var maxID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(id) FROM constraint_entry`).Scan(&maxID); err != nil {
		return domain.ErrStore("read constraint id counter", err)
	}
	r.lastID = maxID.Int64
	r.idLoaded = true
	r.logger.Debug("constraint id counter initialised", "last_id", r.lastID)
	return nil
}

// GetConstraintsForCollection asks every registered serializer for its
// constraints in the collection and returns their union ordered by id.
func (r *ConstraintRepo) GetConstraintsForCollection(ctx context.Context, collectionID int64) ([]domain.ConstraintRecord, error) {
	if err := r.requireCollection(ctx, collectionID); err != nil {
		return nil, err
	}
	var out []domain.ConstraintRecord
	for _, kind := range r.kinds {
		recs, err := r.serializers[kind].DeserializeForCollection(ctx, r.db, collectionID)
		if err != nil {
			return nil, mapDBError(fmt.Sprintf("read %s constraints", kind), err)
		}
		out = append(out, recs...)
	}
	slices.SortFunc(out, func(a, b domain.ConstraintRecord) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

func (r *ConstraintRepo) requireCollection(ctx context.Context, collectionID int64) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM constraint_collection WHERE id = ?`, collectionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("constraint collection %d not found", collectionID)
	}
	if err != nil {
		return domain.ErrStore("check constraint collection", err)
	}
	return nil
}
