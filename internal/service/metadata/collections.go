package metadata

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"mdms/internal/domain"
)

// resolveConcurrency bounds parallel target lookups during imports.
const resolveConcurrency = 4

// CreateCollection creates a constraint collection over an existing scope.
func (s *MetadataStore) CreateCollection(ctx context.Context, req domain.CreateCollectionRequest) (*domain.ConstraintCollection, error) {
	return s.constraints.CreateConstraintCollection(ctx, req)
}

// GetCollection returns a collection with its resolved scope and all of its
// constraints.
func (s *MetadataStore) GetCollection(ctx context.Context, id int64) (*domain.CollectionDetail, error) {
	c, err := s.constraints.GetConstraintCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	targets, err := s.constraints.GetScopeForCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	constraints, err := s.constraints.GetConstraintsForCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.CollectionDetail{ConstraintCollection: *c, Targets: targets, Constraints: constraints}, nil
}

// ListCollections returns a page of collections and the total count.
func (s *MetadataStore) ListCollections(ctx context.Context, page domain.PageRequest) ([]domain.ConstraintCollection, int64, error) {
	return s.constraints.ListConstraintCollections(ctx, page)
}

// AddConstraint adds one constraint to a collection and returns its id. Every
// target the constraint refers to must be a schema, table, or column.
func (s *MetadataStore) AddConstraint(ctx context.Context, collectionID int64, c domain.Constraint) (int64, error) {
	if c == nil {
		return 0, domain.ErrValidation("constraint is required")
	}
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if err := s.requireTargets(ctx, []domain.Constraint{c}); err != nil {
		return 0, err
	}
	return s.constraints.AddConstraint(ctx, collectionID, c)
}

// CollectionSpec describes a collection to create during an import.
type CollectionSpec struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Scope       []domain.ID `json:"scope" yaml:"scope"`
}

// ImportRequest is a batch of profiling results. It names either an existing
// collection or a collection to create.
type ImportRequest struct {
	CollectionID int64                  `json:"collection_id,omitempty" yaml:"collection_id,omitempty"`
	Collection   *CollectionSpec        `json:"collection,omitempty" yaml:"collection,omitempty"`
	Constraints  []domain.ConstraintDoc `json:"constraints" yaml:"constraints"`
}

// ImportResult reports where an import was stored.
type ImportResult struct {
	CollectionID  int64   `json:"collection_id" yaml:"collection_id"`
	ConstraintIDs []int64 `json:"constraint_ids" yaml:"constraint_ids"`
}

// Import validates a batch of constraints and stores it in one transaction.
// Every target a constraint refers to must exist. A collection named by the
// request is created only after the constraints passed validation.
func (s *MetadataStore) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if (req.CollectionID == 0) == (req.Collection == nil) {
		return nil, domain.ErrValidation("import needs either a collection id or a collection to create")
	}

	cs, err := DecodeConstraints(req.Constraints)
	if err != nil {
		return nil, err
	}
	if err := s.requireTargets(ctx, cs); err != nil {
		return nil, err
	}

	collectionID := req.CollectionID
	if req.Collection != nil {
		c, err := s.constraints.CreateConstraintCollection(ctx, domain.CreateCollectionRequest{
			Name:        req.Collection.Name,
			Description: req.Collection.Description,
			Scope:       req.Collection.Scope,
		})
		if err != nil {
			return nil, err
		}
		collectionID = c.ID
	}

	ids, err := s.constraints.AddConstraints(ctx, collectionID, cs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("imported constraints", "collection_id", collectionID, "count", len(ids))
	return &ImportResult{CollectionID: collectionID, ConstraintIDs: ids}, nil
}

// DecodeConstraints converts wire documents into validated constraints.
func DecodeConstraints(docs []domain.ConstraintDoc) ([]domain.Constraint, error) {
	out := make([]domain.Constraint, 0, len(docs))
	for i, d := range docs {
		c, err := d.ToConstraint()
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// requireTargets checks that every target referenced by cs exists.
func (s *MetadataStore) requireTargets(ctx context.Context, cs []domain.Constraint) error {
	var ids []domain.ID
	for _, c := range cs {
		ids = append(ids, c.TargetIDs()...)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.catalog.ResolveTarget(gctx, id)
			return err
		})
	}
	return g.Wait()
}
