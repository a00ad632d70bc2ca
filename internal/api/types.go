package api

import (
	"time"

	"mdms/internal/domain"
)

// LocationView is the wire form of a location.
type LocationView struct {
	Type       string            `json:"type" yaml:"type"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// TargetView is the wire form of a schema, table, or column.
type TargetView struct {
	ID          domain.ID     `json:"id" yaml:"id"`
	Kind        string        `json:"kind" yaml:"kind"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Parent      *domain.ID    `json:"parent,omitempty" yaml:"parent,omitempty"`
	Address     string        `json:"address" yaml:"address"`
	Location    *LocationView `json:"location,omitempty" yaml:"location,omitempty"`
}

// CollectionView is the wire form of a constraint collection.
type CollectionView struct {
	ID          int64                  `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Scope       []domain.ID            `json:"scope" yaml:"scope"`
	CreatedAt   time.Time              `json:"created_at" yaml:"created_at"`
	Targets     []TargetView           `json:"targets,omitempty" yaml:"targets,omitempty"`
	Constraints []domain.ConstraintDoc `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// ListResponse is a page of items.
type ListResponse[T any] struct {
	Items         []T    `json:"items" yaml:"items"`
	Total         int64  `json:"total,omitempty" yaml:"total,omitempty"`
	NextPageToken string `json:"next_page_token,omitempty" yaml:"next_page_token,omitempty"`
}

// CreateCollectionBody is the request body of POST /v1/collections.
type CreateCollectionBody struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Scope       []domain.ID `json:"scope"`
}

// AddConstraintsBody is the request body of POST /v1/collections/{id}/constraints.
type AddConstraintsBody struct {
	Constraints []domain.ConstraintDoc `json:"constraints"`
}

// AddConstraintsResponse lists the ids of stored constraints in input order.
type AddConstraintsResponse struct {
	CollectionID  int64   `json:"collection_id"`
	ConstraintIDs []int64 `json:"constraint_ids"`
}

// === Mapping helpers ===

// LocationToAPI converts a location; nil stays nil.
func LocationToAPI(l *domain.Location) *LocationView {
	if l == nil {
		return nil
	}
	return &LocationView{Type: l.Type, Properties: l.Properties}
}

// TargetToAPI converts any target.
func TargetToAPI(codec domain.IDCodec, t domain.Target) TargetView {
	v := TargetView{
		ID:       t.TargetID(),
		Kind:     t.Kind().String(),
		Name:     t.TargetName(),
		Address:  codec.Describe(t.TargetID()),
		Location: LocationToAPI(t.TargetLocation()),
	}
	switch x := t.(type) {
	case *domain.Schema:
		v.Description = x.Description
	case *domain.Table:
		v.Description = x.Description
		v.Parent = &x.SchemaID
	case *domain.Column:
		v.Description = x.Description
		v.Parent = &x.TableID
	}
	return v
}

// TargetsToAPI converts a slice of targets of any concrete type.
func TargetsToAPI[T domain.Target](codec domain.IDCodec, ts []T) []TargetView {
	out := make([]TargetView, 0, len(ts))
	for _, t := range ts {
		out = append(out, TargetToAPI(codec, t))
	}
	return out
}

// CollectionToAPI converts a collection without targets or constraints.
func CollectionToAPI(c domain.ConstraintCollection) CollectionView {
	scope := c.Scope
	if scope == nil {
		scope = []domain.ID{}
	}
	return CollectionView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Scope:       scope,
		CreatedAt:   c.CreatedAt,
	}
}

// CollectionDetailToAPI converts a collection with its targets and constraints.
func CollectionDetailToAPI(codec domain.IDCodec, d *domain.CollectionDetail) CollectionView {
	v := CollectionToAPI(d.ConstraintCollection)
	v.Targets = TargetsToAPI(codec, d.Targets)
	v.Constraints = make([]domain.ConstraintDoc, 0, len(d.Constraints))
	for _, rec := range d.Constraints {
		v.Constraints = append(v.Constraints, domain.DocFromRecord(rec))
	}
	return v
}
