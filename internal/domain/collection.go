package domain

import "time"

// ConstraintCollection groups constraints declared over a scope of targets.
// Collection ids form their own flat namespace, separate from target ids.
// The scope is fixed at creation.
type ConstraintCollection struct {
	ID          int64
	Name        string
	Description string
	Scope       []ID
	CreatedAt   time.Time
}

// CollectionDetail is a collection with its resolved scope and constraints.
type CollectionDetail struct {
	ConstraintCollection
	Targets     []Target
	Constraints []ConstraintRecord
}

// CreateCollectionRequest holds the fields for creating a collection.
type CreateCollectionRequest struct {
	Name        string
	Description string
	Scope       []ID
}

// Validate checks that the request is well-formed.
func (r CreateCollectionRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("collection name is required")
	}
	if len(r.Scope) == 0 {
		return ErrValidation("collection %q needs a non-empty scope", r.Name)
	}
	return distinctIDs("collection scope", r.Scope, true)
}
