package domain

// ConstraintDoc is the tagged, flat wire form of a constraint used by import
// files and the HTTP API. Only the fields of the tagged kind are meaningful.
type ConstraintDoc struct {
	ID         int64          `json:"id,omitempty" yaml:"id,omitempty"`
	Kind       ConstraintKind `json:"kind" yaml:"kind"`
	Columns    []ID           `json:"columns,omitempty" yaml:"columns,omitempty"`
	Referenced []ID           `json:"referenced,omitempty" yaml:"referenced,omitempty"`
	Column     ID             `json:"column,omitempty" yaml:"column,omitempty"`
	Table      ID             `json:"table,omitempty" yaml:"table,omitempty"`
	Type       string         `json:"type,omitempty" yaml:"type,omitempty"`
	Count      int64          `json:"count,omitempty" yaml:"count,omitempty"`
}

// ToConstraint converts the document into its typed variant.
//
// Field use per kind:
//   - functional_dependency: columns (lhs), column (rhs)
//   - inclusion_dependency: columns (dependent), referenced
//   - unique_column_combination: columns
//   - distinct_value_count: column, count
//   - distinct_value_overlap: columns (exactly two), count
//   - type: column, type
//   - tuple_count: table, count
func (d ConstraintDoc) ToConstraint() (Constraint, error) {
	switch d.Kind {
	case KindFunctionalDependency:
		return &FunctionalDependency{LHS: d.Columns, RHS: d.Column}, nil
	case KindInclusionDependency:
		return &InclusionDependency{Dependent: d.Columns, Referenced: d.Referenced}, nil
	case KindUniqueColumnCombination:
		return &UniqueColumnCombination{Columns: d.Columns}, nil
	case KindDistinctValueCount:
		return &DistinctValueCount{Column: d.Column, Count: d.Count}, nil
	case KindDistinctValueOverlap:
		if len(d.Columns) != 2 {
			return nil, ErrValidation("distinct value overlap needs exactly two columns, got %d", len(d.Columns))
		}
		return &DistinctValueOverlap{First: d.Columns[0], Second: d.Columns[1], Overlap: d.Count}, nil
	case KindType:
		return &TypeConstraint{Column: d.Column, Type: d.Type}, nil
	case KindTupleCount:
		return &TupleCount{Table: d.Table, Count: d.Count}, nil
	default:
		return nil, &UnsupportedConstraintError{Kind: d.Kind}
	}
}

// DocFromRecord renders a persisted constraint in wire form.
func DocFromRecord(r ConstraintRecord) ConstraintDoc {
	d := ConstraintDoc{ID: r.ID, Kind: r.Constraint.Kind()}
	switch c := r.Constraint.(type) {
	case *FunctionalDependency:
		d.Columns, d.Column = c.LHS, c.RHS
	case *InclusionDependency:
		d.Columns, d.Referenced = c.Dependent, c.Referenced
	case *UniqueColumnCombination:
		d.Columns = c.Columns
	case *DistinctValueCount:
		d.Column, d.Count = c.Column, c.Count
	case *DistinctValueOverlap:
		d.Columns, d.Count = []ID{c.First, c.Second}, c.Overlap
	case *TypeConstraint:
		d.Column, d.Type = c.Column, c.Type
	case *TupleCount:
		d.Table, d.Count = c.Table, c.Count
	}
	return d
}
