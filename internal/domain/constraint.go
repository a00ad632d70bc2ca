package domain

import "slices"

// ConstraintKind tags a constraint variant. Serializers are registered per kind.
type ConstraintKind string

// Built-in constraint kinds.
const (
	KindFunctionalDependency    ConstraintKind = "functional_dependency"
	KindInclusionDependency     ConstraintKind = "inclusion_dependency"
	KindUniqueColumnCombination ConstraintKind = "unique_column_combination"
	KindDistinctValueCount      ConstraintKind = "distinct_value_count"
	KindDistinctValueOverlap    ConstraintKind = "distinct_value_overlap"
	KindType                    ConstraintKind = "type"
	KindTupleCount              ConstraintKind = "tuple_count"
)

// ConstraintKinds lists every built-in kind.
var ConstraintKinds = []ConstraintKind{
	KindFunctionalDependency,
	KindInclusionDependency,
	KindUniqueColumnCombination,
	KindDistinctValueCount,
	KindDistinctValueOverlap,
	KindType,
	KindTupleCount,
}

// Constraint is a profiling fact over one or more targets. The catalog checks
// structure only; it never judges whether the fact holds on the data.
type Constraint interface {
	Kind() ConstraintKind
	TargetIDs() []ID
	Validate() error
}

// ConstraintRecord is a persisted constraint with its store-wide identifier.
type ConstraintRecord struct {
	ID           int64
	CollectionID int64
	Constraint   Constraint
}

// FunctionalDependency states that the LHS columns determine the RHS column.
type FunctionalDependency struct {
	LHS []ID
	RHS ID
}

func (c *FunctionalDependency) Kind() ConstraintKind { return KindFunctionalDependency }

func (c *FunctionalDependency) TargetIDs() []ID { return append(slices.Clone(c.LHS), c.RHS) }

func (c *FunctionalDependency) Validate() error {
	if err := distinctIDs("functional dependency lhs", c.LHS, true); err != nil {
		return err
	}
	if slices.Contains(c.LHS, c.RHS) {
		return ErrValidation("functional dependency rhs %s is part of its lhs", c.RHS)
	}
	return nil
}

// InclusionDependency states that the values of Dependent[i] are contained in
// Referenced[i], pairwise.
type InclusionDependency struct {
	Dependent  []ID
	Referenced []ID
}

func (c *InclusionDependency) Kind() ConstraintKind { return KindInclusionDependency }

func (c *InclusionDependency) TargetIDs() []ID {
	return append(slices.Clone(c.Dependent), c.Referenced...)
}

func (c *InclusionDependency) Validate() error {
	if len(c.Dependent) == 0 {
		return ErrValidation("inclusion dependency needs at least one column pair")
	}
	if len(c.Dependent) != len(c.Referenced) {
		return ErrValidation("inclusion dependency has %d dependent but %d referenced columns",
			len(c.Dependent), len(c.Referenced))
	}
	return nil
}

// UniqueColumnCombination states that the columns together contain no duplicates.
type UniqueColumnCombination struct {
	Columns []ID
}

func (c *UniqueColumnCombination) Kind() ConstraintKind { return KindUniqueColumnCombination }

func (c *UniqueColumnCombination) TargetIDs() []ID { return slices.Clone(c.Columns) }

func (c *UniqueColumnCombination) Validate() error {
	return distinctIDs("unique column combination", c.Columns, true)
}

// DistinctValueCount records the number of distinct values of a column.
type DistinctValueCount struct {
	Column ID
	Count  int64
}

func (c *DistinctValueCount) Kind() ConstraintKind { return KindDistinctValueCount }

func (c *DistinctValueCount) TargetIDs() []ID { return []ID{c.Column} }

func (c *DistinctValueCount) Validate() error {
	if c.Count < 0 {
		return ErrValidation("distinct value count must not be negative, got %d", c.Count)
	}
	return nil
}

// DistinctValueOverlap records how many distinct values two columns share.
type DistinctValueOverlap struct {
	First   ID
	Second  ID
	Overlap int64
}

func (c *DistinctValueOverlap) Kind() ConstraintKind { return KindDistinctValueOverlap }

func (c *DistinctValueOverlap) TargetIDs() []ID { return []ID{c.First, c.Second} }

func (c *DistinctValueOverlap) Validate() error {
	if c.First == c.Second {
		return ErrValidation("distinct value overlap needs two different columns")
	}
	if c.Overlap < 0 {
		return ErrValidation("distinct value overlap must not be negative, got %d", c.Overlap)
	}
	return nil
}

// TypeConstraint records the data type observed in a column.
type TypeConstraint struct {
	Column ID
	Type   string
}

func (c *TypeConstraint) Kind() ConstraintKind { return KindType }

func (c *TypeConstraint) TargetIDs() []ID { return []ID{c.Column} }

func (c *TypeConstraint) Validate() error {
	if c.Type == "" {
		return ErrValidation("type constraint needs a type")
	}
	return nil
}

// TupleCount records the number of rows in a table.
type TupleCount struct {
	Table ID
	Count int64
}

func (c *TupleCount) Kind() ConstraintKind { return KindTupleCount }

func (c *TupleCount) TargetIDs() []ID { return []ID{c.Table} }

func (c *TupleCount) Validate() error {
	if c.Count < 0 {
		return ErrValidation("tuple count must not be negative, got %d", c.Count)
	}
	return nil
}

func distinctIDs(what string, ids []ID, nonEmpty bool) error {
	if nonEmpty && len(ids) == 0 {
		return ErrValidation("%s needs at least one column", what)
	}
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return ErrValidation("%s lists column %s twice", what, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
