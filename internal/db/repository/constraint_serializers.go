package repository

import (
	"context"
	"database/sql"
	"fmt"

	"mdms/internal/domain"
)

func wrongVariant(want domain.ConstraintKind, got domain.Constraint) error {
	return fmt.Errorf("serializer for %s received %T", want, got)
}

// === Functional dependencies ===

// FunctionalDependencySerializer stores functional dependencies in fd and
// fd_lhs.
type FunctionalDependencySerializer struct{}

func (FunctionalDependencySerializer) Kind() domain.ConstraintKind {
	return domain.KindFunctionalDependency
}

func (FunctionalDependencySerializer) Serialize(ctx context.Context, tx DBTX, id int64, c domain.Constraint) error {
	fd, ok := c.(*domain.FunctionalDependency)
	if !ok {
		return wrongVariant(domain.KindFunctionalDependency, c)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO fd (constraint_id, rhs_id) VALUES (?, ?)`, id, int64(fd.RHS)); err != nil {
		return err
	}
	for pos, col := range fd.LHS {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fd_lhs (constraint_id, position, column_id) VALUES (?, ?, ?)`,
			id, pos, int64(col)); err != nil {
			return err
		}
	}
	return nil
}

func (FunctionalDependencySerializer) DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.id, f.rhs_id, l.column_id
		FROM constraint_entry e
		JOIN fd f ON f.constraint_id = e.id
		JOIN fd_lhs l ON l.constraint_id = e.id
		WHERE e.collection_id = ?
		ORDER BY e.id, l.position`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ConstraintRecord
	var cur *domain.FunctionalDependency
	for rows.Next() {
		var id, rhs, lhs int64
		if err := rows.Scan(&id, &rhs, &lhs); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			cur = &domain.FunctionalDependency{RHS: toID(rhs)}
			out = append(out, domain.ConstraintRecord{ID: id, CollectionID: collectionID, Constraint: cur})
		}
		cur.LHS = append(cur.LHS, toID(lhs))
	}
	return out, rows.Err()
}

// === Inclusion dependencies ===

// InclusionDependencySerializer stores inclusion dependencies as ordered
// column pairs in ind_part.
type InclusionDependencySerializer struct{}

func (InclusionDependencySerializer) Kind() domain.ConstraintKind {
	return domain.KindInclusionDependency
}

func (InclusionDependencySerializer) Serialize(ctx context.Context, tx DBTX, id int64, c domain.Constraint) error {
	ind, ok := c.(*domain.InclusionDependency)
	if !ok {
		return wrongVariant(domain.KindInclusionDependency, c)
	}
	for pos := range ind.Dependent {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ind_part (constraint_id, position, dependent_id, referenced_id) VALUES (?, ?, ?, ?)`,
			id, pos, int64(ind.Dependent[pos]), int64(ind.Referenced[pos])); err != nil {
			return err
		}
	}
	return nil
}

func (InclusionDependencySerializer) DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.id, p.dependent_id, p.referenced_id
		FROM constraint_entry e
		JOIN ind_part p ON p.constraint_id = e.id
		WHERE e.collection_id = ?
		ORDER BY e.id, p.position`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ConstraintRecord
	var cur *domain.InclusionDependency
	for rows.Next() {
		var id, dep, ref int64
		if err := rows.Scan(&id, &dep, &ref); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			cur = &domain.InclusionDependency{}
			out = append(out, domain.ConstraintRecord{ID: id, CollectionID: collectionID, Constraint: cur})
		}
		cur.Dependent = append(cur.Dependent, toID(dep))
		cur.Referenced = append(cur.Referenced, toID(ref))
	}
	return out, rows.Err()
}

// === Unique column combinations ===

// UniqueColumnCombinationSerializer stores unique column combinations in
// ucc_column.
type UniqueColumnCombinationSerializer struct{}

func (UniqueColumnCombinationSerializer) Kind() domain.ConstraintKind {
	return domain.KindUniqueColumnCombination
}

func (UniqueColumnCombinationSerializer) Serialize(ctx context.Context, tx DBTX, id int64, c domain.Constraint) error {
	ucc, ok := c.(*domain.UniqueColumnCombination)
	if !ok {
		return wrongVariant(domain.KindUniqueColumnCombination, c)
	}
	for pos, col := range ucc.Columns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ucc_column (constraint_id, position, column_id) VALUES (?, ?, ?)`,
			id, pos, int64(col)); err != nil {
			return err
		}
	}
	return nil
}

func (UniqueColumnCombinationSerializer) DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.id, u.column_id
		FROM constraint_entry e
		JOIN ucc_column u ON u.constraint_id = e.id
		WHERE e.collection_id = ?
		ORDER BY e.id, u.position`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ConstraintRecord
	var cur *domain.UniqueColumnCombination
	for rows.Next() {
		var id, col int64
		if err := rows.Scan(&id, &col); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			cur = &domain.UniqueColumnCombination{}
			out = append(out, domain.ConstraintRecord{ID: id, CollectionID: collectionID, Constraint: cur})
		}
		cur.Columns = append(cur.Columns, toID(col))
	}
	return out, rows.Err()
}

// === Single-row statistics ===

// scanSingleRow reads constraints stored as one row each in a kind table.
func scanSingleRow(ctx context.Context, db DBTX, collectionID int64, query string,
	scan func(rows *sql.Rows) (int64, domain.Constraint, error),
) ([]domain.ConstraintRecord, error) {
	rows, err := db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ConstraintRecord
	for rows.Next() {
		id, c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ConstraintRecord{ID: id, CollectionID: collectionID, Constraint: c})
	}
	return out, rows.Err()
}

// DistinctValueCountSerializer stores distinct value counts.
type DistinctValueCountSerializer struct{}

func (DistinctValueCountSerializer) Kind() domain.ConstraintKind { return domain.KindDistinctValueCount }

func (DistinctValueCountSerializer) Serialize(ctx context.Context, tx DBTX, id int64, c domain.Constraint) error {
	dvc, ok := c.(*domain.DistinctValueCount)
	if !ok {
		return wrongVariant(domain.KindDistinctValueCount, c)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO distinct_value_count (constraint_id, column_id, value_count) VALUES (?, ?, ?)`,
		id, int64(dvc.Column), dvc.Count)
	return err
}

func (DistinctValueCountSerializer) DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error) {
	return scanSingleRow(ctx, db, collectionID, `
		SELECT e.id, d.column_id, d.value_count
		FROM constraint_entry e
		JOIN distinct_value_count d ON d.constraint_id = e.id
		WHERE e.collection_id = ?
		ORDER BY e.id`,
		func(rows *sql.Rows) (int64, domain.Constraint, error) {
			var id, col, n int64
			err := rows.Scan(&id, &col, &n)
			return id, &domain.DistinctValueCount{Column: toID(col), Count: n}, err
		})
}

// DistinctValueOverlapSerializer stores distinct value overlaps.
type DistinctValueOverlapSerializer struct{}

func (DistinctValueOverlapSerializer) Kind() domain.ConstraintKind {
	return domain.KindDistinctValueOverlap
}

func (DistinctValueOverlapSerializer) Serialize(ctx context.Context, tx DBTX, id int64, c domain.Constraint) error {
	dvo, ok := c.(*domain.DistinctValueOverlap)
	if !ok {
		return wrongVariant(domain.KindDistinctValueOverlap, c)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO distinct_value_overlap (constraint_id, first_column_id, second_column_id, overlap) VALUES (?, ?, ?, ?)`,
		id, int64(dvo.First), int64(dvo.Second), dvo.Overlap)
	return err
}

func (DistinctValueOverlapSerializer) DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error) {
	return scanSingleRow(ctx, db, collectionID, `
		SELECT e.id, d.first_column_id, d.second_column_id, d.overlap
		FROM constraint_entry e
		JOIN distinct_value_overlap d ON d.constraint_id = e.id
		WHERE e.collection_id = ?
		ORDER BY e.id`,
		func(rows *sql.Rows) (int64, domain.Constraint, error) {
			var id, first, second, n int64
			err := rows.Scan(&id, &first, &second, &n)
			return id, &domain.DistinctValueOverlap{First: toID(first), Second: toID(second), Overlap: n}, err
		})
}

// TypeConstraintSerializer stores column data types.
type TypeConstraintSerializer struct{}

func (TypeConstraintSerializer) Kind() domain.ConstraintKind { return domain.KindType }

func (TypeConstraintSerializer) Serialize(ctx context.Context, tx DBTX, id int64, c domain.Constraint) error {
	tc, ok := c.(*domain.TypeConstraint)
	if !ok {
		return wrongVariant(domain.KindType, c)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO type_constraint (constraint_id, column_id, type_name) VALUES (?, ?, ?)`,
		id, int64(tc.Column), tc.Type)
	return err
}

func (TypeConstraintSerializer) DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error) {
	return scanSingleRow(ctx, db, collectionID, `
		SELECT e.id, t.column_id, t.type_name
		FROM constraint_entry e
		JOIN type_constraint t ON t.constraint_id = e.id
		WHERE e.collection_id = ?
		ORDER BY e.id`,
		func(rows *sql.Rows) (int64, domain.Constraint, error) {
			var (
				id, col  int64
				typeName string
			)
			err := rows.Scan(&id, &col, &typeName)
			return id, &domain.TypeConstraint{Column: toID(col), Type: typeName}, err
		})
}

// TupleCountSerializer stores table row counts.
type TupleCountSerializer struct{}

func (TupleCountSerializer) Kind() domain.ConstraintKind { return domain.KindTupleCount }

func (TupleCountSerializer) Serialize(ctx context.Context, tx DBTX, id int64, c domain.Constraint) error {
	tc, ok := c.(*domain.TupleCount)
	if !ok {
		return wrongVariant(domain.KindTupleCount, c)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tuple_count (constraint_id, table_id, tuple_count) VALUES (?, ?, ?)`,
		id, int64(tc.Table), tc.Count)
	return err
}

func (TupleCountSerializer) DeserializeForCollection(ctx context.Context, db DBTX, collectionID int64) ([]domain.ConstraintRecord, error) {
	return scanSingleRow(ctx, db, collectionID, `
		SELECT e.id, t.table_id, t.tuple_count
		FROM constraint_entry e
		JOIN tuple_count t ON t.constraint_id = e.id
		WHERE e.collection_id = ?
		ORDER BY e.id`,
		func(rows *sql.Rows) (int64, domain.Constraint, error) {
			var id, table, n int64
			err := rows.Scan(&id, &table, &n)
			return id, &domain.TupleCount{Table: toID(table), Count: n}, err
		})
}
