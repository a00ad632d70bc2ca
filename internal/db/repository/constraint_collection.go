package repository

import (
	"context"
	"database/sql"
	"errors"

	"mdms/internal/domain"
)

// CreateConstraintCollection stores a collection and its scope. Every scope
// identifier must resolve to a target; the scope cannot change afterwards.
func (r *ConstraintRepo) CreateConstraintCollection(ctx context.Context, req domain.CreateCollectionRequest) (*domain.ConstraintCollection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	// Resolve before the tx opens: the catalog reads through the same
	// connection.
	for _, id := range req.Scope {
		if _, err := r.targets.ResolveTarget(ctx, id); err != nil {
			return nil, err
		}
	}

	var collectionID int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO constraint_collection (name, description) VALUES (?, ?)`,
			req.Name, req.Description)
		if err != nil {
			return err
		}
		if collectionID, err = res.LastInsertId(); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO scope (collection_id, target_id) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, id := range req.Scope {
			if _, err := stmt.ExecContext(ctx, collectionID, int64(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapDBError("create constraint collection", err)
	}

	r.logger.Info("created constraint collection", "id", collectionID, "name", req.Name, "scope", len(req.Scope))
	return r.GetConstraintCollection(ctx, collectionID)
}

// GetConstraintCollection returns a collection with its scope identifiers.
func (r *ConstraintRepo) GetConstraintCollection(ctx context.Context, id int64) (*domain.ConstraintCollection, error) {
	var (
		c         domain.ConstraintCollection
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM constraint_collection WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("constraint collection %d not found", id)
	}
	if err != nil {
		return nil, domain.ErrStore("get constraint collection", err)
	}
	if c.CreatedAt, err = parseTimestamp("get constraint collection", createdAt); err != nil {
		return nil, err
	}

	if c.Scope, err = r.scopeIDs(ctx, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConstraintCollections returns one page of collections ordered by id and
// the total number of collections.
func (r *ConstraintRepo) ListConstraintCollections(ctx context.Context, page domain.PageRequest) ([]domain.ConstraintCollection, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM constraint_collection`).Scan(&total); err != nil {
		return nil, 0, domain.ErrStore("count constraint collections", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM constraint_collection ORDER BY id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, domain.ErrStore("list constraint collections", err)
	}

	var out []domain.ConstraintCollection
	for rows.Next() {
		var (
			c         domain.ConstraintCollection
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &createdAt); err != nil {
			_ = rows.Close()
			return nil, 0, domain.ErrStore("scan constraint collection", err)
		}
		if c.CreatedAt, err = parseTimestamp("list constraint collections", createdAt); err != nil {
			_ = rows.Close()
			return nil, 0, err
		}
		out = append(out, c)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, 0, domain.ErrStore("list constraint collections", err)
	}

	for i := range out {
		if out[i].Scope, err = r.scopeIDs(ctx, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// GetScopeForCollection resolves the scope of a collection to targets.
func (r *ConstraintRepo) GetScopeForCollection(ctx context.Context, collectionID int64) ([]domain.Target, error) {
	if err := r.requireCollection(ctx, collectionID); err != nil {
		return nil, err
	}
	ids, err := r.scopeIDs(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	targets := make([]domain.Target, 0, len(ids))
	for _, id := range ids {
		t, err := r.targets.ResolveTarget(ctx, id)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (r *ConstraintRepo) scopeIDs(ctx context.Context, collectionID int64) ([]domain.ID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT target_id FROM scope WHERE collection_id = ? ORDER BY target_id`, collectionID)
	if err != nil {
		return nil, domain.ErrStore("get scope", err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []domain.ID
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, domain.ErrStore("scan scope", err)
		}
		ids = append(ids, toID(v))
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStore("get scope", err)
	}
	return ids, nil
}
