package repository

import (
	"context"
	"database/sql"
	"errors"

	"mdms/internal/domain"
)

// RegisterID records id in the identity relation so that it counts as in use.
// The caller must already know the id is unused (see IsIDInUse); the store
// never generates target identifiers itself.
//
// Registration is batched: ids are written when the batch fills up, before
// the identity relation is read, and on Flush or Close. An id already in the
// batch or known from a resident cache is rejected here. An id that turns
// out to be persisted only when the batch is written is already in use, so
// it is logged and dropped.
func (r *CatalogRepo) RegisterID(ctx context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.pending[id]; dup || r.residentLocked(id) {
		r.logger.Debug("identifier collision", "id", id)
		return domain.ErrIDCollision(id)
	}
	r.pending[id] = struct{}{}
	r.pendingOrder = append(r.pendingOrder, id)

	r.allTargets = nil
	r.noteChildLocked(id)

	if len(r.pendingOrder) >= r.batchSize {
		return r.flushLocked(ctx)
	}
	return nil
}

// IsIDInUse reports whether id is registered. It never under-reports: it
// consults the pending batch, the point cache of id's kind, the cached child
// set of a resident parent, and finally the row store.
func (r *CatalogRepo) IsIDInUse(ctx context.Context, id domain.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[id]; ok {
		return true, nil
	}

	switch r.codec.KindOf(id) {
	case domain.KindSchema:
		if r.schemas.contains(id) {
			return true, nil
		}
	case domain.KindTable:
		if r.tables.contains(id) {
			return true, nil
		}
		if parent := r.codec.SchemaOf(id); r.schemas.contains(parent) {
			return r.childSetContainsLocked(ctx, parent, id)
		}
	case domain.KindColumn:
		if r.columns.contains(id) {
			return true, nil
		}
		if parent := r.codec.TableOf(id); r.tables.contains(parent) {
			return r.childSetContainsLocked(ctx, parent, id)
		}
	}

	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM target WHERE id = ? LIMIT 1`, int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.ErrStore("check identifier", err)
	}
	return true, nil
}

// residentLocked reports whether a cache already proves id is in use,
// without touching the row store.
func (r *CatalogRepo) residentLocked(id domain.ID) bool {
	switch r.codec.KindOf(id) {
	case domain.KindSchema:
		if r.schemas.contains(id) {
			return true
		}
	case domain.KindTable:
		if r.tables.contains(id) {
			return true
		}
	case domain.KindColumn:
		if r.columns.contains(id) {
			return true
		}
	}
	if parent, ok := r.codec.Parent(id); ok {
		if set, ok := r.childIDs.peek(parent); ok {
			_, found := set[id]
			return found
		}
	}
	return false
}

func (r *CatalogRepo) childSetContainsLocked(ctx context.Context, parent, id domain.ID) (bool, error) {
	set, ok := r.childIDs.get(parent)
	if !ok {
		var err error
		if set, err = r.loadChildIDsLocked(ctx, parent); err != nil {
			return false, err
		}
		r.childIDs.put(parent, set)
	}
	_, found := set[id]
	return found, nil
}

// loadChildIDsLocked reads every registered direct child of parent with one
// range scan over the identity relation.
func (r *CatalogRepo) loadChildIDsLocked(ctx context.Context, parent domain.ID) (map[domain.ID]struct{}, error) {
	lo, hi, ok := r.codec.ChildRange(parent)
	if !ok {
		return map[domain.ID]struct{}{}, nil
	}
	// Children of a schema are tables, whose column field is the sentinel.
	// Children of a table are all of its columns.
	var maskValue int64
	if r.codec.KindOf(parent) == domain.KindSchema {
		maskValue = int64(r.codec.MaxColumnNumber() + 1)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM target WHERE id BETWEEN ? AND ? AND (id & ?) = ?`,
		int64(lo), int64(hi), maskValue, maskValue)
	if err != nil {
		return nil, domain.ErrStore("load child identifiers", err)
	}
	defer rows.Close() //nolint:errcheck

	set := make(map[domain.ID]struct{})
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, domain.ErrStore("scan child identifier", err)
		}
		set[toID(v)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStore("load child identifiers", err)
	}
	// Pending ids are not in the row store yet but must stay visible after
	// the next flush.
	for id := range r.pending {
		if p, ok := r.codec.Parent(id); ok && p == parent {
			set[id] = struct{}{}
		}
	}
	return set, nil
}

// noteChildLocked adds id to its parent's cached child set, if loaded.
func (r *CatalogRepo) noteChildLocked(id domain.ID) {
	parent, ok := r.codec.Parent(id)
	if !ok {
		return
	}
	if set, ok := r.childIDs.peek(parent); ok {
		set[id] = struct{}{}
	}
}

// flushLocked writes the pending identifiers in one transaction through a
// prepared statement. Ids that are already persisted stay in use and are
// skipped, so only row store failures are returned.
func (r *CatalogRepo) flushLocked(ctx context.Context) error {
	if len(r.pendingOrder) == 0 {
		return nil
	}
	batch := r.pendingOrder
	r.pendingOrder = nil
	r.pending = make(map[domain.ID]struct{})

	var collisions []domain.ID
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO target (id) VALUES (?)`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck

		for _, id := range batch {
			if _, err := stmt.ExecContext(ctx, int64(id)); err != nil {
				if isUniqueViolation(err) {
					collisions = append(collisions, id)
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Keep the batch so the ids still count as in use.
		r.pendingOrder = batch
		for _, id := range batch {
			r.pending[id] = struct{}{}
		}
		return domain.ErrStore("register identifiers", err)
	}

	if len(collisions) > 0 {
		r.logger.Warn("skipped identifiers that were already registered", "ids", collisions)
	}
	r.logger.Debug("flushed registered identifiers", "count", len(batch)-len(collisions))
	return nil
}
