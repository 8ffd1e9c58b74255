package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kopilka/internal/core"
)

// FindCategoryID resolves a category by name for an owner, falling back to
// the shared system defaults (owner_id NULL). Returns core.ErrNotFound via
// sql.ErrNoRows mapping when neither exists.
func (q *Queries) FindCategoryID(ctx context.Context, ownerID int64, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		SELECT id FROM categories
		WHERE name = ? AND (owner_id = ? OR owner_id IS NULL)
		ORDER BY owner_id IS NULL LIMIT 1`,
		name, ownerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("find category: %w", err)
	}
	return id, nil
}
