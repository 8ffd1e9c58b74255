package storage

import (
	"context"
	"database/sql"
	"fmt"

	"kopilka/internal/core"
)

func (q *Queries) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO goals (owner_id, name, target_cents, current_cents, target_date, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.OwnerID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents,
		nullDate(g.TargetDate), boolInt(g.Active))
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	g.ID, err = res.LastInsertId()
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal id: %w", err)
	}
	return g, nil
}

func (q *Queries) ListActiveGoals(ctx context.Context, ownerID int64) ([]core.Goal, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner_id, name, target_cents, current_cents, target_date, active
		FROM goals WHERE owner_id = ? AND active = 1 ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var g core.Goal
		var targetDate sql.NullString
		var active int64
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents, &targetDate, &active); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Active = active != 0
		if g.TargetDate, err = datePtr(targetDate); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AddToGoalProgress bumps a goal's accumulated amount.
func (q *Queries) AddToGoalProgress(ctx context.Context, ownerID, id, deltaCents int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE goals SET current_cents = current_cents + ?
		WHERE id = ? AND owner_id = ?`, deltaCents, id, ownerID)
	if err != nil {
		return fmt.Errorf("add goal progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add goal progress: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("goal %d: %w", id, core.ErrNotFound)
	}
	return nil
}
