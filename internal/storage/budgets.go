package storage

import (
	"context"
	"fmt"
	"time"

	"kopilka/internal/core"
)

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO budgets (owner_id, category_id, amount_cents, period_start, period_end, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.OwnerID, b.CategoryID, b.Amount.Cents,
		formatDate(b.PeriodStart), formatDate(b.PeriodEnd), boolInt(b.Active))
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget id: %w", err)
	}
	return b, nil
}

// ListCurrentBudgets returns active budgets whose period includes now.
func (q *Queries) ListCurrentBudgets(ctx context.Context, ownerID int64, now time.Time) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner_id, category_id, amount_cents, period_start, period_end, active
		FROM budgets
		WHERE owner_id = ? AND active = 1 AND period_start <= ? AND period_end >= ?
		ORDER BY id`,
		ownerID, formatDate(now), formatDate(now))
	if err != nil {
		return nil, fmt.Errorf("list current budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		var start, end string
		var active int64
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Amount.Cents, &start, &end, &active); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Active = active != 0
		if b.PeriodStart, err = parseDate(start); err != nil {
			return nil, err
		}
		if b.PeriodEnd, err = parseDate(end); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
