package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/core"
)

func (q *Queries) CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO debts (owner_id, name, amount_cents, paid_cents, account_id, payment_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.OwnerID, d.Name, d.Amount.Cents, d.Paid.Cents,
		nullInt(d.AccountID), nullDate(d.PaymentDate), boolInt(d.Active))
	if err != nil {
		return core.Debt{}, fmt.Errorf("insert debt: %w", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return core.Debt{}, fmt.Errorf("debt id: %w", err)
	}
	return d, nil
}

func (q *Queries) GetDebt(ctx context.Context, ownerID, id int64) (core.Debt, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, amount_cents, paid_cents, account_id, payment_date, active
		FROM debts WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanDebt(row)
}

// ListDebtsDueWithin returns active debts whose payment date falls inside
// [from, to], both inclusive. Feeds the debt_due_soon notification check.
func (q *Queries) ListDebtsDueWithin(ctx context.Context, ownerID int64, from, to time.Time) ([]core.Debt, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner_id, name, amount_cents, paid_cents, account_id, payment_date, active
		FROM debts
		WHERE owner_id = ? AND active = 1 AND payment_date IS NOT NULL
		  AND payment_date >= ? AND payment_date <= ?
		ORDER BY payment_date`,
		ownerID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("list due debts: %w", err)
	}
	defer rows.Close()

	var out []core.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDebtPayment persists a registered payment: the paid amount and,
// when the payment landed on the due date, the rolled-forward payment date.
func (q *Queries) UpdateDebtPayment(ctx context.Context, ownerID, id, paidCents int64, paymentDate *time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE debts SET paid_cents = ?, payment_date = ?
		WHERE id = ? AND owner_id = ?`,
		paidCents, nullDate(paymentDate), id, ownerID)
	if err != nil {
		return fmt.Errorf("update debt payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update debt payment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("debt %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func scanDebt(row rowScanner) (core.Debt, error) {
	var d core.Debt
	var accountID sql.NullInt64
	var paymentDate sql.NullString
	var active int64
	err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Amount.Cents, &d.Paid.Cents, &accountID, &paymentDate, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Debt{}, core.ErrNotFound
	}
	if err != nil {
		return core.Debt{}, fmt.Errorf("scan debt: %w", err)
	}
	d.AccountID = int64Ptr(accountID)
	d.Active = active != 0
	if d.PaymentDate, err = datePtr(paymentDate); err != nil {
		return core.Debt{}, err
	}
	return d, nil
}
