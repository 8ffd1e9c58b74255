package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/core"
)

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction, ruleID *int64) (core.Transaction, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (owner_id, date, amount_cents, direction, category_id, account_id, rule_id, note, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, formatDate(t.Date), t.Amount.Cents, string(t.Direction),
		nullInt(t.CategoryID), nullInt(t.AccountID), nullInt(ruleID),
		t.Note, string(t.Source), formatTime(time.Now()),
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	return t, nil
}

func (q *Queries) GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, owner_id, date, amount_cents, direction, category_id, account_id, note, source
		FROM transactions WHERE id = ? AND owner_id = ? AND deleted = 0`, id, ownerID)
	return scanTransaction(row)
}

func (q *Queries) ListTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner_id, date, amount_cents, direction, category_id, account_id, note, source
		FROM transactions WHERE owner_id = ? AND deleted = 0
		ORDER BY date DESC, id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransactionFields rewrites the mutable fields of a transaction row.
// Balance effects are the ledger's concern, not this query's.
func (q *Queries) UpdateTransactionFields(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET date = ?, amount_cents = ?, direction = ?, category_id = ?, account_id = ?, note = ?
		WHERE id = ? AND owner_id = ? AND deleted = 0`,
		formatDate(t.Date), t.Amount.Cents, string(t.Direction),
		nullInt(t.CategoryID), nullInt(t.AccountID), t.Note, t.ID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", t.ID, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) SoftDeleteTransaction(ctx context.Context, ownerID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET deleted = 1 WHERE id = ? AND owner_id = ? AND deleted = 0`,
		id, ownerID)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// SumExpensesByCategory totals non-deleted expense transactions for one
// category inside [from, to], both inclusive. Used by budget checks.
func (q *Queries) SumExpensesByCategory(ctx context.Context, ownerID, categoryID int64, from, to time.Time) (int64, error) {
	var total sql.NullInt64
	err := q.db.QueryRowContext(ctx, `
		SELECT SUM(amount_cents) FROM transactions
		WHERE owner_id = ? AND category_id = ? AND direction = 'expense'
		  AND deleted = 0 AND date >= ? AND date <= ?`,
		ownerID, categoryID, formatDate(from), formatDate(to)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum expenses by category: %w", err)
	}
	return total.Int64, nil
}

// SumSignedEffects totals the signed balance effects of all non-deleted
// transactions linked to an account. Used to verify the balance invariant.
func (q *Queries) SumSignedEffects(ctx context.Context, ownerID, accountID int64) (int64, error) {
	var total sql.NullInt64
	err := q.db.QueryRowContext(ctx, `
		SELECT SUM(CASE direction WHEN 'expense' THEN -amount_cents ELSE amount_cents END)
		FROM transactions
		WHERE owner_id = ? AND account_id = ? AND deleted = 0`,
		ownerID, accountID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum signed effects: %w", err)
	}
	return total.Int64, nil
}

func (q *Queries) CountTransactions(ctx context.Context, ownerID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE owner_id = ? AND deleted = 0`,
		ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// CountDistinctActivityDays counts distinct calendar days with at least one
// non-deleted transaction. Feeds the days_streak achievement counter.
func (q *Queries) CountDistinctActivityDays(ctx context.Context, ownerID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT date) FROM transactions WHERE owner_id = ? AND deleted = 0`,
		ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activity days: %w", err)
	}
	return n, nil
}

// CountRuleTransactionsOnDate reports how many materialized rows exist for a
// (rule, occurrence date) pair. The scheduler never consults it; tests use it
// to assert the no-double-materialization property.
func (q *Queries) CountRuleTransactionsOnDate(ctx context.Context, ruleID int64, date time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE rule_id = ? AND date = ? AND deleted = 0`,
		ruleID, formatDate(date)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rule transactions: %w", err)
	}
	return n, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var date, direction, source string
	var categoryID, accountID sql.NullInt64
	err := row.Scan(&t.ID, &t.OwnerID, &date, &t.Amount.Cents, &direction, &categoryID, &accountID, &t.Note, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Date, err = parseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Direction = core.Direction(direction)
	t.Source = core.TransactionSource(source)
	t.CategoryID = int64Ptr(categoryID)
	t.AccountID = int64Ptr(accountID)
	return t, nil
}
