package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/core"
)

// ErrStaleRule is returned by AdvanceRule when the rule's due-date pointer no
// longer matches the value the caller read. Another tick already advanced it;
// the caller's work for that rule must be discarded.
var ErrStaleRule = errors.New("rule pointer already advanced")

func (q *Queries) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_rules
			(owner_id, description, amount_cents, direction, frequency, category_id, account_id, note, start_date, end_date, next_due_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OwnerID, r.Description, r.Amount.Cents, string(r.Direction), string(r.Frequency),
		nullInt(r.CategoryID), nullInt(r.AccountID), r.Note,
		formatDate(r.StartDate), nullDate(r.EndDate), formatDate(r.NextDueDate), boolInt(r.Active),
	)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("rule id: %w", err)
	}
	return r, nil
}

const ruleColumns = `id, owner_id, description, amount_cents, direction, frequency,
	category_id, account_id, note, start_date, end_date, next_due_date, active`

func (q *Queries) GetRule(ctx context.Context, ownerID, id int64) (core.RecurringRule, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	return scanRule(row)
}

func (q *Queries) ListRules(ctx context.Context, ownerID int64) ([]core.RecurringRule, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE owner_id = ? ORDER BY id DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return collectRules(rows)
}

// ListDueRules returns active rules whose next_due_date is not after asOf,
// optionally scoped to one owner. The global sweep runs on every worker tick,
// so rules already advanced past asOf cost nothing here.
func (q *Queries) ListDueRules(ctx context.Context, asOf time.Time, ownerID *int64) ([]core.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE active = 1 AND next_due_date <= ?`
	args := []any{formatDate(asOf)}
	if ownerID != nil {
		query += ` AND owner_id = ?`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	return collectRules(rows)
}

// AdvanceRule persists a rule's advanced pointer with a compare-and-swap on
// the previous next_due_date. Zero affected rows means a concurrent tick won
// the race and this tick's materializations must be rolled back.
func (q *Queries) AdvanceRule(ctx context.Context, id int64, prevNextDue, newNextDue time.Time, active bool) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_rules SET next_due_date = ?, active = ?
		WHERE id = ? AND next_due_date = ? AND active = 1`,
		formatDate(newNextDue), boolInt(active), id, formatDate(prevNextDue))
	if err != nil {
		return fmt.Errorf("advance rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance rule: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", id, ErrStaleRule)
	}
	return nil
}

// DeactivateRule turns a rule off without touching its pointer. Used when a
// rule's state cannot be materialized and must stop ticking.
func (q *Queries) DeactivateRule(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE recurring_rules SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	return nil
}

func (q *Queries) DeleteRule(ctx context.Context, ownerID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM recurring_rules WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func collectRules(rows *sql.Rows) ([]core.RecurringRule, error) {
	defer rows.Close()
	var out []core.RecurringRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRule(row rowScanner) (core.RecurringRule, error) {
	var r core.RecurringRule
	var direction, frequency, startDate, nextDue string
	var endDate sql.NullString
	var categoryID, accountID sql.NullInt64
	var active int64
	err := row.Scan(&r.ID, &r.OwnerID, &r.Description, &r.Amount.Cents, &direction, &frequency,
		&categoryID, &accountID, &r.Note, &startDate, &endDate, &nextDue, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("scan rule: %w", err)
	}
	r.Direction = core.Direction(direction)
	r.Frequency = core.Frequency(frequency)
	r.CategoryID = int64Ptr(categoryID)
	r.AccountID = int64Ptr(accountID)
	r.Active = active != 0
	if r.StartDate, err = parseDate(startDate); err != nil {
		return core.RecurringRule{}, err
	}
	if r.NextDueDate, err = parseDate(nextDue); err != nil {
		return core.RecurringRule{}, err
	}
	if r.EndDate, err = datePtr(endDate); err != nil {
		return core.RecurringRule{}, err
	}
	return r, nil
}
