package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/core"
)

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (owner_id, name, balance_cents, currency, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.OwnerID, a.Name, a.Balance.Cents, a.Currency, boolInt(a.Active), formatTime(time.Now()),
	)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return a, nil
}

func (q *Queries) GetAccount(ctx context.Context, ownerID, id int64) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, balance_cents, currency, active
		FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanAccount(row)
}

func (q *Queries) ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner_id, name, balance_cents, currency, active
		FROM accounts WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ApplyToBalance adds deltaCents to an account's balance. This is the single
// write path for balance mutation; apply and reverse both go through it.
func (q *Queries) ApplyToBalance(ctx context.Context, ownerID, accountID, deltaCents int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + ?
		WHERE id = ? AND owner_id = ?`, deltaCents, accountID, ownerID)
	if err != nil {
		return fmt.Errorf("apply to balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply to balance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) SetAccountActive(ctx context.Context, ownerID, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET active = ? WHERE id = ? AND owner_id = ?`,
		boolInt(active), id, ownerID)
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var active int64
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance.Cents, &a.Currency, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Active = active != 0
	return a, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
