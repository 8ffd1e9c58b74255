package services

import (
	"context"
	"fmt"
	"log/slog"

	"kopilka/internal/core"
	"kopilka/internal/storage"
)

// Ledger is the single code path through which a transaction's financial
// effect is applied to or removed from an account. Edit and delete reverse
// the old effect and apply the new one here, so balances never drift.
type Ledger struct {
	storage *storage.Repository
}

func NewLedger(storage *storage.Repository) *Ledger {
	return &Ledger{storage: storage}
}

// applyEffect mutates the linked account's balance for transaction t,
// multiplied by sign (+1 apply, -1 reverse). No-op for unlinked transactions.
// Runs inside the caller's transaction scope.
func applyEffect(ctx context.Context, q *storage.Queries, t core.Transaction, sign int64) error {
	if t.AccountID == nil {
		return nil
	}
	delta := sign * core.Signed(t.Amount, t.Direction)
	if err := q.ApplyToBalance(ctx, t.OwnerID, *t.AccountID, delta); err != nil {
		return fmt.Errorf("apply effect of transaction %d: %w", t.ID, err)
	}
	return nil
}

// CreateTransaction persists a transaction and applies its balance effect as
// one atomic unit: exactly one balance mutation and one row, or neither.
func (l *Ledger) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	var created core.Transaction
	err := l.storage.InTx(ctx, func(q *storage.Queries) error {
		var err error
		created, err = q.InsertTransaction(ctx, t, nil)
		if err != nil {
			return err
		}
		return applyEffect(ctx, q, created, +1)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", created.ID,
		"owner_id", created.OwnerID,
		"amount_cents", created.Amount.Cents,
		"direction", created.Direction,
		"source", created.Source)
	return created, nil
}

// ReverseTransaction soft-deletes a transaction and undoes its balance
// effect in the same storage transaction.
func (l *Ledger) ReverseTransaction(ctx context.Context, ownerID, id int64) error {
	err := l.storage.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := q.SoftDeleteTransaction(ctx, ownerID, id); err != nil {
			return err
		}
		return applyEffect(ctx, q, t, -1)
	})
	if err != nil {
		return fmt.Errorf("reverse transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction reversed", "id", id, "owner_id", ownerID)
	return nil
}

// UpdateTransaction rewrites a transaction's fields, reversing the old
// balance effect and applying the new one within one storage transaction.
func (l *Ledger) UpdateTransaction(ctx context.Context, updated core.Transaction) error {
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	err := l.storage.InTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, updated.OwnerID, updated.ID)
		if err != nil {
			return err
		}
		if err := applyEffect(ctx, q, old, -1); err != nil {
			return err
		}
		if err := q.UpdateTransactionFields(ctx, updated); err != nil {
			return err
		}
		return applyEffect(ctx, q, updated, +1)
	})
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", updated.ID, err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", updated.ID, "owner_id", updated.OwnerID)
	return nil
}
