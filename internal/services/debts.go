package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/storage"
)

// debtRepaymentCategory is a seeded system category linked to payment
// transactions when present.
const debtRepaymentCategory = "Debt repayment"

// DebtService registers debt payments. A payment mutates the debt's paid
// amount, optionally records an expense transaction through the ledger's
// balance path, and rolls the payment date one month forward when the
// payment lands on the due date.
type DebtService struct {
	storage *storage.Repository
}

func NewDebtService(storage *storage.Repository) *DebtService {
	return &DebtService{storage: storage}
}

func (s *DebtService) RegisterPayment(ctx context.Context, ownerID, debtID, amountCents int64, paidOn time.Time, withTransaction bool) (core.Debt, error) {
	if amountCents <= 0 {
		return core.Debt{}, core.ErrInvalidAmount
	}
	paidOn = core.Day(paidOn)

	var updated core.Debt
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		d, err := q.GetDebt(ctx, ownerID, debtID)
		if err != nil {
			return err
		}

		paid := d.Paid.Cents + amountCents
		if paid > d.Amount.Cents {
			paid = d.Amount.Cents
		}

		if withTransaction {
			t := core.Transaction{
				OwnerID:   ownerID,
				Date:      paidOn,
				Amount:    core.Money{Cents: amountCents},
				Direction: core.Expense,
				AccountID: d.AccountID,
				Note:      fmt.Sprintf("Payment for %s", d.Name),
				Source:    core.SourcePayment,
			}
			if categoryID, err := q.FindCategoryID(ctx, ownerID, debtRepaymentCategory); err == nil {
				t.CategoryID = &categoryID
			}
			created, err := q.InsertTransaction(ctx, t, nil)
			if err != nil {
				return err
			}
			if err := applyEffect(ctx, q, created, +1); err != nil {
				return err
			}
		}

		paymentDate := d.PaymentDate
		if d.PaymentDate != nil && core.Day(*d.PaymentDate).Equal(paidOn) {
			next := MonthlyAdvancer{}.Next(*d.PaymentDate, *d.PaymentDate)
			paymentDate = &next
		}

		if err := q.UpdateDebtPayment(ctx, ownerID, debtID, paid, paymentDate); err != nil {
			return err
		}

		updated = d
		updated.Paid = core.Money{Cents: paid}
		updated.PaymentDate = paymentDate
		return nil
	})
	if err != nil {
		return core.Debt{}, fmt.Errorf("register payment on debt %d: %w", debtID, err)
	}

	slog.InfoContext(ctx, "Debt payment registered",
		"debt_id", debtID,
		"owner_id", ownerID,
		"amount_cents", amountCents,
		"with_transaction", withTransaction)
	return updated, nil
}
