package services

import (
	"context"
	"strconv"
	"testing"

	"kopilka/internal/clock"
	"kopilka/internal/core"
	"kopilka/internal/storage"
)

func newTestNotifier(t *testing.T, repo *storage.Repository, clk clock.Clock) *Notifier {
	t.Helper()
	return NewNotifier(repo, clk, DefaultNotifierConfig(), nil)
}

func groceriesID(t *testing.T, repo *storage.Repository) int64 {
	t.Helper()
	id, err := repo.Queries().FindCategoryID(context.Background(), testOwner, "Groceries")
	if err != nil {
		t.Fatalf("FindCategoryID() error = %v", err)
	}
	return id
}

func seedBudget(t *testing.T, repo *storage.Repository, categoryID, amountCents int64) core.Budget {
	t.Helper()
	budget, err := repo.Queries().CreateBudget(context.Background(), core.Budget{
		OwnerID:     testOwner,
		CategoryID:  categoryID,
		Amount:      core.Money{Cents: amountCents},
		PeriodStart: mustTime(t, "2024-06-01"),
		PeriodEnd:   mustTime(t, "2024-06-30"),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	return budget
}

func spend(t *testing.T, repo *storage.Repository, categoryID, cents int64, date string) {
	t.Helper()
	day := mustTime(t, date)
	_, err := repo.Queries().InsertTransaction(context.Background(), core.Transaction{
		OwnerID:    testOwner,
		Date:       day,
		Amount:     core.Money{Cents: cents},
		Direction:  core.Expense,
		CategoryID: &categoryID,
		Source:     core.SourceManual,
	}, nil)
	if err != nil {
		t.Fatalf("InsertTransaction() error = %v", err)
	}
}

func TestNotifier_BudgetOverrunDeduped(t *testing.T) {
	repo := newTestRepo(t)
	clk := clock.NewFixed(mustTime(t, "2024-06-15"))
	notifier := newTestNotifier(t, repo, clk)

	category := groceriesID(t, repo)
	budget := seedBudget(t, repo, category, 10000)
	spend(t, repo, category, 12000, "2024-06-10")

	inserted, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(inserted) != 1 {
		t.Fatalf("Evaluate() inserted %d notifications, want 1", len(inserted))
	}
	n := inserted[0]
	if n.MessageKey != "budget.overrun" {
		t.Errorf("message key = %q, want budget.overrun", n.MessageKey)
	}
	if want := "budget_overrun:" + strconv.FormatInt(budget.ID, 10); n.DedupKey != want {
		t.Errorf("dedup key = %q, want %q", n.DedupKey, want)
	}
	if n.Params["spent_cents"] != "12000" {
		t.Errorf("spent_cents param = %q, want 12000", n.Params["spent_cents"])
	}

	// The condition still holds; re-evaluating must not duplicate.
	again, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("second Evaluate() error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second Evaluate() inserted %d notifications, want 0", len(again))
	}
}

func TestNotifier_MarkReadReArmsDedupKey(t *testing.T) {
	repo := newTestRepo(t)
	clk := clock.NewFixed(mustTime(t, "2024-06-15"))
	notifier := newTestNotifier(t, repo, clk)

	category := groceriesID(t, repo)
	seedBudget(t, repo, category, 5000)
	spend(t, repo, category, 6000, "2024-06-05")

	first, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil || len(first) != 1 {
		t.Fatalf("Evaluate() = %d notifications, err %v; want 1, nil", len(first), err)
	}

	if err := repo.Queries().MarkNotificationRead(context.Background(), testOwner, first[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}

	second, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Evaluate() after mark-read error = %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("Evaluate() after mark-read inserted %d, want 1 (key re-armed)", len(second))
	}
	if second[0].DedupKey != first[0].DedupKey {
		t.Errorf("re-armed dedup key = %q, want %q", second[0].DedupKey, first[0].DedupKey)
	}
}

func TestNotifier_BudgetApproachingThreshold(t *testing.T) {
	repo := newTestRepo(t)
	clk := clock.NewFixed(mustTime(t, "2024-06-15"))
	notifier := newTestNotifier(t, repo, clk)

	category := groceriesID(t, repo)
	seedBudget(t, repo, category, 10000)
	spend(t, repo, category, 9000, "2024-06-10") // exactly 90%

	inserted, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(inserted) != 1 || inserted[0].MessageKey != "budget.approaching" {
		t.Fatalf("Evaluate() = %+v, want one budget.approaching", inserted)
	}
}

func TestNotifier_GoalCompleted(t *testing.T) {
	repo := newTestRepo(t)
	clk := clock.NewFixed(mustTime(t, "2024-06-15"))
	notifier := newTestNotifier(t, repo, clk)

	_, err := repo.Queries().CreateGoal(context.Background(), core.Goal{
		OwnerID:       testOwner,
		Name:          "Vacation",
		TargetAmount:  core.Money{Cents: 100000},
		CurrentAmount: core.Money{Cents: 100000},
		Active:        true,
	})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	inserted, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(inserted) != 1 || inserted[0].MessageKey != "goal.completed" {
		t.Fatalf("Evaluate() = %+v, want one goal.completed", inserted)
	}
}

func TestNotifier_GoalAtRiskInsideWindow(t *testing.T) {
	repo := newTestRepo(t)
	clk := clock.NewFixed(mustTime(t, "2024-06-15"))
	notifier := newTestNotifier(t, repo, clk)

	// 7 days left of a 14-day window: half the target is expected, and the
	// goal sits well below that.
	target := mustTime(t, "2024-06-22")
	_, err := repo.Queries().CreateGoal(context.Background(), core.Goal{
		OwnerID:       testOwner,
		Name:          "New laptop",
		TargetAmount:  core.Money{Cents: 100000},
		CurrentAmount: core.Money{Cents: 10000},
		TargetDate:    &target,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	inserted, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(inserted) != 1 || inserted[0].MessageKey != "goal.at_risk" {
		t.Fatalf("Evaluate() = %+v, want one goal.at_risk", inserted)
	}
	if inserted[0].Params["days_left"] != "7" {
		t.Errorf("days_left param = %q, want 7", inserted[0].Params["days_left"])
	}
}

func TestNotifier_GoalOutsideWindowIsQuiet(t *testing.T) {
	repo := newTestRepo(t)
	clk := clock.NewFixed(mustTime(t, "2024-06-15"))
	notifier := newTestNotifier(t, repo, clk)

	target := mustTime(t, "2024-12-31")
	_, err := repo.Queries().CreateGoal(context.Background(), core.Goal{
		OwnerID:       testOwner,
		Name:          "Far away",
		TargetAmount:  core.Money{Cents: 100000},
		CurrentAmount: core.Money{Cents: 0},
		TargetDate:    &target,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	inserted, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(inserted) != 0 {
		t.Fatalf("Evaluate() = %+v, want none for a distant goal", inserted)
	}
}

func TestNotifier_DebtDueSoon(t *testing.T) {
	repo := newTestRepo(t)
	clk := clock.NewFixed(mustTime(t, "2024-06-15"))
	notifier := newTestNotifier(t, repo, clk)

	dueSoon := mustTime(t, "2024-06-17")
	farOff := mustTime(t, "2024-07-20")
	settledDue := mustTime(t, "2024-06-16")

	for _, d := range []core.Debt{
		{OwnerID: testOwner, Name: "Car loan", Amount: core.Money{Cents: 500000}, Paid: core.Money{Cents: 100000}, PaymentDate: &dueSoon, Active: true},
		{OwnerID: testOwner, Name: "Mortgage", Amount: core.Money{Cents: 900000}, PaymentDate: &farOff, Active: true},
		{OwnerID: testOwner, Name: "Settled", Amount: core.Money{Cents: 10000}, Paid: core.Money{Cents: 10000}, PaymentDate: &settledDue, Active: true},
	} {
		if _, err := repo.Queries().CreateDebt(context.Background(), d); err != nil {
			t.Fatalf("CreateDebt() error = %v", err)
		}
	}

	inserted, err := notifier.Evaluate(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(inserted) != 1 {
		t.Fatalf("Evaluate() inserted %d notifications, want 1", len(inserted))
	}
	n := inserted[0]
	if n.MessageKey != "debt.due_soon" {
		t.Errorf("message key = %q, want debt.due_soon", n.MessageKey)
	}
	if n.Params["remaining_cents"] != "400000" {
		t.Errorf("remaining_cents = %q, want 400000", n.Params["remaining_cents"])
	}
	if n.Params["payment_date"] != "2024-06-17" {
		t.Errorf("payment_date = %q, want 2024-06-17", n.Params["payment_date"])
	}
}
