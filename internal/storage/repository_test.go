package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kopilka/internal/core"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return parsed
}

func TestNewRepository_RunsMigrations(t *testing.T) {
	repo := newTestRepository(t)

	// Seeded system categories are visible to any owner.
	id, err := repo.Queries().FindCategoryID(context.Background(), 1, "Groceries")
	if err != nil {
		t.Fatalf("FindCategoryID() error = %v", err)
	}
	if id == 0 {
		t.Error("seeded category has zero id")
	}

	// Reopening an already-migrated database must not fail.
	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := NewRepository(path)
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	first.Close()
	second, err := NewRepository(path)
	if err != nil {
		t.Fatalf("NewRepository() on migrated db error = %v", err)
	}
	second.Close()
}

func TestAdvanceRule_StaleCAS(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rule, err := repo.Queries().CreateRule(ctx, core.RecurringRule{
		OwnerID:     1,
		Description: "Rent",
		Amount:      core.Money{Cents: 100000},
		Direction:   core.Expense,
		Frequency:   core.Monthly,
		StartDate:   day(t, "2024-01-01"),
		NextDueDate: day(t, "2024-01-01"),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	// First advance wins.
	if err := repo.Queries().AdvanceRule(ctx, rule.ID, day(t, "2024-01-01"), day(t, "2024-02-01"), true); err != nil {
		t.Fatalf("AdvanceRule() error = %v", err)
	}

	// A second advance from the same observed pointer is stale.
	err = repo.Queries().AdvanceRule(ctx, rule.ID, day(t, "2024-01-01"), day(t, "2024-02-01"), true)
	if !errors.Is(err, ErrStaleRule) {
		t.Errorf("stale AdvanceRule() error = %v, want ErrStaleRule", err)
	}

	// Advancing a deactivated rule is stale too.
	if err := repo.Queries().DeactivateRule(ctx, rule.ID); err != nil {
		t.Fatalf("DeactivateRule() error = %v", err)
	}
	err = repo.Queries().AdvanceRule(ctx, rule.ID, day(t, "2024-02-01"), day(t, "2024-03-01"), true)
	if !errors.Is(err, ErrStaleRule) {
		t.Errorf("AdvanceRule() on inactive rule error = %v, want ErrStaleRule", err)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	account, err := repo.Queries().CreateAccount(ctx, core.Account{
		OwnerID: 1, Name: "Checking", Currency: "RUB", Active: true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	boom := errors.New("boom")
	err = repo.InTx(ctx, func(q *Queries) error {
		if err := q.ApplyToBalance(ctx, 1, account.ID, 5000); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	got, err := repo.Queries().GetAccount(ctx, 1, account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got.Balance.Cents != 0 {
		t.Errorf("balance = %d after rollback, want 0", got.Balance.Cents)
	}
}

func TestNotifications_UnreadDedupIndex(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	insert := func() error {
		_, err := repo.Queries().InsertNotification(ctx, core.Notification{
			OwnerID:    1,
			Kind:       "budget",
			DedupKey:   "budget_overrun:7",
			MessageKey: "budget.overrun",
			Params:     map[string]string{"budget_id": "7"},
			CreatedAt:  time.Now().UTC(),
		})
		return err
	}

	if err := insert(); err != nil {
		t.Fatalf("first InsertNotification() error = %v", err)
	}
	// The schema itself blocks a second unread row with the same key.
	if err := insert(); err == nil {
		t.Fatal("duplicate unread insert succeeded, want unique constraint error")
	}

	notifications, err := repo.Queries().ListNotifications(ctx, 1, true, 10)
	if err != nil || len(notifications) != 1 {
		t.Fatalf("ListNotifications() = %d, err %v; want 1, nil", len(notifications), err)
	}
	if err := repo.Queries().MarkNotificationRead(ctx, 1, notifications[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}

	// With the unread row gone, the key is free again.
	if err := insert(); err != nil {
		t.Errorf("insert after mark-read error = %v, want nil", err)
	}
}

func TestMarkNotificationRead_WrongOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Queries().InsertNotification(ctx, core.Notification{
		OwnerID:    1,
		Kind:       "debt",
		DedupKey:   "debt_due_soon:3",
		MessageKey: "debt.due_soon",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertNotification() error = %v", err)
	}

	if err := repo.Queries().MarkNotificationRead(ctx, 2, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("MarkNotificationRead() as wrong owner = %v, want ErrNotFound", err)
	}
}

func TestTransactions_DateRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	want := day(t, "2024-02-29")
	created, err := repo.Queries().InsertTransaction(ctx, core.Transaction{
		OwnerID:   1,
		Date:      want,
		Amount:    core.Money{Cents: 1500},
		Direction: core.Expense,
		Source:    core.SourceManual,
	}, nil)
	if err != nil {
		t.Fatalf("InsertTransaction() error = %v", err)
	}

	got, err := repo.Queries().GetTransaction(ctx, 1, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if !got.Date.Equal(want) {
		t.Errorf("date round-trip = %v, want %v", got.Date, want)
	}
}

func TestListDueRules_FiltersAndOrders(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	mk := func(owner int64, due string, active bool) {
		t.Helper()
		_, err := repo.Queries().CreateRule(ctx, core.RecurringRule{
			OwnerID:     owner,
			Description: "r",
			Amount:      core.Money{Cents: 100},
			Direction:   core.Expense,
			Frequency:   core.Daily,
			StartDate:   day(t, "2024-01-01"),
			NextDueDate: day(t, due),
			Active:      active,
		})
		if err != nil {
			t.Fatalf("CreateRule() error = %v", err)
		}
	}

	mk(1, "2024-06-01", true)  // due
	mk(1, "2024-06-15", true)  // due today
	mk(1, "2024-07-01", true)  // future
	mk(1, "2024-06-01", false) // inactive
	mk(2, "2024-06-01", true)  // other owner

	all, err := repo.Queries().ListDueRules(ctx, day(t, "2024-06-15"), nil)
	if err != nil {
		t.Fatalf("ListDueRules() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListDueRules(nil owner) = %d rules, want 3", len(all))
	}

	owner := int64(1)
	scoped, err := repo.Queries().ListDueRules(ctx, day(t, "2024-06-15"), &owner)
	if err != nil {
		t.Fatalf("ListDueRules() error = %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("ListDueRules(owner 1) = %d rules, want 2", len(scoped))
	}
	for _, r := range scoped {
		if r.OwnerID != owner {
			t.Errorf("scoped list leaked rule of owner %d", r.OwnerID)
		}
	}
}
