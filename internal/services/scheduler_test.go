package services

import (
	"context"
	"testing"

	"kopilka/internal/core"
)

func TestScheduler_CatchUpAdvancesToFirstFutureDate(t *testing.T) {
	repo := newTestRepo(t)
	account := seedAccount(t, repo, 500000)
	accountID := account.ID

	rule := seedRule(t, repo, core.RecurringRule{
		Description: "Rent",
		Amount:      core.Money{Cents: 100000},
		Direction:   core.Expense,
		Frequency:   core.Monthly,
		AccountID:   &accountID,
		StartDate:   mustTime(t, "2024-01-01"),
		NextDueDate: mustTime(t, "2024-01-01"),
		Active:      true,
	})

	scheduler := NewScheduler(repo, nil)
	occurrences, err := scheduler.Tick(context.Background(), mustTime(t, "2024-04-01"), nil)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	// Jan 1, Feb 1, Mar 1 and Apr 1 are all due.
	if len(occurrences) != 4 {
		t.Fatalf("Tick() produced %d occurrences, want 4", len(occurrences))
	}
	if got := accountBalance(t, repo, accountID); got != 100000 {
		t.Errorf("account balance = %d, want 100000", got)
	}

	advanced, err := repo.Queries().GetRule(context.Background(), testOwner, rule.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if want := mustTime(t, "2024-05-01"); !advanced.NextDueDate.Equal(want) {
		t.Errorf("next due date = %v, want %v", advanced.NextDueDate, want)
	}
	if !advanced.Active {
		t.Error("rule deactivated, want active")
	}
}

func TestScheduler_TickIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	account := seedAccount(t, repo, 0)
	accountID := account.ID

	rule := seedRule(t, repo, core.RecurringRule{
		Description: "Salary",
		Amount:      core.Money{Cents: 250000},
		Direction:   core.Income,
		Frequency:   core.Monthly,
		AccountID:   &accountID,
		StartDate:   mustTime(t, "2024-01-05"),
		NextDueDate: mustTime(t, "2024-01-05"),
		Active:      true,
	})

	scheduler := NewScheduler(repo, nil)
	asOf := mustTime(t, "2024-02-10")

	if _, err := scheduler.Tick(context.Background(), asOf, nil); err != nil {
		t.Fatalf("first Tick() error = %v", err)
	}
	again, err := scheduler.Tick(context.Background(), asOf, nil)
	if err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second Tick() produced %d occurrences, want 0", len(again))
	}

	for _, due := range []string{"2024-01-05", "2024-02-05"} {
		count, err := repo.Queries().CountRuleTransactionsOnDate(context.Background(), rule.ID, mustTime(t, due))
		if err != nil {
			t.Fatalf("CountRuleTransactionsOnDate() error = %v", err)
		}
		if count != 1 {
			t.Errorf("%s materialized %d times, want 1", due, count)
		}
	}
	if got := accountBalance(t, repo, accountID); got != 500000 {
		t.Errorf("account balance = %d, want 500000", got)
	}
}

func TestScheduler_EndDateDeactivatesRule(t *testing.T) {
	repo := newTestRepo(t)

	end := mustTime(t, "2024-03-15")
	rule := seedRule(t, repo, core.RecurringRule{
		Description: "Gym trial",
		Amount:      core.Money{Cents: 3000},
		Direction:   core.Expense,
		Frequency:   core.Monthly,
		StartDate:   mustTime(t, "2024-01-15"),
		NextDueDate: mustTime(t, "2024-01-15"),
		EndDate:     &end,
		Active:      true,
	})

	scheduler := NewScheduler(repo, nil)
	occurrences, err := scheduler.Tick(context.Background(), mustTime(t, "2024-06-01"), nil)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	// Jan 15, Feb 15, Mar 15; Apr 15 is past the end date.
	if len(occurrences) != 3 {
		t.Fatalf("Tick() produced %d occurrences, want 3", len(occurrences))
	}

	got, err := repo.Queries().GetRule(context.Background(), testOwner, rule.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if got.Active {
		t.Error("rule still active after exhausting its end date")
	}
}

func TestScheduler_MalformedRuleIsDeactivatedNotMaterialized(t *testing.T) {
	repo := newTestRepo(t)

	// An unknown frequency cannot pass CreateRule validation at the API
	// boundary, but the scheduler must still defend against bad rows.
	rule := seedRule(t, repo, core.RecurringRule{
		Description: "Corrupted",
		Amount:      core.Money{Cents: 1000},
		Direction:   core.Expense,
		Frequency:   "fortnightly",
		StartDate:   mustTime(t, "2024-01-01"),
		NextDueDate: mustTime(t, "2024-01-01"),
		Active:      true,
	})

	scheduler := NewScheduler(repo, nil)
	occurrences, err := scheduler.Tick(context.Background(), mustTime(t, "2024-02-01"), nil)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(occurrences) != 0 {
		t.Fatalf("Tick() materialized %d occurrences from malformed rule, want 0", len(occurrences))
	}

	got, err := repo.Queries().GetRule(context.Background(), testOwner, rule.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if got.Active {
		t.Error("malformed rule still active")
	}

	count, err := repo.Queries().CountTransactions(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("CountTransactions() error = %v", err)
	}
	if count != 0 {
		t.Errorf("malformed rule produced %d transactions, want 0", count)
	}
}

func TestScheduler_CatchUpCap(t *testing.T) {
	repo := newTestRepo(t)

	rule := seedRule(t, repo, core.RecurringRule{
		Description: "Coffee",
		Amount:      core.Money{Cents: 300},
		Direction:   core.Expense,
		Frequency:   core.Daily,
		StartDate:   mustTime(t, "2020-01-01"),
		NextDueDate: mustTime(t, "2020-01-01"),
		Active:      true,
	})

	scheduler := NewScheduler(repo, nil)
	occurrences, err := scheduler.Tick(context.Background(), mustTime(t, "2024-01-01"), nil)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(occurrences) != MaxCatchUpPerRule {
		t.Fatalf("Tick() produced %d occurrences, want cap %d", len(occurrences), MaxCatchUpPerRule)
	}

	got, err := repo.Queries().GetRule(context.Background(), testOwner, rule.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	want := mustTime(t, "2020-01-01").AddDate(0, 0, MaxCatchUpPerRule)
	if !got.NextDueDate.Equal(want) {
		t.Errorf("next due date = %v, want %v", got.NextDueDate, want)
	}

	// The next tick picks up where the cap left off.
	more, err := scheduler.Tick(context.Background(), mustTime(t, "2024-01-01"), nil)
	if err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	if len(more) == 0 {
		t.Error("second Tick() produced no occurrences, want remainder of backfill")
	}
}

func TestScheduler_OwnerScopedTick(t *testing.T) {
	repo := newTestRepo(t)

	seedRule(t, repo, core.RecurringRule{
		OwnerID:     1,
		Description: "Owner one",
		Amount:      core.Money{Cents: 100},
		Direction:   core.Expense,
		Frequency:   core.Daily,
		StartDate:   mustTime(t, "2024-01-01"),
		NextDueDate: mustTime(t, "2024-01-01"),
		Active:      true,
	})
	seedRule(t, repo, core.RecurringRule{
		OwnerID:     2,
		Description: "Owner two",
		Amount:      core.Money{Cents: 100},
		Direction:   core.Expense,
		Frequency:   core.Daily,
		StartDate:   mustTime(t, "2024-01-01"),
		NextDueDate: mustTime(t, "2024-01-01"),
		Active:      true,
	})

	scheduler := NewScheduler(repo, nil)
	owner := int64(1)
	occurrences, err := scheduler.Tick(context.Background(), mustTime(t, "2024-01-01"), &owner)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(occurrences) != 1 {
		t.Fatalf("owner-scoped Tick() produced %d occurrences, want 1", len(occurrences))
	}
	if occurrences[0].OwnerID != owner {
		t.Errorf("occurrence owner = %d, want %d", occurrences[0].OwnerID, owner)
	}
}

type recordingPublisher struct {
	occurrences []core.Occurrence
}

func (p *recordingPublisher) PublishOccurrence(_ context.Context, o core.Occurrence) error {
	p.occurrences = append(p.occurrences, o)
	return nil
}

func TestScheduler_PublishesAfterCommit(t *testing.T) {
	repo := newTestRepo(t)
	pub := &recordingPublisher{}

	seedRule(t, repo, core.RecurringRule{
		Description: "Netflix",
		Amount:      core.Money{Cents: 1500},
		Direction:   core.Expense,
		Frequency:   core.Monthly,
		StartDate:   mustTime(t, "2024-01-10"),
		NextDueDate: mustTime(t, "2024-01-10"),
		Active:      true,
	})

	scheduler := NewScheduler(repo, pub)
	if _, err := scheduler.Tick(context.Background(), mustTime(t, "2024-02-15"), nil); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(pub.occurrences) != 2 {
		t.Fatalf("published %d occurrences, want 2", len(pub.occurrences))
	}
	if pub.occurrences[0].TransactionID == 0 {
		t.Error("published occurrence missing transaction id")
	}
}
