package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/storage"
)

const testOwner int64 = 1

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *storage.Repository, balanceCents int64) core.Account {
	t.Helper()
	account, err := repo.Queries().CreateAccount(context.Background(), core.Account{
		OwnerID:  testOwner,
		Name:     "Checking",
		Balance:  core.Money{Cents: balanceCents},
		Currency: "RUB",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return account
}

func seedRule(t *testing.T, repo *storage.Repository, rule core.RecurringRule) core.RecurringRule {
	t.Helper()
	if rule.OwnerID == 0 {
		rule.OwnerID = testOwner
	}
	created, err := repo.Queries().CreateRule(context.Background(), rule)
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	return created
}

func accountBalance(t *testing.T, repo *storage.Repository, id int64) int64 {
	t.Helper()
	account, err := repo.Queries().GetAccount(context.Background(), testOwner, id)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	return account.Balance.Cents
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return parsed
}
