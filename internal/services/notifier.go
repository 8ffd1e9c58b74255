package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"kopilka/internal/clock"
	"kopilka/internal/core"
	"kopilka/internal/storage"
)

// Dedup key prefixes. One unread notification per key at a time; marking it
// read re-arms the key for the next evaluation.
const (
	dedupBudgetOverrun = "budget_overrun:"
	dedupBudgetWarning = "budget_warning:"
	dedupGoalCompleted = "goal_completed:"
	dedupGoalAtRisk    = "goal_at_risk:"
	dedupDebtDueSoon   = "debt_due_soon:"
)

// budgetWarningThreshold flags a budget as "approaching" at 90% spend.
const budgetWarningThreshold = 0.9

// NotificationPublisher receives inserted notifications after they commit.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n core.Notification) error
}

// NotifierConfig holds the lookahead windows for time-based checks.
type NotifierConfig struct {
	DebtLookaheadDays     int
	GoalRiskLookaheadDays int
}

func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		DebtLookaheadDays:     3,
		GoalRiskLookaheadDays: 14,
	}
}

// Notifier runs a fixed, ordered battery of financial-state checks and
// upserts notification records deduplicated by rule identity.
type Notifier struct {
	storage *storage.Repository
	clock   clock.Clock
	config  NotifierConfig
	events  NotificationPublisher
}

// NewNotifier creates a notifier. events may be nil.
func NewNotifier(storage *storage.Repository, clk clock.Clock, config NotifierConfig, events NotificationPublisher) *Notifier {
	return &Notifier{storage: storage, clock: clk, config: config, events: events}
}

// candidate is one rule check's output before the dedup upsert.
type candidate struct {
	kind       string
	dedupKey   string
	messageKey string
	params     map[string]string
}

// Evaluate runs every check for one owner and returns the notifications
// inserted by this call. A failing check is isolated: the others still run,
// and the joined error is reported alongside whatever was inserted.
func (n *Notifier) Evaluate(ctx context.Context, ownerID int64) ([]core.Notification, error) {
	now := core.Day(n.clock.Now())

	checks := []struct {
		name string
		run  func(context.Context, int64, time.Time) ([]candidate, error)
	}{
		{"budgets", n.checkBudgets},
		{"goals", n.checkGoals},
		{"debts", n.checkDebts},
	}

	var inserted []core.Notification
	var errs []error
	for _, check := range checks {
		candidates, err := check.run(ctx, ownerID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Notification check failed",
				"check", check.name,
				"owner_id", ownerID,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", check.name, err))
			continue
		}
		for _, c := range candidates {
			created, ok, err := n.upsert(ctx, ownerID, c)
			if err != nil {
				errs = append(errs, fmt.Errorf("upsert %s: %w", c.dedupKey, err))
				continue
			}
			if ok {
				inserted = append(inserted, created)
			}
		}
	}

	n.publish(ctx, inserted)
	return inserted, errors.Join(errs...)
}

// upsert inserts a candidate unless an unread notification with the same
// dedup key already exists. Existing unread rows are left untouched: no
// duplicate, no timestamp refresh.
func (n *Notifier) upsert(ctx context.Context, ownerID int64, c candidate) (core.Notification, bool, error) {
	q := n.storage.Queries()
	exists, err := q.UnreadNotificationExists(ctx, ownerID, c.dedupKey)
	if err != nil {
		return core.Notification{}, false, err
	}
	if exists {
		return core.Notification{}, false, nil
	}

	created, err := q.InsertNotification(ctx, core.Notification{
		OwnerID:    ownerID,
		Kind:       c.kind,
		DedupKey:   c.dedupKey,
		MessageKey: c.messageKey,
		Params:     c.params,
		CreatedAt:  n.clock.Now(),
	})
	if err != nil {
		return core.Notification{}, false, err
	}

	slog.InfoContext(ctx, "Notification created",
		"owner_id", ownerID,
		"kind", c.kind,
		"dedup_key", c.dedupKey)
	return created, true, nil
}

func (n *Notifier) checkBudgets(ctx context.Context, ownerID int64, now time.Time) ([]candidate, error) {
	budgets, err := n.storage.Queries().ListCurrentBudgets(ctx, ownerID, now)
	if err != nil {
		return nil, err
	}

	var out []candidate
	for _, b := range budgets {
		spent, err := n.storage.Queries().SumExpensesByCategory(ctx, ownerID, b.CategoryID, b.PeriodStart, b.PeriodEnd)
		if err != nil {
			return nil, err
		}

		id := strconv.FormatInt(b.ID, 10)
		params := map[string]string{
			"budget_id":   id,
			"limit_cents": strconv.FormatInt(b.Amount.Cents, 10),
			"spent_cents": strconv.FormatInt(spent, 10),
		}
		switch {
		case spent >= b.Amount.Cents:
			out = append(out, candidate{
				kind:       "budget",
				dedupKey:   dedupBudgetOverrun + id,
				messageKey: "budget.overrun",
				params:     params,
			})
		case float64(spent) >= budgetWarningThreshold*float64(b.Amount.Cents):
			out = append(out, candidate{
				kind:       "budget",
				dedupKey:   dedupBudgetWarning + id,
				messageKey: "budget.approaching",
				params:     params,
			})
		}
	}
	return out, nil
}

func (n *Notifier) checkGoals(ctx context.Context, ownerID int64, now time.Time) ([]candidate, error) {
	goals, err := n.storage.Queries().ListActiveGoals(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	window := time.Duration(n.config.GoalRiskLookaheadDays) * 24 * time.Hour
	var out []candidate
	for _, g := range goals {
		if g.TargetAmount.Cents <= 0 {
			continue
		}
		id := strconv.FormatInt(g.ID, 10)
		params := map[string]string{
			"goal_id":       id,
			"name":          g.Name,
			"target_cents":  strconv.FormatInt(g.TargetAmount.Cents, 10),
			"current_cents": strconv.FormatInt(g.CurrentAmount.Cents, 10),
		}

		if g.CurrentAmount.Cents >= g.TargetAmount.Cents {
			out = append(out, candidate{
				kind:       "goal",
				dedupKey:   dedupGoalCompleted + id,
				messageKey: "goal.completed",
				params:     params,
			})
			continue
		}

		if g.TargetDate == nil {
			continue
		}
		target := core.Day(*g.TargetDate)
		if target.Before(now) || target.After(now.Add(window)) {
			continue
		}
		// Inside the final stretch: expect the saved fraction to track the
		// elapsed fraction of the window linearly.
		daysLeft := int64(target.Sub(now) / (24 * time.Hour))
		expected := g.TargetAmount.Cents * (int64(n.config.GoalRiskLookaheadDays) - daysLeft) / int64(n.config.GoalRiskLookaheadDays)
		if g.CurrentAmount.Cents < expected || daysLeft == 0 {
			params["days_left"] = strconv.FormatInt(daysLeft, 10)
			out = append(out, candidate{
				kind:       "goal",
				dedupKey:   dedupGoalAtRisk + id,
				messageKey: "goal.at_risk",
				params:     params,
			})
		}
	}
	return out, nil
}

func (n *Notifier) checkDebts(ctx context.Context, ownerID int64, now time.Time) ([]candidate, error) {
	lookahead := time.Duration(n.config.DebtLookaheadDays) * 24 * time.Hour
	debts, err := n.storage.Queries().ListDebtsDueWithin(ctx, ownerID, now, now.Add(lookahead))
	if err != nil {
		return nil, err
	}

	var out []candidate
	for _, d := range debts {
		id := strconv.FormatInt(d.ID, 10)
		remaining := d.Amount.Cents - d.Paid.Cents
		if remaining <= 0 {
			continue
		}
		out = append(out, candidate{
			kind:       "debt",
			dedupKey:   dedupDebtDueSoon + id,
			messageKey: "debt.due_soon",
			params: map[string]string{
				"debt_id":         id,
				"name":            d.Name,
				"payment_date":    d.PaymentDate.Format("2006-01-02"),
				"remaining_cents": strconv.FormatInt(remaining, 10),
			},
		})
	}
	return out, nil
}

func (n *Notifier) publish(ctx context.Context, notifications []core.Notification) {
	if n.events == nil {
		return
	}
	for _, notification := range notifications {
		if err := n.events.PublishNotification(ctx, notification); err != nil {
			slog.WarnContext(ctx, "Failed to publish notification event",
				"id", notification.ID,
				"dedup_key", notification.DedupKey,
				"error", err)
		}
	}
}
