package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kopilka/internal/clock"
	"kopilka/internal/storage"

	"kopilka/internal/core"
)

// AchievementEvaluator checks cumulative usage counters against unlock
// thresholds. Transitions are one-way: an unlocked achievement never reverts,
// and re-evaluating it is a no-op.
type AchievementEvaluator struct {
	storage *storage.Repository
	clock   clock.Clock
}

func NewAchievementEvaluator(storage *storage.Repository, clk clock.Clock) *AchievementEvaluator {
	return &AchievementEvaluator{storage: storage, clock: clk}
}

// Evaluate recomputes counters for every locked achievement and unlocks the
// ones whose threshold is met, returning the unlocked-this-call subset.
func (e *AchievementEvaluator) Evaluate(ctx context.Context, ownerID int64) ([]core.Achievement, error) {
	q := e.storage.Queries()

	if err := q.EnsureDefaultAchievements(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("seed achievements: %w", err)
	}

	locked, err := q.ListLockedAchievements(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list locked achievements: %w", err)
	}
	if len(locked) == 0 {
		return nil, nil
	}

	counters, err := e.counters(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	var unlocked []core.Achievement
	var errs []error
	for _, a := range locked {
		value, ok := counters[a.ConditionType]
		if !ok {
			slog.WarnContext(ctx, "Skipping achievement with unknown condition",
				"code", a.Code,
				"condition_type", a.ConditionType)
			continue
		}
		if value < a.ConditionValue {
			continue
		}

		flipped, err := q.UnlockAchievement(ctx, a.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", a.Code, err))
			continue
		}
		if !flipped {
			// Concurrent evaluation got there first.
			continue
		}

		a.IsUnlocked = true
		at := now
		a.UnlockedAt = &at
		unlocked = append(unlocked, a)
		slog.InfoContext(ctx, "Achievement unlocked",
			"owner_id", ownerID,
			"code", a.Code,
			"condition_type", a.ConditionType,
			"condition_value", a.ConditionValue)
	}

	return unlocked, errors.Join(errs...)
}

func (e *AchievementEvaluator) counters(ctx context.Context, ownerID int64) (map[string]int64, error) {
	q := e.storage.Queries()

	total, err := q.CountTransactions(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	days, err := q.CountDistinctActivityDays(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count activity days: %w", err)
	}

	return map[string]int64{
		core.ConditionTransactionsCount: total,
		core.ConditionDaysStreak:        days,
	}, nil
}
