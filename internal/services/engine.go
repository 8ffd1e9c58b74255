package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"kopilka/internal/cache"
	"kopilka/internal/clock"
)

// Engine is the trigger boundary around the scheduler and the evaluators.
// It is invoked on every inbound request and by the background worker; all
// engine errors stop here: they are logged, never surfaced to the request
// that happened to trigger the run.
type Engine struct {
	scheduler    *Scheduler
	notifier     *Notifier
	achievements *AchievementEvaluator
	clock        clock.Clock

	// Concurrent requests for the same owner collapse into one run, and an
	// owner whose engine ran within minRunInterval is skipped outright.
	group   singleflight.Group
	lastRun *cache.LRUCache[time.Time]

	minRunInterval time.Duration
}

func NewEngine(scheduler *Scheduler, notifier *Notifier, achievements *AchievementEvaluator, clk clock.Clock, minRunInterval time.Duration) *Engine {
	return &Engine{
		scheduler:      scheduler,
		notifier:       notifier,
		achievements:   achievements,
		clock:          clk,
		lastRun:        cache.NewLRUCache[time.Time](4096, minRunInterval),
		minRunInterval: minRunInterval,
	}
}

// RunForOwner performs one best-effort tick + evaluate pass for one owner.
// It never returns an error: recurrence and notification generation are
// background maintenance, not the response the user is waiting for.
func (e *Engine) RunForOwner(ctx context.Context, ownerID int64) {
	key := strconv.FormatInt(ownerID, 10)

	if e.minRunInterval > 0 {
		if _, ran := e.lastRun.Get(key); ran {
			return
		}
	}

	e.group.Do(key, func() (any, error) {
		e.run(ctx, ownerID)
		e.lastRun.Set(key, e.clock.Now())
		return nil, nil
	})
}

func (e *Engine) run(ctx context.Context, ownerID int64) {
	now := e.clock.Now()

	if _, err := e.scheduler.Tick(ctx, now, &ownerID); err != nil {
		slog.ErrorContext(ctx, "Engine tick failed", "owner_id", ownerID, "error", err)
	}
	if _, err := e.notifier.Evaluate(ctx, ownerID); err != nil {
		slog.ErrorContext(ctx, "Engine notification evaluation failed", "owner_id", ownerID, "error", err)
	}
	if _, err := e.achievements.Evaluate(ctx, ownerID); err != nil {
		slog.ErrorContext(ctx, "Engine achievement evaluation failed", "owner_id", ownerID, "error", err)
	}
}

// Sweep performs one global catch-up tick across all owners. The background
// worker calls it on an interval; per-owner throttling does not apply.
func (e *Engine) Sweep(ctx context.Context) int {
	occurrences, err := e.scheduler.Tick(ctx, e.clock.Now(), nil)
	if err != nil {
		slog.ErrorContext(ctx, "Engine sweep failed", "error", err)
	}
	return len(occurrences)
}
