package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/storage"
)

// MaxCatchUpPerRule bounds the backfill loop for a single rule within one
// tick. A pointer corrupted far into the past advances by at most this many
// occurrences per tick instead of stalling the sweep.
const MaxCatchUpPerRule = 500

// OccurrencePublisher receives materialized occurrences after they commit.
// Publishing is best-effort; failures never affect the ledger.
type OccurrencePublisher interface {
	PublishOccurrence(ctx context.Context, o core.Occurrence) error
}

// Scheduler owns the advancement state machine for recurring rules. A tick
// materializes every occurrence that became due since the last one, mutating
// linked account balances through the same per-rule transaction.
type Scheduler struct {
	storage *storage.Repository
	events  OccurrencePublisher
}

// NewScheduler creates a scheduler. events may be nil.
func NewScheduler(storage *storage.Repository, events OccurrencePublisher) *Scheduler {
	return &Scheduler{storage: storage, events: events}
}

// Tick advances all active rules due at asOf, optionally scoped to one owner.
// Each rule's catch-up commits or rolls back as a unit; a failing rule is
// logged and skipped so it cannot block the others.
func (s *Scheduler) Tick(ctx context.Context, asOf time.Time, ownerID *int64) ([]core.Occurrence, error) {
	asOf = core.Day(asOf)

	rules, err := s.storage.Queries().ListDueRules(ctx, asOf, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}

	var materialized []core.Occurrence
	for _, rule := range rules {
		occurrences, err := s.processRule(ctx, rule, asOf)
		if err != nil {
			if errors.Is(err, storage.ErrStaleRule) {
				// Another tick advanced this rule first; its work stands.
				slog.DebugContext(ctx, "Rule already advanced by concurrent tick", "rule_id", rule.ID)
				continue
			}
			slog.ErrorContext(ctx, "Failed to advance recurring rule",
				"rule_id", rule.ID,
				"owner_id", rule.OwnerID,
				"error", err)
			continue
		}
		materialized = append(materialized, occurrences...)
	}

	if len(materialized) > 0 {
		slog.InfoContext(ctx, "Recurring catch-up complete",
			"rules_due", len(rules),
			"occurrences", len(materialized),
			"as_of", asOf.Format("2006-01-02"))
	}

	s.publish(ctx, materialized)
	return materialized, nil
}

// processRule runs one rule's whole catch-up loop inside a single storage
// transaction: every materialized row, every balance mutation, and exactly
// one pointer update commit together or not at all.
func (s *Scheduler) processRule(ctx context.Context, rule core.RecurringRule, asOf time.Time) ([]core.Occurrence, error) {
	advancer, err := GetAdvancer(rule.Frequency)
	if err != nil {
		return nil, s.deactivateMalformed(ctx, rule, err)
	}
	if rule.Amount.Cents <= 0 {
		return nil, s.deactivateMalformed(ctx, rule, core.ErrInvalidAmount)
	}
	if rule.EndDate != nil && rule.NextDueDate.After(*rule.EndDate) {
		// Pointer already past the end date: nothing left to materialize.
		return nil, s.deactivateMalformed(ctx, rule, errors.New("next due date after end date"))
	}

	var occurrences []core.Occurrence
	err = s.storage.InTx(ctx, func(q *storage.Queries) error {
		occurrences = occurrences[:0]
		due := rule.NextDueDate
		active := true

		for len(occurrences) < MaxCatchUpPerRule &&
			!due.After(asOf) &&
			(rule.EndDate == nil || !due.After(*rule.EndDate)) {

			t := core.Transaction{
				OwnerID:    rule.OwnerID,
				Date:       due,
				Amount:     rule.Amount,
				Direction:  rule.Direction,
				CategoryID: rule.CategoryID,
				AccountID:  rule.AccountID,
				Note:       rule.Note,
				Source:     core.SourceRecurring,
			}
			if t.Note == "" {
				t.Note = rule.Description
			}
			created, err := q.InsertTransaction(ctx, t, &rule.ID)
			if err != nil {
				return err
			}
			if err := applyEffect(ctx, q, created, +1); err != nil {
				return err
			}

			occurrences = append(occurrences, core.Occurrence{
				RuleID:        rule.ID,
				TransactionID: created.ID,
				OwnerID:       rule.OwnerID,
				DueDate:       due,
				Amount:        rule.Amount,
				Direction:     rule.Direction,
			})
			due = advancer.Next(due, rule.StartDate)
		}

		if len(occurrences) == 0 {
			return nil
		}
		if rule.EndDate != nil && due.After(*rule.EndDate) {
			// Last valid occurrence produced; the rule is spent.
			active = false
		}

		// Compare-and-swap on the pointer the catch-up started from: if a
		// concurrent tick got there first this returns ErrStaleRule and the
		// whole unit, materialized rows included, rolls back.
		return q.AdvanceRule(ctx, rule.ID, rule.NextDueDate, due, active)
	})
	if err != nil {
		return nil, err
	}

	if len(occurrences) == MaxCatchUpPerRule {
		slog.WarnContext(ctx, "Rule hit catch-up cap, remainder deferred to next tick",
			"rule_id", rule.ID,
			"cap", MaxCatchUpPerRule)
	}
	return occurrences, nil
}

// deactivateMalformed turns off a rule the scheduler cannot safely advance.
// Skipping it forever beats looping on it every tick.
func (s *Scheduler) deactivateMalformed(ctx context.Context, rule core.RecurringRule, cause error) error {
	slog.WarnContext(ctx, "Deactivating malformed recurring rule",
		"rule_id", rule.ID,
		"owner_id", rule.OwnerID,
		"frequency", rule.Frequency,
		"cause", cause.Error())
	if err := s.storage.Queries().DeactivateRule(ctx, rule.ID); err != nil {
		return fmt.Errorf("deactivate malformed rule %d: %w", rule.ID, err)
	}
	return nil
}

func (s *Scheduler) publish(ctx context.Context, occurrences []core.Occurrence) {
	if s.events == nil {
		return
	}
	for _, o := range occurrences {
		if err := s.events.PublishOccurrence(ctx, o); err != nil {
			slog.WarnContext(ctx, "Failed to publish occurrence event",
				"rule_id", o.RuleID,
				"transaction_id", o.TransactionID,
				"error", err)
		}
	}
}
