// Package worker consumes engine events off the queue and hands them to
// delivery sinks. The engine itself never waits on delivery; everything here
// is after-the-fact fan-out.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"kopilka/internal/amqp"
)

// Sink delivers a notification event to some external channel (log output,
// a bot, a mailer). Sinks must be idempotent: redelivered events carry the
// same message ID.
type Sink interface {
	Deliver(ctx context.Context, event *amqp.NotificationEvent) error
}

// Dispatcher routes consumed engine events. Occurrence events are recorded
// for observability; notification events go to every configured sink.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// HandleEvent implements the amqp consume callback.
func (d *Dispatcher) HandleEvent(ctx context.Context, event *amqp.Event) error {
	switch event.Type {
	case amqp.EventOccurrence:
		slog.InfoContext(ctx, "Recurring occurrence materialized",
			"rule_id", event.Occurrence.RuleID,
			"transaction_id", event.Occurrence.TransactionID,
			"owner_id", event.Occurrence.OwnerID,
			"due_date", event.Occurrence.DueDate)
		return nil
	case amqp.EventNotification:
		var firstErr error
		for _, sink := range d.sinks {
			if err := sink.Deliver(ctx, event.Notification); err != nil {
				slog.ErrorContext(ctx, "Notification delivery failed",
					"dedup_key", event.Notification.DedupKey,
					"error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	default:
		return fmt.Errorf("unexpected event type %q", event.Type)
	}
}

// LogSink writes notifications to the structured log. It is the default
// delivery channel when no external one is configured.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, event *amqp.NotificationEvent) error {
	slog.InfoContext(ctx, "Notification",
		"owner_id", event.OwnerID,
		"kind", event.Kind,
		"message_key", event.MessageKey,
		"dedup_key", event.DedupKey)
	return nil
}
