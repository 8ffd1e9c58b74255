package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kopilka/internal/core"
)

// Event types carried on the engine events queue.
const (
	EventOccurrence   = "occurrence"
	EventNotification = "notification"
)

// Event is the wire envelope for engine output. Consumers dispatch on Type;
// MessageID makes redeliveries identifiable.
type Event struct {
	Type      string    `json:"type"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`

	Occurrence   *OccurrenceEvent   `json:"occurrence,omitempty"`
	Notification *NotificationEvent `json:"notification,omitempty"`
}

// OccurrenceEvent reports one materialized recurring transaction.
type OccurrenceEvent struct {
	RuleID        int64  `json:"rule_id"`
	TransactionID int64  `json:"transaction_id"`
	OwnerID       int64  `json:"owner_id"`
	DueDate       string `json:"due_date"`
	AmountCents   int64  `json:"amount_cents"`
	Direction     string `json:"direction"`
}

// NotificationEvent reports one freshly inserted notification. It carries
// only identity and template data; consumers fetch nothing.
type NotificationEvent struct {
	ID         int64             `json:"id"`
	OwnerID    int64             `json:"owner_id"`
	Kind       string            `json:"kind"`
	DedupKey   string            `json:"dedup_key"`
	MessageKey string            `json:"message_key"`
	Params     map[string]string `json:"params"`
}

func NewOccurrenceEvent(o core.Occurrence) *Event {
	return &Event{
		Type:      EventOccurrence,
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Occurrence: &OccurrenceEvent{
			RuleID:        o.RuleID,
			TransactionID: o.TransactionID,
			OwnerID:       o.OwnerID,
			DueDate:       o.DueDate.Format("2006-01-02"),
			AmountCents:   o.Amount.Cents,
			Direction:     string(o.Direction),
		},
	}
}

func NewNotificationEvent(n core.Notification) *Event {
	return &Event{
		Type:      EventNotification,
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Notification: &NotificationEvent{
			ID:         n.ID,
			OwnerID:    n.OwnerID,
			Kind:       n.Kind,
			DedupKey:   n.DedupKey,
			MessageKey: n.MessageKey,
			Params:     n.Params,
		},
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and checks the envelope is coherent.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventOccurrence:
		if e.Occurrence == nil {
			return nil, fmt.Errorf("occurrence event without payload")
		}
	case EventNotification:
		if e.Notification == nil {
			return nil, fmt.Errorf("notification event without payload")
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
