package amqp

import (
	"testing"
	"time"

	"kopilka/internal/core"
)

func TestNewOccurrenceEvent(t *testing.T) {
	occurrence := core.Occurrence{
		RuleID:        7,
		TransactionID: 42,
		OwnerID:       1,
		DueDate:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Amount:        core.Money{Cents: 100000},
		Direction:     core.Expense,
	}

	event := NewOccurrenceEvent(occurrence)
	if event.Type != EventOccurrence {
		t.Errorf("type = %q, want %q", event.Type, EventOccurrence)
	}
	if event.MessageID == "" {
		t.Error("missing message id")
	}
	if event.Occurrence.DueDate != "2024-03-31" {
		t.Errorf("due date = %q, want 2024-03-31", event.Occurrence.DueDate)
	}
	if event.Occurrence.AmountCents != 100000 {
		t.Errorf("amount = %d, want 100000", event.Occurrence.AmountCents)
	}

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	decoded, err := EventFromJSON(data)
	if err != nil {
		t.Fatalf("EventFromJSON() error = %v", err)
	}
	if decoded.Occurrence.RuleID != 7 || decoded.Occurrence.TransactionID != 42 {
		t.Errorf("decoded occurrence = %+v", decoded.Occurrence)
	}
}

func TestNewNotificationEvent(t *testing.T) {
	event := NewNotificationEvent(core.Notification{
		ID:         9,
		OwnerID:    1,
		Kind:       "budget",
		DedupKey:   "budget_overrun:7",
		MessageKey: "budget.overrun",
		Params:     map[string]string{"budget_id": "7"},
	})
	if event.Type != EventNotification {
		t.Errorf("type = %q, want %q", event.Type, EventNotification)
	}
	if event.Notification.DedupKey != "budget_overrun:7" {
		t.Errorf("dedup key = %q", event.Notification.DedupKey)
	}
}

func TestEventFromJSON_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"unknown type", `{"type":"mystery","message_id":"x"}`},
		{"occurrence without payload", `{"type":"occurrence","message_id":"x"}`},
		{"notification without payload", `{"type":"notification","message_id":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EventFromJSON([]byte(tt.data)); err == nil {
				t.Error("EventFromJSON() = nil error, want rejection")
			}
		})
	}
}
