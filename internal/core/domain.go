package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	SourceManual    TransactionSource = "manual"
	SourceRecurring TransactionSource = "recurring"
	SourceTransfer  TransactionSource = "transfer"
	SourceTemplate  TransactionSource = "template"
	SourcePayment   TransactionSource = "payment"
)

// Achievement condition counters.
const (
	ConditionTransactionsCount = "transactions_count"
	ConditionDaysStreak        = "days_streak"
)

type (
	Frequency string

	Direction string

	TransactionSource string

	Money struct {
		Cents int64
	}

	// RecurringRule is the advancement state machine's persistent state.
	// NextDueDate is the earliest not-yet-materialized occurrence; it is
	// mutated only by the scheduler or by explicit user edits.
	RecurringRule struct {
		ID          int64      `json:"id"`
		OwnerID     int64      `json:"owner_id"`
		Description string     `json:"description"`
		Amount      Money      `json:"amount"`
		Direction   Direction  `json:"direction"`
		Frequency   Frequency  `json:"frequency"`
		CategoryID  *int64     `json:"category_id,omitempty"`
		AccountID   *int64     `json:"account_id,omitempty"`
		Note        string     `json:"note,omitempty"`
		StartDate   time.Time  `json:"start_date"`
		EndDate     *time.Time `json:"end_date,omitempty"`
		NextDueDate time.Time  `json:"next_due_date"`
		Active      bool       `json:"active"`
	}

	Transaction struct {
		ID         int64             `json:"id"`
		OwnerID    int64             `json:"owner_id"`
		Date       time.Time         `json:"date"`
		Amount     Money             `json:"amount"`
		Direction  Direction         `json:"direction"`
		CategoryID *int64            `json:"category_id,omitempty"`
		AccountID  *int64            `json:"account_id,omitempty"`
		Note       string            `json:"note,omitempty"`
		Source     TransactionSource `json:"source"`
	}

	Account struct {
		ID       int64  `json:"id"`
		OwnerID  int64  `json:"owner_id"`
		Name     string `json:"name"`
		Balance  Money  `json:"balance"`
		Currency string `json:"currency"`
		Active   bool   `json:"active"`
	}

	// Notification carries a message template key plus parameters; the
	// presentation layer owns formatting and localization.
	Notification struct {
		ID         int64             `json:"id"`
		OwnerID    int64             `json:"owner_id"`
		Kind       string            `json:"kind"`
		DedupKey   string            `json:"dedup_key"`
		MessageKey string            `json:"message_key"`
		Params     map[string]string `json:"params"`
		CreatedAt  time.Time         `json:"created_at"`
		IsRead     bool              `json:"is_read"`
	}

	Achievement struct {
		ID             int64      `json:"id"`
		OwnerID        int64      `json:"owner_id"`
		Code           string     `json:"code"`
		Title          string     `json:"title"`
		ConditionType  string     `json:"condition_type"`
		ConditionValue int64      `json:"condition_value"`
		IsUnlocked     bool       `json:"is_unlocked"`
		UnlockedAt     *time.Time `json:"unlocked_at,omitempty"`
	}

	Budget struct {
		ID          int64     `json:"id"`
		OwnerID     int64     `json:"owner_id"`
		CategoryID  int64     `json:"category_id"`
		Amount      Money     `json:"amount"`
		PeriodStart time.Time `json:"period_start"`
		PeriodEnd   time.Time `json:"period_end"`
		Active      bool      `json:"active"`
	}

	Goal struct {
		ID            int64      `json:"id"`
		OwnerID       int64      `json:"owner_id"`
		Name          string     `json:"name"`
		TargetAmount  Money      `json:"target_amount"`
		CurrentAmount Money      `json:"current_amount"`
		TargetDate    *time.Time `json:"target_date,omitempty"`
		Active        bool       `json:"active"`
	}

	Debt struct {
		ID          int64      `json:"id"`
		OwnerID     int64      `json:"owner_id"`
		Name        string     `json:"name"`
		Amount      Money      `json:"amount"`
		Paid        Money      `json:"paid"`
		AccountID   *int64     `json:"account_id,omitempty"`
		PaymentDate *time.Time `json:"payment_date,omitempty"`
		Active      bool       `json:"active"`
	}

	// Occurrence is one concrete materialization of a recurring rule on a
	// specific due date, reported back by the scheduler.
	Occurrence struct {
		RuleID        int64
		TransactionID int64
		OwnerID       int64
		DueDate       time.Time
		Amount        Money
		Direction     Direction
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDateRange = errors.New("end date before start date")
	ErrNotFound         = errors.New("not found")
	ErrOwnerMismatch    = errors.New("entity belongs to another owner")
)

// Signed returns the balance effect of amount a applied in direction d:
// income is positive, expense is negative.
func Signed(a Money, d Direction) int64 {
	if d == Expense {
		return -a.Cents
	}
	return a.Cents
}

func (d Direction) Validate() error {
	switch d {
	case Income, Expense:
		return nil
	}
	return ErrInvalidDirection
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	}
	return ErrInvalidFrequency
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Direction.Validate(); err != nil {
		return err
	}
	switch t.Source {
	case SourceManual, SourceRecurring, SourceTransfer, SourceTemplate, SourcePayment:
	default:
		return errors.New("invalid transaction source")
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Direction.Validate(); err != nil {
		return err
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if r.StartDate.IsZero() {
		return errors.New("start date cannot be zero")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// Day truncates t to midnight UTC. Recurrence arithmetic operates on whole
// calendar days; time-of-day never participates in dueness.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
