// Package services implements the recurrence and notification engine.
//
// This file implements the Strategy Pattern for due-date advancement. Each
// frequency type (daily, weekly, monthly, yearly) has its own strategy that
// encapsulates the calendar arithmetic for stepping a rule's next_due_date
// forward by one occurrence.
package services

import (
	"fmt"
	"time"

	"kopilka/internal/core"
)

// Advancer is the strategy interface for stepping a due date forward.
// Implementations anchor day-of-month and month-of-year on the rule's start
// date so a clamped occurrence (Jan 31 -> Feb 29) springs back in longer
// months (-> Mar 31) instead of drifting.
type Advancer interface {
	// Next returns the occurrence that follows current for a rule whose
	// series is anchored at start.
	Next(current, start time.Time) time.Time
}

// DailyAdvancer steps one calendar day at a time.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(current, _ time.Time) time.Time {
	return current.AddDate(0, 0, 1)
}

// WeeklyAdvancer steps seven calendar days at a time.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(current, _ time.Time) time.Time {
	return current.AddDate(0, 0, 7)
}

// MonthlyAdvancer steps one calendar month, preserving the anchor day of
// month and clamping to the last day of shorter months.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(current, start time.Time) time.Time {
	year, month, _ := current.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	return clampedDate(year, month, start.Day())
}

// YearlyAdvancer steps one calendar year, clamping Feb 29 anchors to Feb 28
// on non-leap years.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(current, start time.Time) time.Time {
	return clampedDate(current.Year()+1, start.Month(), start.Day())
}

func clampedDate(year int, month time.Month, day int) time.Time {
	if last := core.DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// advancers maps frequency types to their corresponding strategies.
var advancers = map[core.Frequency]Advancer{
	core.Daily:   DailyAdvancer{},
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// GetAdvancer returns the advancement strategy for a frequency.
// Returns an error for unrecognized frequencies; the scheduler treats that
// as malformed rule state.
func GetAdvancer(frequency core.Frequency) (Advancer, error) {
	a, ok := advancers[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return a, nil
}
