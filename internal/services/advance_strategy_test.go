package services

import (
	"testing"
	"time"

	"kopilka/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthlyAdvancer_ClampAndSpringBack(t *testing.T) {
	// A rule anchored on the 31st clamps in short months and springs back
	// to the 31st when the month allows it.
	start := date(2024, 1, 31)
	advancer := MonthlyAdvancer{}

	want := []time.Time{
		date(2024, 2, 29), // leap February
		date(2024, 3, 31),
		date(2024, 4, 30),
		date(2024, 5, 31),
	}

	current := start
	for i, expected := range want {
		current = advancer.Next(current, start)
		if !current.Equal(expected) {
			t.Fatalf("step %d: Next() = %v, want %v", i+1, current, expected)
		}
	}
}

func TestMonthlyAdvancer_YearRollover(t *testing.T) {
	start := date(2024, 12, 15)
	got := MonthlyAdvancer{}.Next(start, start)
	if want := date(2025, 1, 15); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestYearlyAdvancer_LeapDayClamp(t *testing.T) {
	start := date(2024, 2, 29)
	advancer := YearlyAdvancer{}

	tests := []struct {
		name    string
		current time.Time
		want    time.Time
	}{
		{"leap to non-leap clamps to 28th", date(2024, 2, 29), date(2025, 2, 28)},
		{"non-leap year stays on 28th", date(2025, 2, 28), date(2026, 2, 28)},
		{"springs back on next leap year", date(2027, 2, 28), date(2028, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := advancer.Next(tt.current, start)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.current, got, tt.want)
			}
		})
	}
}

func TestDailyAndWeeklyAdvancers(t *testing.T) {
	start := date(2024, 6, 1)

	if got := (DailyAdvancer{}).Next(start, start); !got.Equal(date(2024, 6, 2)) {
		t.Errorf("DailyAdvancer.Next() = %v, want %v", got, date(2024, 6, 2))
	}
	if got := (WeeklyAdvancer{}).Next(start, start); !got.Equal(date(2024, 6, 8)) {
		t.Errorf("WeeklyAdvancer.Next() = %v, want %v", got, date(2024, 6, 8))
	}
	// Weekly crossing a month boundary is plain 7-day arithmetic.
	if got := (WeeklyAdvancer{}).Next(date(2024, 6, 29), start); !got.Equal(date(2024, 7, 6)) {
		t.Errorf("WeeklyAdvancer.Next() = %v, want %v", got, date(2024, 7, 6))
	}
}

func TestGetAdvancer(t *testing.T) {
	for _, f := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetAdvancer(f); err != nil {
			t.Errorf("GetAdvancer(%s) error = %v", f, err)
		}
	}
	if _, err := GetAdvancer("hourly"); err == nil {
		t.Error("GetAdvancer(hourly) expected error")
	}
}
