package calendar_test

import (
	"testing"
	"time"

	"BullionLedger/internal/calendar"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsBusinessDay(t *testing.T) {
	goodFriday := date(2026, 4, 3)
	c := calendar.New(goodFriday)

	cases := []struct {
		day  time.Time
		want bool
	}{
		{date(2026, 4, 1), true},  // Wednesday
		{date(2026, 4, 3), false}, // holiday
		{date(2026, 4, 4), false}, // Saturday
		{date(2026, 4, 5), false}, // Sunday
		{date(2026, 4, 6), true},  // Monday
	}
	for _, tc := range cases {
		if got := c.IsBusinessDay(tc.day); got != tc.want {
			t.Errorf("IsBusinessDay(%s) = %v, want %v", tc.day.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestAddBusinessDaysSkipsWeekend(t *testing.T) {
	c := calendar.New()

	// Thursday + 2 business days lands on Monday.
	got := c.AddBusinessDays(date(2026, 4, 2), 2)
	if want := date(2026, 4, 6); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAddBusinessDaysSkipsHoliday(t *testing.T) {
	c := calendar.New(date(2026, 4, 3))

	// Thursday + 2 business days with Friday a holiday lands on Tuesday.
	got := c.AddBusinessDays(date(2026, 4, 2), 2)
	if want := date(2026, 4, 7); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAddBusinessDaysZero(t *testing.T) {
	c := calendar.New()
	saturday := date(2026, 4, 4)
	if got := c.AddBusinessDays(saturday, 0); !got.Equal(saturday) {
		t.Errorf("n=0 must return the input unchanged, got %s", got)
	}
}

func TestNextBusinessDay(t *testing.T) {
	c := calendar.New(date(2026, 4, 6)) // Monday holiday

	// Saturday rolls over weekend and the Monday holiday to Tuesday.
	got := c.NextBusinessDay(date(2026, 4, 4))
	if want := date(2026, 4, 7); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}

	// A business day is its own next business day.
	wednesday := date(2026, 4, 1)
	if got := c.NextBusinessDay(wednesday); !got.Equal(wednesday) {
		t.Errorf("got %s, want %s", got, wednesday)
	}
}
