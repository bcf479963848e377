// Package calendar provides business-day arithmetic for settlement
// date handling.
package calendar

import "time"

// BusinessCalendar knows weekends and a configured holiday set. Dates
// are compared by calendar day; timezone of the inputs is preserved.
type BusinessCalendar struct {
	holidays map[string]struct{}
}

func New(holidays ...time.Time) *BusinessCalendar {
	c := &BusinessCalendar{holidays: make(map[string]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[dayKey(h)] = struct{}{}
	}
	return c
}

// IsBusinessDay reports whether d is neither a weekend nor a holiday.
func (c *BusinessCalendar) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[dayKey(d)]
	return !holiday
}

// AddBusinessDays returns the date n business days after d. With n == 0
// it returns d unchanged even on a non-business day; use
// NextBusinessDay to roll forward.
func (c *BusinessCalendar) AddBusinessDays(d time.Time, n int) time.Time {
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			n--
		}
	}
	return d
}

// NextBusinessDay returns d itself when it is a business day, otherwise
// the first business day after it.
func (c *BusinessCalendar) NextBusinessDay(d time.Time) time.Time {
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func dayKey(d time.Time) string {
	return d.Format("2006-01-02")
}
