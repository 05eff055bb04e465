package domain

import (
	"fmt"
	"time"
)

// BillingPeriod is the calendar month a recurring invoice belongs to
type BillingPeriod struct {
	Year  int
	Month time.Month
}

// PeriodOf truncates a date to its billing period
func PeriodOf(t time.Time) BillingPeriod {
	return BillingPeriod{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "YYYY-MM" string
func ParsePeriod(s string) (BillingPeriod, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return BillingPeriod{}, fmt.Errorf("invalid billing period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

// Start returns the first day of the period in UTC
func (p BillingPeriod) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the period n months later (n may be negative)
func (p BillingPeriod) AddMonths(n int) BillingPeriod {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// Before reports whether p is strictly earlier than o
func (p BillingPeriod) Before(o BillingPeriod) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// After reports whether p is strictly later than o
func (p BillingPeriod) After(o BillingPeriod) bool {
	return o.Before(p)
}

// DaysInMonth returns the number of days in the period
func (p BillingPeriod) DaysInMonth() int {
	return p.Start().AddDate(0, 1, -1).Day()
}

// DayClipped returns the given day-of-month within the period, clipped to the
// period's length (e.g. day 31 in February becomes the 28th or 29th).
func (p BillingPeriod) DayClipped(day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := p.DaysInMonth(); day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalText renders the period as "YYYY-MM"
func (p BillingPeriod) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses "YYYY-MM"
func (p *BillingPeriod) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// DateOnly strips the clock from t, keeping the calendar date in UTC
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
