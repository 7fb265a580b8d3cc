package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar day without time of day
// =============================================================================

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day. The wrapped time is always UTC midnight.
type Date struct {
	Time time.Time
}

// MaxDate stands in for "no end" when a range needs a concrete bound.
var MaxDate = NewDate(9999, time.December, 31)

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the UTC calendar day of t. Work dates, rate lookups and
// ISO weeks all go through here, so an instant lands on the same day
// whatever location it carries (a live clock or a value read back from
// storage).
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{Time: t}, nil
}

// Comparison
func (d Date) Before(other Date) bool         { return d.Time.Before(other.Time) }
func (d Date) Equal(other Date) bool          { return d.Time.Equal(other.Time) }
func (d Date) After(other Date) bool          { return d.Time.After(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool  { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool   { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format(DateLayout) }

// Compact renders the date as YYYYMMDD (iCalendar DATE values).
func (d Date) Compact() string { return d.Time.Format("20060102") }

// =============================================================================
// WEEKS - Overtime is counted per ISO week (Monday to Sunday)
// =============================================================================

// WeekOf returns the Monday-to-Sunday period containing d.
func WeekOf(d Date) Period {
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7 // Sunday is the last ISO day
	}
	monday := d.AddDays(-(wd - 1))
	return Period{Start: monday, End: monday.AddDays(6)}
}

// WeekLabel returns a label like "2024-W09".
func WeekLabel(d Date) string {
	year, week := d.Time.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// =============================================================================
// DURATIONS
// =============================================================================

var secondsPerHour = decimal.NewFromInt(3600)

// HoursOf converts a duration to decimal hours with second precision.
func HoursOf(d time.Duration) decimal.Decimal {
	secs := int64(d / time.Second)
	return decimal.NewFromInt(secs).Div(secondsPerHour)
}
