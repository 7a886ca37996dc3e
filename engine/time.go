package engine

import (
	"time"
)

// =============================================================================
// TIME POINT - Day-granular point in time
// =============================================================================

// TimePoint is a calendar day in UTC. All engine math operates on whole days;
// wall-clock time never enters the core, which keeps projections deterministic
// for any injected "now".
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary time to its UTC calendar day.
func DateOf(t time.Time) TimePoint {
	u := t.UTC()
	return NewTimePoint(u.Year(), u.Month(), u.Day())
}

func Today() TimePoint {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return TimePoint{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }
func (tp TimePoint) IsZero() bool                       { return tp.Time.IsZero() }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.normalize().AddDate(0, 0, n)}
}

func (tp TimePoint) AddYears(n int) TimePoint {
	return tp.AddMonths(12 * n)
}

// AddMonths advances by whole months, clamping the day-of-month to the target
// month's length (Jan 31 + 1 month = Feb 28/29, never Mar 2). Occurrence
// sequences are always generated from a fixed anchor with k*N months so the
// anchor day is preserved across short months.
func (tp TimePoint) AddMonths(n int) TimePoint {
	year, month, day := tp.normalize().Date()
	total := int(month) - 1 + n
	year += total / 12
	total %= 12
	if total < 0 {
		total += 12
		year--
	}
	newMonth := time.Month(total + 1)
	if max := DaysInMonth(year, newMonth); day > max {
		day = max
	}
	return NewTimePoint(year, newMonth, day)
}

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }

func (tp TimePoint) String() string {
	return tp.normalize().Format("2006-01-02")
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1).Day()
}

// DayOfMonth returns the given pay-day anchor within a month, clamped to the
// month's last day (anchor 31 in April resolves to April 30).
func DayOfMonth(year int, month time.Month, day int) TimePoint {
	if day < 1 {
		day = 1
	}
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	return NewTimePoint(year, month, day)
}
