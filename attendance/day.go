package attendance

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY BOUNDARY - Local calendar day in the tenant's timezone
// =============================================================================

const DateLayout = "2006-01-02"

// DayBoundary is the half-open interval [Start, End) of one local calendar day.
// It is always computed server-side from the tenant's timezone; callers never
// supply it from a client clock.
type DayBoundary struct {
	Date  string // YYYY-MM-DD in the tenant's timezone
	Start time.Time
	End   time.Time
}

// DayFor returns the local day containing t.
func DayFor(t time.Time, loc *time.Location) DayBoundary {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	// AddDate keeps DST days at 23h/25h instead of a fixed 24h.
	end := start.AddDate(0, 0, 1)
	return DayBoundary{Date: start.Format(DateLayout), Start: start, End: end}
}

// ParseDay returns the boundary of a YYYY-MM-DD date in loc.
func ParseDay(date string, loc *time.Location) (DayBoundary, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return DayBoundary{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", date, err)
	}
	return DayFor(t, loc), nil
}

// Contains reports whether t falls in [Start, End).
func (d DayBoundary) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

func (d DayBoundary) String() string {
	return d.Date
}

// LoadLocation resolves an IANA timezone name, falling back to UTC for "".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
