package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Period identifies one calendar month as "YYYY-MM". The lexicographic
// ordering of the canonical form coincides with chronological ordering,
// which the snapshot store relies on for latest/range queries.
type Period string

var periodPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// NewPeriod builds the canonical period for a year and month.
func NewPeriod(year int, month time.Month) (Period, error) {
	if year < 1 || month < time.January || month > time.December {
		return "", fmt.Errorf("%w: year=%d month=%d", ErrInvalidPeriod, year, int(month))
	}
	return Period(fmt.Sprintf("%04d-%02d", year, int(month))), nil
}

// ParsePeriod validates a raw period string.
func ParsePeriod(raw string) (Period, error) {
	if !periodPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	month := int(raw[5]-'0')*10 + int(raw[6]-'0')
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return Period(raw), nil
}

// PeriodOf returns the period containing the given instant, in UTC.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

func (p Period) String() string { return string(p) }

// Year returns the period's calendar year.
func (p Period) Year() int {
	t, _ := time.Parse("2006-01", string(p))
	return t.Year()
}

// Month returns the period's calendar month.
func (p Period) Month() time.Month {
	t, _ := time.Parse("2006-01", string(p))
	return t.Month()
}

// Bounds returns the half-open UTC interval [start, next month start)
// covering the period.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year(), p.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Prev returns the preceding calendar month.
func (p Period) Prev() Period {
	start, _ := p.Bounds()
	return PeriodOf(start.AddDate(0, -1, 0))
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	_, end := p.Bounds()
	return PeriodOf(end)
}

// PeriodsBetween expands a closed range into chronological order.
func PeriodsBetween(start, end Period) ([]Period, error) {
	if start > end {
		return nil, fmt.Errorf("%w: start %s after end %s", ErrInvalidRange, start, end)
	}
	var periods []Period
	for p := start; p <= end; p = p.Next() {
		periods = append(periods, p)
	}
	return periods, nil
}
