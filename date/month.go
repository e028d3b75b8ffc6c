package date

import (
	"fmt"
	"time"
)

// MonthFormat is the layout of a Month key.
const MonthFormat = "2006-01"

// Month is a calendar month key formatted as "YYYY-MM".
//
// Keys are zero padded, so lexicographic order and chronological order coincide.
type Month string

// ParseMonth parses a "YYYY-MM" key. A longer date string is accepted and
// truncated to its month, so "2020-01-15" gives "2020-01".
func ParseMonth(s string) (Month, error) {
	if len(s) > len(MonthFormat) {
		s = s[:len(MonthFormat)]
	}
	t, err := time.Parse(MonthFormat, s)
	if err != nil {
		return "", fmt.Errorf("invalid month %q want format %q: %w", s, MonthFormat, err)
	}
	return Month(t.Format(MonthFormat)), nil
}

// MonthOf returns the month containing d.
func MonthOf(d Date) Month { return Month(d.time().Format(MonthFormat)) }

// FirstDay returns the first day of the month.
func (m Month) FirstDay() Date {
	t, err := time.Parse(MonthFormat, string(m))
	if err != nil {
		return Date{}
	}
	return Of(t)
}

func (m Month) String() string { return string(m) }
