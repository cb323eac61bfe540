package ledger

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// ParseDay parses a calendar date (YYYY-MM-DD or RFC3339) into UTC midnight.
// An empty input yields the zero time.
func ParseDay(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}
	if tm, err := time.Parse(dayLayout, input); err == nil {
		return tm, nil
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDay, input)
	}
	return TruncateDay(tm), nil
}

// FormatDay renders a day as YYYY-MM-DD, or "" for the zero time.
func FormatDay(day time.Time) string {
	if day.IsZero() {
		return ""
	}
	return day.UTC().Format(dayLayout)
}

// TruncateDay drops the time-of-day component in UTC.
func TruncateDay(tm time.Time) time.Time {
	y, m, d := tm.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
