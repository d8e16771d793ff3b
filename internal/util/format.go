package util

import (
	"fmt"
	"time"
)

// FormatSeconds formats a duration in seconds for humans.
// Examples: 45 -> "45s", 600 -> "10m", 3900 -> "1h 05m"
func FormatSeconds(s int64) string {
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	m := s / 60
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

// FormatChange formats a signed percentage.
// Examples: 12 -> "+12%", -5 -> "-5%", 0 -> "0%"
func FormatChange(pct int64) string {
	if pct > 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}

// FormatMillis formats a Unix millisecond timestamp as "2006-01-02 15:04" in loc.
// Zero renders as "never".
func FormatMillis(ms int64, loc *time.Location) string {
	if ms == 0 {
		return "never"
	}
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format("2006-01-02 15:04")
}

// DayBounds returns the [start, end) range of a calendar date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return day, day.AddDate(0, 0, 1), nil
}
