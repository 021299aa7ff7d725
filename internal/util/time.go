package util

import (
	"fmt"
	"time"
)

// humanTimeFormat is the layout for human-readable timestamps with timezone.
const humanTimeFormat = "2 Jan 2006 15:04 MST"

// FormatHumanTime converts an RFC3339 timestamp to human-readable local time format.
func FormatHumanTime(rfc3339 string) string {
	if rfc3339 == "" || rfc3339 == "unknown" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format(humanTimeFormat)
}

// FormatDuration renders a recording length. Short notes keep tenths of a
// second; longer ones are rounded. Examples: "4.2s", "2m 34s", "1h 23m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Truncate(100*time.Millisecond).Seconds())
	}
	totalSeconds := int64(d / time.Second)
	minutes := totalSeconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, totalSeconds%60)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FileTimestamp formats t for use in generated file names.
func FileTimestamp(t time.Time) string {
	return t.Format("2006-01-02-15-04-05")
}
