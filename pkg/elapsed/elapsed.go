// Package elapsed renders durations for the dashboard's display fields.
package elapsed

import (
	"fmt"
	"time"
)

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Ago describes how long before now t happened: minutes under an hour,
// hours under a day, days beyond that. Future times read as "0 min ago".
func Ago(now, t time.Time) string {
	minutes := int(now.Sub(t).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	switch {
	case minutes < 60:
		return fmt.Sprintf("%d min ago", minutes)
	case minutes < 24*60:
		return plural(minutes/60, "hour") + " ago"
	default:
		return plural(minutes/(24*60), "day") + " ago"
	}
}

// Span is the coarse age of t: whole hours under a day, whole days beyond.
func Span(now, t time.Time) string {
	hours := int(now.Sub(t).Hours())
	if hours < 0 {
		hours = 0
	}
	if hours < 24 {
		return plural(hours, "hour")
	}
	return plural(hours/24, "day")
}

// Minutes formats a minute count as "1h 30min".
func Minutes(m int) string {
	return fmt.Sprintf("%dh %dmin", m/60, m%60)
}
