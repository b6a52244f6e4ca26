package util

import (
	"fmt"
	"time"
)

// FormatDuration renders a track length as m:ss, or h:mm:ss from one hour up.
// Negative durations render as 0:00.
//
//	FormatDuration(3*time.Minute + 7*time.Second) // "3:07"
//	FormatDuration(90 * time.Minute)              // "1:30:00"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ProgressBar draws a fixed-width bar for elapsed out of total.
func ProgressBar(elapsed, total time.Duration, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = int(float64(width) * float64(min(max(elapsed, 0), total)) / float64(total))
	}
	bar := make([]rune, width)
	for i := range bar {
		switch {
		case i < filled:
			bar[i] = '━'
		case i == filled:
			bar[i] = '●'
		default:
			bar[i] = '─'
		}
	}
	return string(bar)
}
