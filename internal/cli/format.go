package cli

import (
	"fmt"
	"math"
	"time"

	"github.com/fpang/hoopcoach/internal/stage"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatTimestamp renders an insight offset in seconds as M:SS. Minutes
// are not wrapped into hours.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatProgress renders a progress value as a rounded percentage.
func FormatProgress(progress float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(stage.Clamp(progress))))
}
