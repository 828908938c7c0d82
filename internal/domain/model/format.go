package model

import "fmt"

// Milliseconds per clock unit.
const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
)

// FormatScore renders a raw score for display. Speedrun categories treat
// the value as elapsed milliseconds; everything else renders a signed
// delta. A nil score renders as an em dash.
func FormatScore(value *int64, speedrun bool) string {
	if value == nil {
		return "—"
	}
	if speedrun {
		return formatClock(*value)
	}
	return formatDelta(*value)
}

// formatClock renders milliseconds as a clock time, suppressing empty
// higher units: "1:02:03.450", "2:03.450" or "3.450".
func formatClock(ms int64) string {
	hours := ms / msPerHour
	minutes := (ms % msPerHour) / msPerMinute
	seconds := float64(ms%msPerMinute) / msPerSecond

	switch {
	case hours != 0:
		return fmt.Sprintf("%d:%02d:%06.3f", hours, minutes, seconds)
	case minutes != 0:
		return fmt.Sprintf("%d:%06.3f", minutes, seconds)
	default:
		return fmt.Sprintf("%.3f", seconds)
	}
}

// formatDelta renders a score difference: "+3", "±0" or "-2".
func formatDelta(n int64) string {
	switch {
	case n > 0:
		return fmt.Sprintf("+%d", n)
	case n == 0:
		return "±0"
	default:
		return fmt.Sprintf("%d", n)
	}
}
