// Package stats turns raw race rows into the display values served by the
// API: lap time strings, gaps, standings and championship outlooks.
package stats

import "fmt"

// FormatLapTime renders milliseconds as M:SS.mmm. Non-positive inputs render
// as the empty string.
func FormatLapTime(ms int64) string {
	if ms <= 0 {
		return ""
	}
	minutes := ms / 60000
	rest := float64(ms%60000) / 1000
	return fmt.Sprintf("%d:%06.3f", minutes, rest)
}

// FormatGap renders the gap to the winner in seconds. The classified winner
// reads "Winner".
func FormatGap(position int, timeMs, winnerMs int64) string {
	if position == 1 {
		return "Winner"
	}
	return fmt.Sprintf("+%.3f", float64(timeMs-winnerMs)/1000)
}

// FormatPenalty renders a time penalty in whole seconds, or "None".
func FormatPenalty(secs int) string {
	if secs == 0 {
		return "None"
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatFastestLap renders a fastest lap as seconds with millisecond
// precision, or "N/A" when no lap was set.
func FormatFastestLap(ms int64) string {
	if ms <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}
