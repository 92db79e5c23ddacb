package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lessoncast/readalong/playback"
)

// formatClock renders a millisecond position the way media players do,
// m:ss under an hour and h:mm:ss from there up.
func formatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatRate renders a playback rate without trailing zeros, "1x" or
// "1.5x" rather than "1.00x".
func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64) + "x"
}

// transportStatus builds the playback segment of the status bar.
func transportStatus(playing bool, positionMs, durationMs int64, rate float64, status playback.Status) string {
	symbol := "⏸"
	if playing {
		symbol = "▶"
	}
	parts := []string{
		symbol + " " + formatClock(positionMs) + "/" + formatClock(durationMs),
		formatRate(rate),
		status.String(),
	}
	return strings.Join(parts, " │ ")
}
