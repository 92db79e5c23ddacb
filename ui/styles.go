package ui

import "github.com/charmbracelet/lipgloss"

// Shared palette. Adaptive colors keep the transcript legible on light and
// dark terminals alike.
var (
	fuchsia     = lipgloss.Color("#EE6FF8")
	yellowGreen = lipgloss.Color("#ECFD65")
	cream       = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	mintGreen   = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen   = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	errorRed    = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	normalFg = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#DDDDDD"}
	dimFg    = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}

	logoStyle = lipgloss.NewStyle().
			Foreground(yellowGreen).
			Background(fuchsia).
			Bold(true).
			Padding(0, 1).
			Render

	// Transcript styles. The active word inverts onto the accent color,
	// the rest of the active sentence brightens, and everything else
	// stays dim so the eye lands where the narration is.
	activeWordStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true)

	activeSentenceStyle = lipgloss.NewStyle().
				Foreground(normalFg)

	transcriptStyle = lipgloss.NewStyle().
			Foreground(dimFg)

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Foreground(lipgloss.AdaptiveColor{Light: "#B6B6B6", Dark: "#5A5A5A"}).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarMessageTransportStyle = lipgloss.NewStyle().
					Foreground(mintGreen).
					Background(darkGreen).
					Render

	statusBarMessageHelpStyle = lipgloss.NewStyle().
					Padding(0, 1).
					Foreground(lipgloss.Color("#B6FFE4")).
					Background(darkGreen).
					Render

	statusBarTransportStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Padding(1, 2).
			Render

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(errorRed).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().
			Foreground(dimFg)

	pickerCursorStyle = lipgloss.NewStyle().
				Foreground(fuchsia)

	pickerItemStyle = lipgloss.NewStyle().
			Foreground(normalFg)

	pickerMetaStyle = lipgloss.NewStyle().
			Foreground(dimFg)
)

func logoView() string {
	return logoStyle(" ReadAlong ")
}
