package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/incision/internal/timeline"
)

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF0000")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
	ColorBlack   = lipgloss.Color("#000000")
)

// Waveform ramp, quiet to loud.
var WaveRamp = []lipgloss.Color{
	lipgloss.Color("#1F4E5F"),
	lipgloss.Color("#2A7F8F"),
	lipgloss.Color("#3FB8AF"),
	lipgloss.Color("#7FE3C8"),
	lipgloss.Color("#D6FFF0"),
}

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PlayingDotStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	PlayheadStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)
)

// StatusColor is the accent of a token status.
func StatusColor(s timeline.Status) lipgloss.Color {
	switch s {
	case timeline.StatusClean:
		return ColorGreen
	case timeline.StatusWarn:
		return ColorYellow
	case timeline.StatusGhost:
		return ColorRed
	case timeline.StatusFixed:
		return ColorCyan
	}
	return ColorGray
}

// StatusLabelStyle colours a status name.
func StatusLabelStyle(s timeline.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(StatusColor(s)).Bold(true)
}

// ChipStyle styles a word chip.
func ChipStyle(s timeline.Status, selected bool) lipgloss.Style {
	st := lipgloss.NewStyle().Padding(0, 1).Foreground(StatusColor(s))
	if selected {
		st = st.Reverse(true).Bold(true)
	}
	if s == timeline.StatusGhost {
		st = st.Strikethrough(!selected)
	}
	return st
}
