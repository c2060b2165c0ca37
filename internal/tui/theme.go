// Package tui holds the terminal styles shared by the wirehttp commands.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	SkyBlue      = lipgloss.Color("#87CEEB")
	DeepSkyBlue  = lipgloss.Color("#00BFFF")
	LightSkyBlue = lipgloss.Color("#B0E0E6")
	DarkSkyBlue  = lipgloss.Color("#4A90D9")

	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#B0B0B0")

	Success = lipgloss.Color("#00FF88")
	Warning = lipgloss.Color("#FFD700")
	Error   = lipgloss.Color("#FF6B6B")

	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(DarkSkyBlue).
			Bold(true).
			Padding(0, 2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightSkyBlue).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(LightSkyBlue)

	ValueStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(SkyBlue)

	DimStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	HeaderNameStyle = lipgloss.NewStyle().
			Foreground(DeepSkyBlue)
)

const (
	ArrowRight = "→"
	CheckMark  = "✓"
	CrossMark  = "✗"
	Crosshair  = "⌖"
)

// MiniLogo returns the one-line logo.
func MiniLogo() string {
	return SubtitleStyle.Render(Crosshair + " wirehttp")
}

// Divider returns a horizontal divider
func Divider(width int) string {
	return DimStyle.Render(strings.Repeat("─", width))
}

// StatusStyle picks the style for an HTTP status code by class.
func StatusStyle(code int) lipgloss.Style {
	switch {
	case code >= 500:
		return ErrorStyle
	case code >= 400:
		return WarningStyle
	case code >= 300:
		return InfoStyle
	default:
		return SuccessStyle
	}
}

// KeyValue renders an aligned "label: value" row.
func KeyValue(label, value string, width int) string {
	return "  " + LabelStyle.Width(width).Render(label+":") + " " + ValueStyle.Render(value)
}
