package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	Cyan     = lipgloss.Color("#00FFFF")
	Green    = lipgloss.Color("#00FF00")
	Yellow   = lipgloss.Color("#FFD700")
	Orange   = lipgloss.Color("#FFA500")
	Red      = lipgloss.Color("#FF6B6B")
	Magenta  = lipgloss.Color("#FF00FF")
	SkyBlue  = lipgloss.Color("#87CEEB")
	Dim      = lipgloss.Color("#555555")
	White    = lipgloss.Color("#FFFFFF")
	DarkGray = lipgloss.Color("#333333")

	// Box styles
	ActiveBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Orange)

	InactiveBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Dim)

	FailedBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Red)

	LaneBox = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Cyan)

	// Text styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	PromptStyle = lipgloss.NewStyle().
			Foreground(SkyBlue).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Dim)

	// Status indicators
	StatusOK   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	StatusWarn = lipgloss.NewStyle().Foreground(Orange).Bold(true)
	StatusCrit = lipgloss.NewStyle().Foreground(Red).Bold(true)

	StatusBar = lipgloss.NewStyle().
			Foreground(White).
			Background(DarkGray).
			Padding(0, 1)
)

// ModelColor picks a color from the provider a model id belongs to
func ModelColor(modelID string) lipgloss.Color {
	switch {
	case strings.HasPrefix(modelID, "claude"):
		return Cyan
	case strings.HasPrefix(modelID, "gpt"), strings.HasPrefix(modelID, "o1"), strings.HasPrefix(modelID, "o3"):
		return Green
	case strings.HasPrefix(modelID, "gemini"):
		return Magenta
	case strings.HasPrefix(modelID, "grok"):
		return Orange
	case strings.HasPrefix(modelID, "echo"):
		return Yellow
	default:
		return White
	}
}

// ModelStyle returns the header style for a model id
func ModelStyle(modelID string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ModelColor(modelID)).Bold(true)
}
