package formatter

import "github.com/charmbracelet/lipgloss"

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorDim    = lipgloss.Color("#928374")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Bold(true)
)

// LoadStyle colours a week load: red when overbooked, dim on vacation,
// yellow when unplanned.
func LoadStyle(hours int, overbooked, onVacation bool) lipgloss.Style {
	switch {
	case overbooked:
		return StyleRed
	case onVacation:
		return StyleDim
	case hours == 0:
		return StyleYellow
	default:
		return StyleGreen
	}
}

// ProfitStyle colours a profit figure by sign.
func ProfitStyle(v int64) lipgloss.Style {
	if v < 0 {
		return StyleRed
	}
	return StyleGreen
}
