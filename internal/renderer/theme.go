package renderer

import "github.com/charmbracelet/lipgloss"

// Session colors.
var (
	ColorQuickTask    = lipgloss.Color("#3b82f6")
	ColorActive       = lipgloss.Color("#22c55e")
	ColorPostChoice   = lipgloss.Color("#d97706")
	ColorIntervention = lipgloss.Color("#a855f7")
)

// UI chrome colors.
var (
	ColorBorder = lipgloss.Color("#4b5563")
	ColorDimmed = lipgloss.Color("#6b7280")
	ColorBright = lipgloss.Color("#f9fafb")
	ColorDanger = lipgloss.Color("#dc2626")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDimmed)
	errorStyle = lipgloss.NewStyle().Foreground(ColorDanger)
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)
)

func kindColor(k string) lipgloss.Color {
	switch k {
	case "QUICK_TASK":
		return ColorQuickTask
	case "QUICK_TASK_ACTIVE":
		return ColorActive
	case "POST_CHOICE":
		return ColorPostChoice
	case "INTERVENTION":
		return ColorIntervention
	default:
		return ColorBorder
	}
}
