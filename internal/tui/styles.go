package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGold    = lipgloss.Color("#F5A623")
	colorHoney   = lipgloss.Color("#FFD700")
	colorDimGray = lipgloss.Color("#555555")
	colorGreen   = lipgloss.Color("#50C878")
	colorRed     = lipgloss.Color("#FF6B6B")
	colorCyan    = lipgloss.Color("#88C0D0")
	colorWhite   = lipgloss.Color("#E6E6E6")
	colorSubtle  = lipgloss.Color("#888888")
	colorAmber   = lipgloss.Color("#E8912D")
)

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGold).
			Padding(0, 1)

	statusBar = lipgloss.NewStyle().
			Foreground(colorHoney).
			Bold(true).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorGold).
			Bold(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)

	thoughtStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	toolCallStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	observationStyle = lipgloss.NewStyle().
				Foreground(colorDimGray)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorAmber)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	statusIcons = map[string]string{
		"running":  "🔄",
		"answered": "✅",
		"timeout":  "⏱",
		"failed":   "❌",
	}
)

func statusIcon(status string) string {
	if icon, ok := statusIcons[status]; ok {
		return icon
	}
	return "❓"
}
