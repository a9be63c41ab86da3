package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/autopilot/internal/confirm"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	enabledStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	okStyle      = lipgloss.NewStyle().Foreground(successColor)
	accentStyle  = lipgloss.NewStyle().Foreground(cyanColor)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(12)

	focusedLabelStyle = labelStyle.Copy().
				Foreground(secondaryColor).
				Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))
)

func severityColor(s confirm.Severity) lipgloss.Color {
	switch s {
	case confirm.SeverityDanger:
		return errorColor
	case confirm.SeverityWarning:
		return warningColor
	default:
		return secondaryColor
	}
}

func authorStyle(author string) lipgloss.Style {
	switch author {
	case "trigger":
		return lipgloss.NewStyle().Foreground(warningColor)
	case "agent":
		return lipgloss.NewStyle().Foreground(cyanColor)
	case "skill":
		return lipgloss.NewStyle().Foreground(secondaryColor)
	case "system":
		return lipgloss.NewStyle().Foreground(mutedColor)
	default:
		return lipgloss.NewStyle()
	}
}
