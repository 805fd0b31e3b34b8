package tui

import "github.com/charmbracelet/lipgloss"

// Theme keeps all console styling in one place.
type Theme struct {
	OK      lipgloss.Style
	Pending lipgloss.Style
	Failed  lipgloss.Style

	Border lipgloss.Style
	Title  lipgloss.Style
	Prompt lipgloss.Style
	Echo   lipgloss.Style
	Dim    lipgloss.Style
	Accent lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Pending: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Prompt: lipgloss.NewStyle().Foreground(purple).Bold(true),
		Echo:   lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Accent: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		TickerActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

// outcomeStyle picks the colour for an outcome name.
func (t Theme) outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "success":
		return t.OK
	case "fail":
		return t.Failed
	case "continue":
		return t.Pending
	default:
		return t.Dim
	}
}
