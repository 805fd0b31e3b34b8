package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// status is the summary shown in the header.
type status struct {
	Started     time.Time
	Pending     int
	LastOutcome string
	LastCommand string
}

func renderHeader(s status, activity Activity, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	clock := theme.Dim.Render(now.Format("15:04:05"))
	title := " CMDGATE CONSOLE"
	pad := max(innerWidth-lipgloss.Width(title)-lipgloss.Width(clock)-4, 1)
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	last := theme.Dim.Render("none yet")
	if s.LastOutcome != "" {
		last = fmt.Sprintf("%s %s", s.LastCommand, theme.outcomeStyle(s.LastOutcome).Render(s.LastOutcome))
	}
	pending := theme.Dim.Render("0")
	if s.Pending > 0 {
		pending = theme.Pending.Render(fmt.Sprint(s.Pending))
	}
	statsLine := fmt.Sprintf(" Up %s  Pending: %s  Last: %s  %s",
		formatDuration(now.Sub(s.Started)),
		pending,
		last,
		activity.Render(theme),
	)

	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
