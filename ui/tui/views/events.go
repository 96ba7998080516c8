package views

import (
	"fmt"

	"monnet/ui/tui/state"

	"github.com/charmbracelet/lipgloss"
)

// EventsView lists fired events, newest first.
type EventsView struct{}

func (v EventsView) Render(s state.AppState, props ViewProps) string {
	header := pageHeader("Fired Events", props.Width)

	lines := make([]string, 0, len(s.EventLog))
	for i := len(s.EventLog) - 1; i >= 0; i-- {
		ev := s.EventLog[i]
		sev := ev.Severity.String()
		lines = append(lines, fmt.Sprintf("%s  %s  %-32s %6.1f",
			ev.FiredAt.Format("15:04:05"),
			ColorForStatus(sev).Render(fmt.Sprintf("%-5s", sev)),
			ev.Identity,
			ev.Value,
		))
	}
	if len(lines) == 0 {
		lines = append(lines, "No events fired yet.")
	}

	visible, _ := clip(lines, props.ScrollY, props.Height-lipgloss.Height(header)-6)
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, visible...)),
		backHint(),
	)
}
