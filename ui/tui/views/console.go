package views

import (
	"fmt"
	"strings"

	"monnet/ui/tui/state"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleView is the scrolling log of cycle summaries.
type ConsoleView struct{}

func (v ConsoleView) Render(s state.AppState, props ViewProps) string {
	header := pageHeader("Live Console View", props.Width)

	availableHeight := props.Height - lipgloss.Height(header) - 4
	visible, scrollY := clip(s.ConsoleLogs, props.ScrollY, availableHeight)

	box := lipgloss.NewStyle().
		Width(max(10, props.Width-4)).
		Height(max(1, availableHeight)).
		Padding(0, 1).
		Render(strings.Join(visible, "\n"))

	footerText := fmt.Sprintf("Scroll: %d/%d • Press 'b' to go back", scrollY, len(s.ConsoleLogs))
	if len(s.ConsoleLogs) > availableHeight {
		footerText += " • Use ↑/↓ to scroll"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Padding(1, 2).Render(box),
		lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#555")).Render(footerText),
	)
}
