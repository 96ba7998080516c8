package views

import (
	"fmt"

	"monnet/ui/tui/state"

	"github.com/charmbracelet/lipgloss"
)

// ArmedView lists identities that are suppressing repeats.
type ArmedView struct{}

func (v ArmedView) Render(s state.AppState, props ViewProps) string {
	header := pageHeader("Armed Event Identities", props.Width)

	lines := []string{"No identity is armed."}
	if len(s.View.Armed) > 0 {
		lines = lines[:0]
		for _, r := range s.View.Armed {
			lines = append(lines, fmt.Sprintf("%-36s last fired %s", r.Identity, r.LastFiredAt.Format("2006-01-02 15:04:05")))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...)),
		backHint(),
	)
}
