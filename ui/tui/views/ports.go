package views

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"monnet/internal/snapshot"
	"monnet/ui/tui/state"
	"monnet/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

// PortsView shows listening sockets grouped by ip version and interface.
type PortsView struct{}

func (v PortsView) Render(s state.AppState, props ViewProps) string {
	header := pageHeader("Listen Ports", props.Width)
	groups := s.View.Ports

	var lines []string
	for _, ver := range slices.Sorted(maps.Keys(groups)) {
		lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(BrandColor).Render(string(ver)))
		ifaces := groups[ver]
		for _, iface := range slices.Sorted(maps.Keys(ifaces)) {
			lines = append(lines, "  "+iface)
			keys := slices.SortedFunc(maps.Keys(ifaces[iface]), func(a, b snapshot.PortKey) int {
				return cmp.Or(cmp.Compare(a.Port, b.Port), cmp.Compare(a.Protocol, b.Protocol))
			})
			for _, k := range keys {
				e := ifaces[iface][k]
				lines = append(lines, fmt.Sprintf("    %5d/%-3s %s", k.Port, k.Protocol, e.Service))
			}
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No listening sockets observed.")
	}

	visible, _ := clip(lines, props.ScrollY, props.Height-lipgloss.Height(header)-6)
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, visible...)),
		lipgloss.NewStyle().PaddingLeft(2).Foreground(styles.Subtle).Render(fmt.Sprintf("%d sockets", groups.Len())),
		backHint(),
	)
}
