package views

import (
	"fmt"
	"strings"

	"monnet/internal/output"
	"monnet/internal/snapshot"
	"monnet/ui/tui/state"
	"monnet/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

type OverviewView struct{}

func renderSection(sec *output.Section) string {
	var b strings.Builder
	for _, item := range sec.Items {
		var valStr string
		switch {
		case item.Unit != "":
			valStr = fmt.Sprintf("%.1f%s", item.Value, item.Unit)
		case item.Note != "":
			valStr = item.Note
		default:
			valStr = fmt.Sprintf("%.2f", item.Value)
		}
		if item.Status != "" {
			valStr = ColorForStatus(item.Status).Render(fmt.Sprintf("%s [%s]", valStr, item.Status))
		}
		fmt.Fprintf(&b, "%-18s : %s\n", item.Label, valStr)
	}
	return b.String()
}

func card(id string, sec *output.Section, extra ...string) string {
	if sec == nil {
		return ""
	}
	title := sec.Title
	if sec.Changed {
		title += " •"
	}
	parts := append([]string{
		lipgloss.NewStyle().Bold(true).Render(title),
		renderSection(sec),
	}, extra...)
	return zone.Mark(id, styles.CardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
}

func (v OverviewView) Render(s state.AppState, props ViewProps) string {
	if s.Err != nil && s.LastUpdate.IsZero() {
		return fmt.Sprintf("Error: %v", s.Err)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Left,
		props.SpinnerView,
		styles.TitleStyle.Render("monnet watch"),
		fmt.Sprintf(" Last Update: %s", s.LastUpdate.Format("15:04:05")),
	)

	view := s.View
	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		card("load_box", view.SectionByID(snapshot.FamilyLoadAvg), props.CPUChart),
		card("iowait_box", view.SectionByID(snapshot.FamilyIoWait), props.IoWaitChart),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		card("memory_box", view.SectionByID(snapshot.FamilyMemory)),
		card("disk_box", view.SectionByID(snapshot.FamilyDisk)),
	)

	var others []string
	for i := range view.Sections {
		sec := &view.Sections[i]
		if !sec.ID.IsKnown() {
			others = append(others, card("family_"+string(sec.ID), sec))
		}
	}

	summary := fmt.Sprintf("Ports: %d • Armed: %d • Events this cycle: %d", view.PortCount, len(view.Armed), len(view.Events))
	if s.Err != nil {
		summary += " • " + ColorForStatus("alert").Render(s.Err.Error())
	}

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left,
		header,
		row1,
		row2,
		lipgloss.JoinHorizontal(lipgloss.Top, others...),
		lipgloss.NewStyle().PaddingLeft(2).Render(summary),
		lipgloss.NewStyle().Foreground(styles.Subtle).Render("\nPress 'b' to go back • 'q' to quit"),
	))
}
