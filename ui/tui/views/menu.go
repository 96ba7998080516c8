package views

import (
	"fmt"
	"math"

	"monnet/ui/tui/state"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

// MenuOptions are the menu entries in page order.
var MenuOptions = []string{
	"Live Console Log",
	"System Overview",
	"Event Log",
	"Listen Ports",
	"Armed Event Identities",
}

type MenuView struct{}

func (v MenuView) Render(s state.AppState, props ViewProps) string {
	header := MenuHeaderStyle.Width(props.Width).Render("MONNET // HOST AGENT")

	var menuItems []string
	listStartY := 6

	for i, option := range MenuOptions {
		dist := math.Abs(float64(i) - props.AnimCursor)
		selectionStrength := 0.0
		if dist < 1.0 {
			selectionStrength = 1.0 - dist
		}

		// items are three rows tall
		itemCenterY := listStartY + (i * 3) + 1
		mouseDistY := math.Abs(float64(props.MouseY - itemCenterY))

		borderColor := BaseColor
		if mouseDistY < 10 {
			ratio := 1.0 - (mouseDistY / 10.0)
			if ratio > 0.5 {
				borderColor = lipgloss.Color("#aaa")
			}
		}

		if selectionStrength > 0.1 || i == props.MenuCursor {
			borderColor = BrandColor
		}

		popOut := int(selectionStrength * 2)

		boxStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1).
			MarginLeft(2 + popOut).
			Width(40)

		if i == props.MenuCursor {
			boxStyle = boxStyle.Bold(true).Foreground(lipgloss.Color("#FFF"))
		} else {
			boxStyle = boxStyle.Foreground(lipgloss.Color("#AAA"))
		}

		text := fmt.Sprintf("%02d. %s", i+1, option)
		renderedItem := boxStyle.Render(text)

		zoneID := fmt.Sprintf("menu_%d", i)
		menuItems = append(menuItems, zone.Mark(zoneID, renderedItem))
	}

	menuList := lipgloss.JoinVertical(lipgloss.Left, menuItems...)

	menuContent := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).PaddingLeft(2).Foreground(BrandColor).Render("LOCAL ENGINE"),
		CopyStyle.Render("Change detection and threshold events for this host."),
		menuList,
	)

	menuBox := MenuBoxStyle.Render(menuContent)

	status := "engine idle"
	if !s.LastUpdate.IsZero() {
		status = fmt.Sprintf("last cycle %s • %d armed", s.LastUpdate.Format("15:04:05"), len(s.View.Armed))
	}
	footer := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(lipgloss.Color("#666")).Render(status),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#333")).Render("\n[↑/↓] Navigate • [Enter] Select • [Q] Quit"),
	)

	footerStyled := lipgloss.NewStyle().PaddingLeft(2).Render(footer)

	body := lipgloss.JoinVertical(lipgloss.Left,
		menuBox,
		footerStyled,
	)

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

var (
	BrandColor = lipgloss.Color("#f27b24")
	BaseColor  = lipgloss.Color("#444")

	MenuHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(BrandColor).
			Align(lipgloss.Left).
			Padding(1, 2)

	MenuBoxStyle = lipgloss.NewStyle().
			Padding(1, 0).
			MarginTop(1)

	CopyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888")).
			Italic(true).
			MarginBottom(1).
			PaddingLeft(2)
)
