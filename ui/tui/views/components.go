package views

import (
	"monnet/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func ColorForStatus(status string) lipgloss.Style {
	sStyle := styles.StatusStyle
	switch status {
	case "warn":
		return sStyle.Foreground(styles.WarnColor)
	case "alert":
		return sStyle.Foreground(styles.AlertColor)
	}
	return sStyle.Foreground(styles.OKColor)
}

func pageHeader(title string, width int) string {
	return MenuHeaderStyle.Width(width).Render(title)
}

func backHint() string {
	return lipgloss.NewStyle().Padding(1, 2).Foreground(styles.Subtle).Render("Press 'b' to go back")
}

// clip returns the window of lines starting at scrollY that fits height.
func clip(lines []string, scrollY, height int) ([]string, int) {
	if height < 1 {
		height = 1
	}
	scrollY = max(0, min(scrollY, len(lines)-height))
	end := min(len(lines), scrollY+height)
	return lines[scrollY:end], scrollY
}
