package console

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"monnet/internal/output"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

const labelWidth = 22

// Print renders the dashboard view to the writer in a compact format.
func Print(w io.Writer, view output.DashboardView) {
	fmt.Fprintf(w, "%s■ MONNET REPORT%s  %s\n", colorCyan, colorReset, view.CollectedAt.Format("2006-01-02 15:04:05"))

	for _, sec := range view.Sections {
		changed := ""
		if sec.Changed {
			changed = " *"
		}
		fmt.Fprintf(w, "%s─ %s%s%s\n", colorCyan, sec.Title, changed, colorReset)

		for _, it := range sec.Items {
			label := truncate(it.Label, 20)

			valStr := ""
			switch {
			case it.Unit != "":
				valStr = fmt.Sprintf("%.1f%s", it.Value, it.Unit)
			case it.Note != "":
				valStr = truncate(it.Note, 25)
			default:
				valStr = fmt.Sprintf("%.2f", it.Value)
			}

			dots := strings.Repeat("·", max(1, labelWidth-utf8.RuneCountInString(label)))
			fmt.Fprintf(w, "  %s%s %10s%s\n", label, colorCyan+dots+colorReset, valStr, marker(it.Status))
			if it.Unit != "" && it.Note != "" {
				fmt.Fprintf(w, "    %s\n", it.Note)
			}
		}
	}

	if len(view.Events) > 0 {
		fmt.Fprintf(w, "%s─ Events%s\n", colorCyan, colorReset)
		for _, ev := range view.Events {
			sev := ev.Severity.String()
			fmt.Fprintf(w, "  %s%-5s%s %s %.1f\n", colorFor(sev), sev, colorReset, ev.Identity, ev.Value)
		}
	}

	fmt.Fprintf(w, "%s─ Summary%s: RAM: %dMB | Ports: %d | Armed: %d\n\n", colorCyan, colorReset, view.TotalRAMMB, view.PortCount, len(view.Armed))
}

func marker(status string) string {
	switch status {
	case "":
		return ""
	case "warn":
		return fmt.Sprintf(" %s!%s", colorYellow, colorReset)
	case "alert":
		return fmt.Sprintf(" %sX%s", colorRed, colorReset)
	default:
		return fmt.Sprintf(" %s✓%s", colorGreen, colorReset)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func colorFor(status string) string {
	switch status {
	case "warn":
		return colorYellow
	case "alert":
		return colorRed
	default:
		return colorGreen
	}
}
