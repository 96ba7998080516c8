package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"monnet/internal/engine"
	"monnet/internal/output"
)

func TestColorFor(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"warn", colorYellow},
		{"alert", colorRed},
		{"normal", colorGreen},
		{"", colorGreen},
		{"UNKNOWN", colorGreen},
	}

	for _, tt := range tests {
		result := colorFor(tt.status)
		if result != tt.expected {
			t.Errorf("colorFor(%q) = %q; want %q", tt.status, result, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 20, "short"},
		{"Disk /var/lib/docker Usage", 20, "Disk /var/lib/doc..."},
		{"ünïcödé-label-long", 10, "ünïcödé..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q; want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestPrint(t *testing.T) {
	view := output.DashboardView{
		Sections: []output.Section{
			{
				Title:   "Disks",
				Changed: true,
				Items: []output.Item{
					{Label: "Disk / Usage", Value: 10, Unit: "%", Status: "normal"},
					{Label: "Disk /home Usage", Value: 85, Unit: "%", Status: "warn"},
					{Label: "Disk /var Usage", Value: 95, Unit: "%", Status: "alert"},
					{Label: "/dev/sda1", Value: 5000, Unit: "MB", Note: "/ ext4, 4500 MB free"},
					{Label: "A label that is far too long to fit", Note: "Info only"},
					{Label: "Load Avg (1m)", Value: 0.42},
				},
			},
		},
		Events: []engine.Event{
			{Name: engine.EventHighDiskUsage, Identity: "high_disk_usage_/dev/sdc1", Severity: engine.SeverityAlert, Value: 95},
		},
		PortCount:   3,
		TotalRAMMB:  16000,
		CollectedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	var buf bytes.Buffer
	Print(&buf, view)
	out := buf.String()

	for _, want := range []string{
		"MONNET REPORT", "2026-01-02 03:04:05",
		"Disks *",
		"85.0%", "95.0%", "0.42",
		"/ ext4, 4500 MB free",
		"A label that is f...",
		"high_disk_usage_/dev/sdc1",
		"RAM: 16000MB | Ports: 3 | Armed: 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, colorRed+"X") || !strings.Contains(out, colorYellow+"!") {
		t.Error("expected warn and alert markers")
	}
}
