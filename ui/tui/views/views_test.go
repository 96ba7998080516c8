package views

import (
	"strings"
	"testing"
	"time"

	"monnet/internal/engine"
	"monnet/internal/output"
	"monnet/internal/snapshot"
	"monnet/ui/tui/state"
)

func TestClip(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		name      string
		scrollY   int
		height    int
		want      string
		wantShift int
	}{
		{"top", 0, 2, "ab", 0},
		{"middle", 2, 2, "cd", 2},
		{"past the end", 9, 2, "de", 3},
		{"taller than content", 1, 10, "abcde", 0},
		{"zero height", 0, 0, "a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, shift := clip(lines, tt.scrollY, tt.height)
			if strings.Join(got, "") != tt.want || shift != tt.wantShift {
				t.Errorf("clip(%d, %d) = %v, %d; want %s, %d", tt.scrollY, tt.height, got, shift, tt.want, tt.wantShift)
			}
		})
	}

	if got, _ := clip(nil, 3, 4); len(got) != 0 {
		t.Errorf("expected no lines, got %v", got)
	}
}

func TestPortsViewSortsEntries(t *testing.T) {
	ports := snapshot.NewListenPorts(
		snapshot.PortEntry{Interface: "0.0.0.0", Port: 443, Protocol: snapshot.ProtoTCP, IPVersion: snapshot.IPv4, Service: "nginx"},
		snapshot.PortEntry{Interface: "0.0.0.0", Port: 22, Protocol: snapshot.ProtoTCP, IPVersion: snapshot.IPv4, Service: "sshd"},
	)
	s := state.AppState{View: output.DashboardView{Ports: snapshot.GroupPorts(ports)}}

	out := PortsView{}.Render(s, ViewProps{Width: 80, Height: 40})
	ssh, https := strings.Index(out, "sshd"), strings.Index(out, "nginx")
	if ssh < 0 || https < 0 || ssh > https {
		t.Errorf("expected port 22 before 443, got:\n%s", out)
	}
	if !strings.Contains(out, "2 sockets") {
		t.Errorf("expected socket count, got:\n%s", out)
	}
}

func TestEventsViewNewestFirst(t *testing.T) {
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s := state.AppState{EventLog: []engine.Event{
		{Identity: "high_cpu_usage", Severity: engine.SeverityWarn, Value: 81, FiredAt: at},
		{Identity: "high_disk_usage_/dev/sda1", Severity: engine.SeverityAlert, Value: 97, FiredAt: at.Add(time.Minute)},
	}}

	out := EventsView{}.Render(s, ViewProps{Width: 100, Height: 40})
	if strings.Index(out, "high_disk_usage_/dev/sda1") > strings.Index(out, "high_cpu_usage") {
		t.Errorf("expected newest event first, got:\n%s", out)
	}
}

func TestEmptyPages(t *testing.T) {
	props := ViewProps{Width: 80, Height: 30}
	if out := (ArmedView{}).Render(state.AppState{}, props); !strings.Contains(out, "No identity is armed.") {
		t.Errorf("unexpected armed page:\n%s", out)
	}
	if out := (EventsView{}).Render(state.AppState{}, props); !strings.Contains(out, "No events fired yet.") {
		t.Errorf("unexpected events page:\n%s", out)
	}
}
