package engine

import (
	"math"
	"testing"

	"monnet/internal/snapshot"
)

func TestEvaluate(t *testing.T) {
	rule := Rule{Warn: 80, Alert: 90}

	tests := []struct {
		name     string
		value    float64
		expected Severity
	}{
		{"below warn", 79.999, SeverityNormal},
		{"exactly warn", 80.0, SeverityWarn},
		{"between", 85.5, SeverityWarn},
		{"exactly alert", 90.0, SeverityAlert},
		{"above alert", 99.9, SeverityAlert},
		{"zero", 0, SeverityNormal},
		{"negative", -5, SeverityNormal},
		{"nan", math.NaN(), SeverityNormal},
		{"positive infinity", math.Inf(1), SeverityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.value, rule); got != tt.expected {
				t.Errorf("Evaluate(%v) = %s; want %s", tt.value, got, tt.expected)
			}
		})
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev      Severity
		expected string
	}{
		{SeverityNormal, "normal"},
		{SeverityWarn, "warn"},
		{SeverityAlert, "alert"},
		{Severity(42), "normal"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.expected {
			t.Errorf("Severity(%d).String() = %q; want %q", tt.sev, got, tt.expected)
		}
	}
}

func TestRulesValidate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}

	r := DefaultRules()
	r.Disk = Rule{Warn: 90, Alert: 90}
	if err := r.Validate(); err == nil {
		t.Error("expected error when alert does not exceed warn")
	}

	r = DefaultRules()
	r.IoWait = Rule{Warn: -1, Alert: 10}
	if err := r.Validate(); err == nil {
		t.Error("expected error for negative warn")
	}
}

func TestCheck(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name     string
		snap     snapshot.Snapshot
		expected map[string]Severity // Identity -> Expected Severity
	}{
		{
			name:     "iowait warn",
			snap:     snapshot.IoWait{Value: 81},
			expected: map[string]Severity{IdentityIoWait: SeverityWarn},
		},
		{
			name:     "cpu alert",
			snap:     snapshot.LoadAverage{OneMin: 4, CPUUsagePercent: 95},
			expected: map[string]Severity{IdentityCPU: SeverityAlert},
		},
		{
			name:     "memory normal",
			snap:     snapshot.MemoryInfo{TotalMB: 100, UsedMB: 10, UsedPercent: 10},
			expected: map[string]Severity{IdentityMemory: SeverityNormal},
		},
		{
			name: "per disk",
			snap: snapshot.DiskInfo{Entries: []snapshot.DiskEntry{
				{Device: "sda1", Mountpoint: "/", UsedPercent: 91},
				{Device: "sdb1", Mountpoint: "/data", UsedPercent: 50},
			}},
			expected: map[string]Severity{
				DiskIdentity("sda1"): SeverityAlert,
				DiskIdentity("sdb1"): SeverityNormal,
			},
		},
		{
			name:     "ports have no readings",
			snap:     snapshot.NewListenPorts(snapshot.PortEntry{Port: 22, Protocol: snapshot.ProtoTCP, IPVersion: snapshot.IPv4}),
			expected: map[string]Severity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := rules.Check(tt.snap)
			if len(results) != len(tt.expected) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.expected))
			}
			for _, r := range results {
				want, ok := tt.expected[r.Identity]
				if !ok {
					t.Errorf("unexpected identity %q", r.Identity)
					continue
				}
				if r.Severity != want {
					t.Errorf("%s: got %s, want %s", r.Identity, r.Severity, want)
				}
			}
		})
	}
}

func TestForFamily(t *testing.T) {
	rules := DefaultRules()
	rules.CPU = Rule{Warn: 50, Alert: 70}

	got, ok := rules.ForFamily(snapshot.FamilyLoadAvg)
	if !ok || got != rules.CPU {
		t.Errorf("ForFamily(load_avg) = %v, %v", got, ok)
	}
	if _, ok := rules.ForFamily(snapshot.FamilyListenPorts); ok {
		t.Error("listen ports should have no rule")
	}
}
