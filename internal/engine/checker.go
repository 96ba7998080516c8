package engine

import (
	"fmt"
	"math"

	"monnet/internal/snapshot"
)

// Severity tiers, ordered by urgency.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarn
	SeverityAlert
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityAlert:
		return "alert"
	default:
		return "normal"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event names reported to the collector.
const (
	EventHighIoWait      = "high_iowait"
	EventHighCPUUsage    = "high_cpu_usage"
	EventHighMemoryUsage = "high_memory_usage"
	EventHighDiskUsage   = "high_disk_usage"
)

// Deduplication identities. Disk identities carry the device as a suffix.
const (
	IdentityIoWait   = "high_io_delay"
	IdentityCPU      = "high_cpu_usage"
	IdentityMemory   = "high_memory_usage"
	identityDiskBase = "high_disk_usage_"
)

// DiskIdentity is the identity of the disk usage event for device.
func DiskIdentity(device string) string {
	return identityDiskBase + device
}

// Evaluate maps value onto a severity tier. Both cutoffs are inclusive lower
// bounds. Negative or non-finite readings are Normal.
func Evaluate(value float64, rule Rule) Severity {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return SeverityNormal
	}
	if value >= rule.Alert {
		return SeverityAlert
	}
	if value >= rule.Warn {
		return SeverityWarn
	}
	return SeverityNormal
}

// Indicator is one numeric reading that is subject to a threshold rule.
type Indicator struct {
	Name     string
	Identity string
	Label    string
	Value    float64
	Rule     Rule
	Payload  any
}

// Indicators lists the threshold-bearing readings inside s. Per-resource
// families yield one indicator per entry.
func (r Rules) Indicators(s snapshot.Snapshot) []Indicator {
	switch v := s.(type) {
	case snapshot.IoWait:
		return []Indicator{{
			Name:     EventHighIoWait,
			Identity: IdentityIoWait,
			Label:    "I/O Wait",
			Value:    v.Value,
			Rule:     r.IoWait,
			Payload:  v,
		}}
	case snapshot.LoadAverage:
		return []Indicator{{
			Name:     EventHighCPUUsage,
			Identity: IdentityCPU,
			Label:    "CPU Usage",
			Value:    v.CPUUsagePercent,
			Rule:     r.CPU,
			Payload:  v,
		}}
	case snapshot.MemoryInfo:
		return []Indicator{{
			Name:     EventHighMemoryUsage,
			Identity: IdentityMemory,
			Label:    "Memory Usage",
			Value:    v.UsedPercent,
			Rule:     r.Memory,
			Payload:  v,
		}}
	case snapshot.DiskInfo:
		out := make([]Indicator, 0, len(v.Entries))
		for _, e := range v.Entries {
			out = append(out, Indicator{
				Name:     EventHighDiskUsage,
				Identity: DiskIdentity(e.Device),
				Label:    fmt.Sprintf("Disk %s Usage", e.Mountpoint),
				Value:    e.UsedPercent,
				Rule:     r.Disk,
				Payload:  e,
			})
		}
		return out
	default:
		// Listening ports and unmodelled families carry no numeric reading.
		return nil
	}
}

// CheckResult is the evaluated state of a single indicator.
type CheckResult struct {
	Name     string
	Identity string
	Value    float64
	Severity Severity
}

// Check evaluates every indicator in s without touching deduplication state.
func (r Rules) Check(s snapshot.Snapshot) []CheckResult {
	var result []CheckResult
	for _, ind := range r.Indicators(s) {
		result = append(result, CheckResult{
			Name:     ind.Label,
			Identity: ind.Identity,
			Value:    ind.Value,
			Severity: Evaluate(ind.Value, ind.Rule),
		})
	}
	return result
}
