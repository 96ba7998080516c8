// Package snapshot defines the metric families the agent monitors and the
// immutable readings taken from them.
package snapshot

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Family names a category of metric.
type Family string

const (
	FamilyLoadAvg     Family = "load_avg"
	FamilyMemory      Family = "memory_info"
	FamilyDisk        Family = "disk_info"
	FamilyIoWait      Family = "iowait"
	FamilyListenPorts Family = "listen_ports"
)

// Known lists the built-in families in processing order.
var Known = []Family{FamilyLoadAvg, FamilyMemory, FamilyDisk, FamilyIoWait, FamilyListenPorts}

// IsKnown reports whether f is one of the built-in families.
func (f Family) IsKnown() bool {
	return slices.Contains(Known, f)
}

// StoreKey is the datastore key the family is persisted under.
func (f Family) StoreKey() string {
	switch f {
	case FamilyLoadAvg:
		return "last_load_avg"
	case FamilyMemory:
		return "last_memory_info"
	case FamilyDisk:
		return "last_disk_info"
	case FamilyIoWait:
		return "last_iowait"
	case FamilyListenPorts:
		return "last_listen_ports_info"
	default:
		return "last_" + string(f)
	}
}

// WireKey is the key the family's reading travels under in server payloads.
func (f Family) WireKey() string {
	switch f {
	case FamilyLoadAvg:
		return "loadavg"
	case FamilyMemory:
		return "meminfo"
	case FamilyDisk:
		return "disksinfo"
	case FamilyIoWait:
		return "iowait"
	case FamilyListenPorts:
		return "listen_ports_info"
	default:
		return string(f)
	}
}

// ErrMalformed marks a snapshot whose shape cannot be evaluated.
var ErrMalformed = errors.New("malformed snapshot")

// Snapshot is one immutable reading of a metric family.
type Snapshot interface {
	Family() Family
	Equal(other Snapshot) bool
	Validate() error
}

func malformed(f Family, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, f, fmt.Sprintf(format, args...))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LoadAverage carries the system load plus the overall CPU utilization.
type LoadAverage struct {
	OneMin          float64 `json:"1min"`
	FiveMin         float64 `json:"5min"`
	FifteenMin      float64 `json:"15min"`
	CPUUsagePercent float64 `json:"usage"`
}

func (LoadAverage) Family() Family { return FamilyLoadAvg }

func (l LoadAverage) Equal(other Snapshot) bool {
	o, ok := other.(LoadAverage)
	return ok && l == o
}

func (l LoadAverage) Validate() error {
	for _, v := range []float64{l.OneMin, l.FiveMin, l.FifteenMin, l.CPUUsagePercent} {
		if !finite(v) {
			return malformed(FamilyLoadAvg, "non-finite value %v", v)
		}
	}
	return nil
}

// MemoryInfo is expressed in megabytes.
type MemoryInfo struct {
	TotalMB     uint64  `json:"total_mb"`
	AvailableMB uint64  `json:"available_mb"`
	FreeMB      uint64  `json:"free_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"percent"`
}

func (MemoryInfo) Family() Family { return FamilyMemory }

func (m MemoryInfo) Equal(other Snapshot) bool {
	o, ok := other.(MemoryInfo)
	return ok && m == o
}

func (m MemoryInfo) Validate() error {
	switch {
	case m.TotalMB == 0:
		return malformed(FamilyMemory, "zero total")
	case m.UsedMB > m.TotalMB:
		return malformed(FamilyMemory, "used %d exceeds total %d", m.UsedMB, m.TotalMB)
	case !finite(m.UsedPercent):
		return malformed(FamilyMemory, "non-finite percent")
	}
	return nil
}

// DiskEntry describes one mounted filesystem.
type DiskEntry struct {
	Device      string  `json:"device"`
	Mountpoint  string  `json:"mountpoint"`
	Fstype      string  `json:"fstype"`
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	FreeMB      uint64  `json:"free_mb"`
	UsedPercent float64 `json:"percent"`
}

// DiskInfo keeps the entries in collection order; order matters for equality.
type DiskInfo struct {
	Entries []DiskEntry `json:"disksinfo"`
}

func (DiskInfo) Family() Family { return FamilyDisk }

func (d DiskInfo) Equal(other Snapshot) bool {
	o, ok := other.(DiskInfo)
	return ok && slices.Equal(d.Entries, o.Entries)
}

func (d DiskInfo) Validate() error {
	for i, e := range d.Entries {
		switch {
		case e.Device == "":
			return malformed(FamilyDisk, "entry %d has no device", i)
		case e.UsedMB > e.TotalMB:
			return malformed(FamilyDisk, "%s: used %d exceeds total %d", e.Device, e.UsedMB, e.TotalMB)
		case !finite(e.UsedPercent):
			return malformed(FamilyDisk, "%s: non-finite percent", e.Device)
		}
	}
	return nil
}

// IoWait is the share of CPU time spent waiting on I/O, 0 to 100.
type IoWait struct {
	Value float64 `json:"iowait"`
}

func (IoWait) Family() Family { return FamilyIoWait }

func (w IoWait) Equal(other Snapshot) bool {
	o, ok := other.(IoWait)
	return ok && w == o
}

func (w IoWait) Validate() error {
	if !finite(w.Value) {
		return malformed(FamilyIoWait, "non-finite value")
	}
	return nil
}

// Round2 rounds to two decimals, the resolution readings are compared at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
