package output

import (
	"fmt"
	"slices"
	"time"

	"monnet/internal/engine"
	"monnet/internal/snapshot"
)

// UI/view-model types (no printing here)
type Item struct {
	Key    string
	Label  string
	Value  float64
	Unit   string
	Status string
	Note   string
}

type Section struct {
	ID      snapshot.Family
	Title   string
	Changed bool
	Items   []Item
}

type DashboardView struct {
	Sections    []Section
	Events      []engine.Event
	Armed       []engine.Record
	Ports       snapshot.PortGroups
	PortCount   int
	CPUUsage    float64
	IoWait      float64
	TotalRAMMB  uint64
	CollectedAt time.Time
}

var titles = map[snapshot.Family]string{
	snapshot.FamilyLoadAvg:     "CPU / Load",
	snapshot.FamilyMemory:      "Memory",
	snapshot.FamilyDisk:        "Disks",
	snapshot.FamilyIoWait:      "I/O Wait",
	snapshot.FamilyListenPorts: "Listen Ports",
}

// BuildDashboard turns the stored snapshots and the last cycle's result into
// UI-ready sections.
func BuildDashboard(snaps map[snapshot.Family]snapshot.Snapshot, res engine.Result, rules engine.Rules, armed []engine.Record, now time.Time) DashboardView {
	v := DashboardView{
		Events:      res.Events,
		Armed:       armed,
		Ports:       snapshot.PortGroups{},
		CollectedAt: now,
	}

	for _, f := range families(snaps) {
		snap := snaps[f]
		sec := Section{ID: f, Title: title(f)}
		_, sec.Changed = res.Changed[f]

		for _, r := range rules.Check(snap) {
			sec.Items = append(sec.Items, Item{
				Key:    r.Identity,
				Label:  r.Name,
				Value:  r.Value,
				Unit:   "%",
				Status: r.Severity.String(),
			})
		}

		switch s := snap.(type) {
		case snapshot.LoadAverage:
			v.CPUUsage = s.CPUUsagePercent
			sec.Items = append(sec.Items,
				Item{Key: "load_1m", Label: "Load Avg (1m)", Value: s.OneMin},
				Item{Key: "load_5m", Label: "Load Avg (5m)", Value: s.FiveMin},
				Item{Key: "load_15m", Label: "Load Avg (15m)", Value: s.FifteenMin},
			)
		case snapshot.MemoryInfo:
			v.TotalRAMMB = s.TotalMB
			sec.Items = append(sec.Items,
				Item{Key: "mem_total", Label: "Total", Value: float64(s.TotalMB), Unit: "MB"},
				Item{Key: "mem_available", Label: "Available", Value: float64(s.AvailableMB), Unit: "MB"},
				Item{Key: "mem_used", Label: "Used", Value: float64(s.UsedMB), Unit: "MB"},
				Item{Key: "mem_free", Label: "Free", Value: float64(s.FreeMB), Unit: "MB"},
			)
		case snapshot.DiskInfo:
			for _, e := range s.Entries {
				sec.Items = append(sec.Items, Item{
					Key:   "disk_size_" + e.Device,
					Label: e.Device,
					Value: float64(e.TotalMB),
					Unit:  "MB",
					Note:  fmt.Sprintf("%s %s, %d MB free", e.Mountpoint, e.Fstype, e.FreeMB),
				})
			}
		case snapshot.IoWait:
			v.IoWait = s.Value
		case snapshot.ListenPorts:
			v.Ports = snapshot.GroupPorts(s)
			v.PortCount = v.Ports.Len()
			sec.Items = append(sec.Items, Item{Key: "listen_count", Label: "Listening sockets", Value: float64(v.PortCount)})
		case snapshot.Raw:
			sec.Items = append(sec.Items, Item{Key: string(f), Label: string(f), Note: "no thresholds"})
		}
		v.Sections = append(v.Sections, sec)
	}
	return v
}

func families(snaps map[snapshot.Family]snapshot.Snapshot) []snapshot.Family {
	out := make([]snapshot.Family, 0, len(snaps))
	for _, f := range snapshot.Known {
		if _, ok := snaps[f]; ok {
			out = append(out, f)
		}
	}
	var extra []snapshot.Family
	for f := range snaps {
		if !f.IsKnown() {
			extra = append(extra, f)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func title(f snapshot.Family) string {
	if t, ok := titles[f]; ok {
		return t
	}
	return string(f)
}

func (v DashboardView) SectionByID(id snapshot.Family) *Section {
	for i := range v.Sections {
		if v.Sections[i].ID == id {
			return &v.Sections[i]
		}
	}
	return nil
}

func (s Section) ItemByKey(key string) *Item {
	for i := range s.Items {
		if s.Items[i].Key == key {
			return &s.Items[i]
		}
	}
	return nil
}

// Worst is the highest severity status among the section's checks.
func (s Section) Worst() string {
	worst := engine.SeverityNormal
	for _, it := range s.Items {
		switch it.Status {
		case engine.SeverityAlert.String():
			return it.Status
		case engine.SeverityWarn.String():
			worst = engine.SeverityWarn
		}
	}
	return worst.String()
}
