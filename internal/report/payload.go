package report

import (
	"encoding/json"
	"time"

	"monnet/internal/engine"
	"monnet/internal/snapshot"
)

const (
	CmdPing         = "ping"
	CmdPong         = "pong"
	CmdNotification = "notification"
)

// Meta describes the sending host. Every payload gets a fresh UUID.
type Meta struct {
	Timestamp    string `json:"timestamp"`
	Timezone     string `json:"timezone"`
	Hostname     string `json:"hostname"`
	Nodename     string `json:"nodename"`
	IPAddress    string `json:"ip_address"`
	AgentVersion string `json:"agent_version"`
	UUID         string `json:"uuid"`
}

type Payload struct {
	ID       string         `json:"id"`
	Cmd      string         `json:"cmd"`
	Token    string         `json:"token"`
	Interval int            `json:"interval,omitempty"`
	Version  string         `json:"version"`
	Data     map[string]any `json:"data"`
	Meta     Meta           `json:"meta"`
}

// Response is the collector's answer to a ping.
type Response struct {
	Cmd     string          `json:"cmd"`
	Token   string          `json:"token"`
	Refresh int             `json:"refresh,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RefreshInterval is the interval the collector asked for, or zero.
func (r *Response) RefreshInterval() time.Duration {
	if r == nil || r.Refresh <= 0 {
		return 0
	}
	return time.Duration(r.Refresh) * time.Second
}

// Stats are the periodic trend samples attached to a heartbeat.
type Stats struct {
	LoadAvg5 float64
	IoWait   float64
}

// HeartbeatData keys every changed family under its wire key. Stats are
// attached when due.
func HeartbeatData(changed map[snapshot.Family]snapshot.Snapshot, stats *Stats) map[string]any {
	data := make(map[string]any, len(changed)+2)
	for f, snap := range changed {
		data[f.WireKey()] = WireValue(snap)
	}
	if stats != nil {
		data["loadavg_stats"] = stats.LoadAvg5
		data["iowait_stats"] = stats.IoWait
	}
	return data
}

// WireValue is the body sent for one reading: iowait as a bare number, disks
// as a list and listen ports grouped by ip version and interface.
func WireValue(snap snapshot.Snapshot) any {
	switch s := snap.(type) {
	case snapshot.IoWait:
		return s.Value
	case snapshot.DiskInfo:
		if s.Entries == nil {
			return []snapshot.DiskEntry{}
		}
		return s.Entries
	case snapshot.ListenPorts:
		return snapshot.GroupPorts(s)
	case snapshot.Raw:
		return s.Data
	default:
		return snap
	}
}

// EventData is the notification body of a fired event.
func EventData(ev engine.Event) map[string]any {
	return map[string]any{
		"event_type": ev.Severity.String(),
		"value":      ev.Value,
		"identity":   ev.Identity,
		"payload":    ev.Payload,
	}
}
