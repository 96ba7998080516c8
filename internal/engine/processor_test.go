package engine

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monnet/internal/snapshot"
	"monnet/internal/store"
)

type countingPersister struct{ n int }

func (c *countingPersister) Persist(snapshot.Snapshot) { c.n++ }

func newTestProcessor(t *testing.T, window time.Duration) (*Processor, *countingPersister) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &countingPersister{}
	st := store.New(logger, store.WithPersister(p))
	return NewProcessor(st, NewDeduplicator(window), DefaultRules(), logger), p
}

func healthy() map[snapshot.Family]snapshot.Snapshot {
	return map[snapshot.Family]snapshot.Snapshot{
		snapshot.FamilyLoadAvg: snapshot.LoadAverage{OneMin: 0.5, FiveMin: 0.4, FifteenMin: 0.3, CPUUsagePercent: 12},
		snapshot.FamilyMemory:  snapshot.MemoryInfo{TotalMB: 1000, AvailableMB: 700, FreeMB: 600, UsedMB: 300, UsedPercent: 30},
		snapshot.FamilyDisk: snapshot.DiskInfo{Entries: []snapshot.DiskEntry{
			{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4", TotalMB: 100, UsedMB: 20, FreeMB: 80, UsedPercent: 20},
		}},
		snapshot.FamilyIoWait: snapshot.IoWait{Value: 0.5},
	}
}

func identities(events []Event) []string {
	var out []string
	for _, e := range events {
		out = append(out, e.Identity)
	}
	return out
}

func TestProcessUnchangedInputIsIdempotent(t *testing.T) {
	p, persisted := newTestProcessor(t, 300*time.Second)

	first := p.Process(at(0), healthy())
	assert.Len(t, first.Changed, 4)
	assert.Equal(t, 4, persisted.n)

	second := p.Process(at(10), healthy())
	assert.Empty(t, second.Changed)
	assert.Empty(t, second.Events)
	assert.Equal(t, 4, persisted.n, "store must not be rewritten for identical input")
}

func TestProcessDetectsChange(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)
	p.Process(at(0), healthy())

	fresh := healthy()
	fresh[snapshot.FamilyIoWait] = snapshot.IoWait{Value: 0.75}
	res := p.Process(at(10), fresh)

	require.Len(t, res.Changed, 1)
	assert.Equal(t, snapshot.IoWait{Value: 0.75}, res.Changed[snapshot.FamilyIoWait])
	got, _ := p.Store().Get(snapshot.FamilyIoWait)
	assert.Equal(t, snapshot.IoWait{Value: 0.75}, got)
}

func TestProcessFiresAndSuppresses(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)

	fresh := healthy()
	fresh[snapshot.FamilyLoadAvg] = snapshot.LoadAverage{OneMin: 8, CPUUsagePercent: 92}
	res := p.Process(at(0), fresh)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, EventHighCPUUsage, ev.Name)
	assert.Equal(t, SeverityAlert, ev.Severity)
	assert.Equal(t, 92.0, ev.Value)
	assert.Equal(t, fresh[snapshot.FamilyLoadAvg], ev.Payload)
	assert.Equal(t, at(0), ev.FiredAt)

	// Unchanged value still gets evaluated, but the identity is armed.
	assert.Empty(t, p.Process(at(100), fresh).Events)
	assert.Len(t, p.Process(at(301), fresh).Events, 1)
}

func TestProcessTwoDisksOverThreshold(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)

	sda := snapshot.DiskEntry{Device: "/dev/sda1", Mountpoint: "/", TotalMB: 100, UsedMB: 95, FreeMB: 5, UsedPercent: 95}
	sdb := snapshot.DiskEntry{Device: "/dev/sdb1", Mountpoint: "/data", TotalMB: 100, UsedMB: 93, FreeMB: 7, UsedPercent: 93}
	fresh := healthy()
	fresh[snapshot.FamilyDisk] = snapshot.DiskInfo{Entries: []snapshot.DiskEntry{sda, sdb}}

	res := p.Process(at(0), fresh)
	require.Len(t, res.Events, 2)
	assert.ElementsMatch(t, []string{"high_disk_usage_/dev/sda1", "high_disk_usage_/dev/sdb1"}, identities(res.Events))
	for _, ev := range res.Events {
		assert.Equal(t, EventHighDiskUsage, ev.Name)
		assert.Equal(t, SeverityAlert, ev.Severity)
		entry, ok := ev.Payload.(snapshot.DiskEntry)
		require.True(t, ok)
		assert.Equal(t, DiskIdentity(entry.Device), ev.Identity)
	}
}

func TestProcessNoRecoveryClear(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)

	warn := healthy()
	warn[snapshot.FamilyMemory] = snapshot.MemoryInfo{TotalMB: 1000, UsedMB: 850, UsedPercent: 85}

	require.Len(t, p.Process(at(0), warn).Events, 1)
	assert.Empty(t, p.Process(at(60), healthy()).Events)
	assert.Empty(t, p.Process(at(120), warn).Events, "return to normal must not re-arm the identity")

	armed := p.Armed()
	require.Len(t, armed, 1)
	assert.Equal(t, IdentityMemory, armed[0].Identity)
	assert.Equal(t, at(0), armed[0].LastFiredAt)
}

func TestProcessEscalationSharesIdentity(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)

	fresh := healthy()
	fresh[snapshot.FamilyIoWait] = snapshot.IoWait{Value: 82}
	require.Len(t, p.Process(at(0), fresh).Events, 1)

	fresh[snapshot.FamilyIoWait] = snapshot.IoWait{Value: 97}
	assert.Empty(t, p.Process(at(30), fresh).Events, "alert within the window is suppressed by the earlier warn")
}

func TestProcessMalformedFamilyIsIsolated(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p := NewProcessor(store.New(logger), NewDeduplicator(300*time.Second), DefaultRules(), logger)

	fresh := healthy()
	fresh[snapshot.FamilyDisk] = snapshot.DiskInfo{Entries: []snapshot.DiskEntry{
		{Device: "", Mountpoint: "/", TotalMB: 100, UsedMB: 99, UsedPercent: 99},
	}}
	fresh[snapshot.FamilyMemory] = snapshot.MemoryInfo{TotalMB: 1000, UsedMB: 950, UsedPercent: 95}
	fresh[snapshot.FamilyLoadAvg] = snapshot.LoadAverage{CPUUsagePercent: 85}

	res := p.Process(at(0), fresh)
	assert.ElementsMatch(t, []string{IdentityMemory, IdentityCPU}, identities(res.Events))
	assert.NotContains(t, res.Changed, snapshot.FamilyDisk)
	_, stored := p.Store().Get(snapshot.FamilyDisk)
	assert.False(t, stored)
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "skipping malformed family")
}

func TestProcessMismatchedAndNilFamilies(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)

	fresh := map[snapshot.Family]snapshot.Snapshot{
		snapshot.FamilyDisk:   snapshot.MemoryInfo{TotalMB: 10, UsedMB: 9, UsedPercent: 90},
		snapshot.FamilyIoWait: nil,
	}
	res := p.Process(at(0), fresh)
	assert.Empty(t, res.Events)
	assert.Empty(t, res.Changed)
}

func TestProcessUnknownFamilyRegisters(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)

	fresh := healthy()
	fresh["gpu"] = snapshot.Raw{Name: "gpu", Data: []byte(`{"temp":71}`)}
	res := p.Process(at(0), fresh)

	assert.Contains(t, res.Changed, snapshot.Family("gpu"))
	assert.Contains(t, p.Store().Families(), snapshot.Family("gpu"))
}

func TestProcessSweepsEveryCycle(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)

	fresh := healthy()
	fresh[snapshot.FamilyIoWait] = snapshot.IoWait{Value: 85}
	p.Process(at(0), fresh)
	require.Len(t, p.Armed(), 1)

	p.Process(at(599), healthy())
	assert.Len(t, p.Armed(), 1)
	p.Process(at(601), map[snapshot.Family]snapshot.Snapshot{})
	assert.Empty(t, p.Armed(), "sweep runs even when nothing was collected")
}

func TestProcessFamily(t *testing.T) {
	p, _ := newTestProcessor(t, 300*time.Second)
	ports := snapshot.NewListenPorts(snapshot.PortEntry{Interface: "0.0.0.0", Port: 22, Service: "sshd", Protocol: snapshot.ProtoTCP, IPVersion: snapshot.IPv4})

	res := p.ProcessFamily(at(0), ports)
	assert.Contains(t, res.Changed, snapshot.FamilyListenPorts)
	assert.Empty(t, res.Events)

	res = p.ProcessFamily(at(15), ports)
	assert.Empty(t, res.Changed)

	res = p.ProcessFamily(at(30), nil)
	assert.Empty(t, res.Changed)
}
