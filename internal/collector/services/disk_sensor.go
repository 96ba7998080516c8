package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/shirou/gopsutil/v4/disk"

	"monnet/internal/snapshot"
)

type DiskSensor struct {
	all    bool
	ignore []string
}

func NewDiskSensor(all bool, ignoreFstypes []string) *DiskSensor {
	return &DiskSensor{all: all, ignore: slices.Clone(ignoreFstypes)}
}

func (s *DiskSensor) Name() string {
	return "Disk"
}

func (s *DiskSensor) Family() snapshot.Family {
	return snapshot.FamilyDisk
}

func (s *DiskSensor) Connect(ctx context.Context) error {
	return nil
}

func (s *DiskSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *DiskSensor) Collect(ctx context.Context) (snapshot.Snapshot, error) {
	partitions, err := disk.PartitionsWithContext(ctx, s.all)
	if err != nil {
		return nil, fmt.Errorf("failed to get partitions: %w", err)
	}

	var entries []snapshot.DiskEntry
	seen := make(map[string]bool)
	for _, p := range partitions {
		if p.Device == "" || seen[p.Device] || slices.Contains(s.ignore, p.Fstype) {
			continue
		}

		// Unreadable mounts (stale nfs, permission) are left out of the reading.
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		seen[p.Device] = true
		entries = append(entries, diskEntry(p, u))
	}

	return snapshot.DiskInfo{Entries: entries}, nil
}

func diskEntry(p disk.PartitionStat, u *disk.UsageStat) snapshot.DiskEntry {
	return snapshot.DiskEntry{
		Device:      p.Device,
		Mountpoint:  p.Mountpoint,
		Fstype:      p.Fstype,
		TotalMB:     u.Total / mb,
		UsedMB:      u.Used / mb,
		FreeMB:      u.Free / mb,
		UsedPercent: snapshot.Round2(u.UsedPercent),
	}
}
