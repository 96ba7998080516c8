package services

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"

	"monnet/internal/snapshot"
)

const mb = 1024 * 1024

type MemSensor struct{}

func NewMemSensor() *MemSensor {
	return &MemSensor{}
}

func (s *MemSensor) Name() string {
	return "Memory"
}

func (s *MemSensor) Family() snapshot.Family {
	return snapshot.FamilyMemory
}

func (s *MemSensor) Connect(ctx context.Context) error {
	return nil
}

func (s *MemSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *MemSensor) Collect(ctx context.Context) (snapshot.Snapshot, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get virtual memory: %w", err)
	}
	return memoryInfo(v), nil
}

// memoryInfo converts to megabytes. Used is total minus available, so page
// cache does not count as pressure.
func memoryInfo(v *mem.VirtualMemoryStat) snapshot.MemoryInfo {
	info := snapshot.MemoryInfo{
		TotalMB:     v.Total / mb,
		AvailableMB: v.Available / mb,
		FreeMB:      v.Free / mb,
	}
	if v.Available <= v.Total {
		info.UsedMB = (v.Total - v.Available) / mb
	}
	if v.Total > 0 {
		info.UsedPercent = snapshot.Round2(float64(v.Total-min(v.Available, v.Total)) / float64(v.Total) * 100)
	}
	return info
}
