package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"

	"monnet/internal/snapshot"
)

// LoadSensor reports load averages together with overall cpu utilization.
type LoadSensor struct {
	sample time.Duration
}

func NewLoadSensor(sample time.Duration) *LoadSensor {
	return &LoadSensor{sample: sample}
}

func (s *LoadSensor) Name() string {
	return "Load"
}

func (s *LoadSensor) Family() snapshot.Family {
	return snapshot.FamilyLoadAvg
}

// Connect primes the cpu counters so the first zero-interval read has a baseline.
func (s *LoadSensor) Connect(ctx context.Context) error {
	if s.sample == 0 {
		_, _ = cpu.PercentWithContext(ctx, 0, false)
	}
	return nil
}

func (s *LoadSensor) Disconnect(ctx context.Context) error {
	return nil
}

func (s *LoadSensor) Collect(ctx context.Context) (snapshot.Snapshot, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get load average: %w", err)
	}

	total, err := cpu.PercentWithContext(ctx, s.sample, false)
	if err != nil || len(total) == 0 {
		return nil, fmt.Errorf("failed to get total cpu percent: %w", err)
	}

	return snapshot.LoadAverage{
		OneMin:          snapshot.Round2(avg.Load1),
		FiveMin:         snapshot.Round2(avg.Load5),
		FifteenMin:      snapshot.Round2(avg.Load15),
		CPUUsagePercent: snapshot.Round2(total[0]),
	}, nil
}
