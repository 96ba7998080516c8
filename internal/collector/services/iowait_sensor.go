package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"

	"monnet/internal/snapshot"
)

// IoWaitSensor reports the share of cpu time spent waiting on I/O since the
// previous read. The first read without a baseline covers the time since boot.
type IoWaitSensor struct {
	mu   sync.Mutex
	last *cpu.TimesStat
}

func NewIoWaitSensor() *IoWaitSensor {
	return &IoWaitSensor{}
}

func (s *IoWaitSensor) Name() string {
	return "IoWait"
}

func (s *IoWaitSensor) Family() snapshot.Family {
	return snapshot.FamilyIoWait
}

func (s *IoWaitSensor) Connect(ctx context.Context) error {
	t, err := cpuTimes(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.last = &t
	s.mu.Unlock()
	return nil
}

func (s *IoWaitSensor) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
	return nil
}

func (s *IoWaitSensor) Collect(ctx context.Context) (snapshot.Snapshot, error) {
	cur, err := cpuTimes(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.last
	s.last = &cur
	s.mu.Unlock()

	return snapshot.IoWait{Value: snapshot.Round2(iowaitPercent(prev, cur))}, nil
}

func cpuTimes(ctx context.Context) (cpu.TimesStat, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		return cpu.TimesStat{}, fmt.Errorf("failed to get cpu times: %w", err)
	}
	return times[0], nil
}

func totalTime(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal + t.Idle
}

// iowaitPercent is the iowait delta over the total delta. Counters that went
// backwards (host suspend, counter reset) fall back to the cumulative share.
func iowaitPercent(prev *cpu.TimesStat, cur cpu.TimesStat) float64 {
	if prev != nil {
		total := totalTime(cur) - totalTime(*prev)
		wait := cur.Iowait - prev.Iowait
		if total > 0 && wait >= 0 {
			return wait / total * 100
		}
	}
	if total := totalTime(cur); total > 0 {
		return cur.Iowait / total * 100
	}
	return 0
}
