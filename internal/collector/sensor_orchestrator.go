package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"monnet/internal/collector/services"
	"monnet/internal/snapshot"
)

// StatsProvider defines the contract for any system metrics collector.
type StatsProvider interface {
	// CollectMetrics reads every cycle family. Families whose sensor failed
	// are absent from the result.
	CollectMetrics(ctx context.Context) map[snapshot.Family]snapshot.Snapshot
	// CollectFamily reads a single family, including ones polled outside the cycle.
	CollectFamily(ctx context.Context, f snapshot.Family) (snapshot.Snapshot, error)
}

// ErrUnknownFamily is returned for a family no sensor produces.
var ErrUnknownFamily = errors.New("no sensor for family")

type SystemCollector struct {
	cfg     CollectorConfig
	cycle   []services.Sensor
	sensors map[snapshot.Family]services.Sensor
	log     *slog.Logger
}

func NewSystemCollector(cfg CollectorConfig, logger *slog.Logger) *SystemCollector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCollectorConfig().Timeout
	}
	cycle := []services.Sensor{
		services.NewLoadSensor(cfg.CPUSample),
		services.NewMemSensor(),
		services.NewDiskSensor(cfg.AllPartitions, cfg.IgnoreFstypes),
		services.NewIoWaitSensor(),
	}
	ports := services.NewPortsSensor(cfg.IncludeUDP, cfg.ResolveServices)
	return newSystemCollector(cfg, logger, cycle, ports)
}

func newSystemCollector(cfg CollectorConfig, logger *slog.Logger, cycle []services.Sensor, extra ...services.Sensor) *SystemCollector {
	s := &SystemCollector{
		cfg:     cfg,
		cycle:   cycle,
		sensors: make(map[snapshot.Family]services.Sensor),
		log:     logger.With("component", "collector"),
	}
	for _, sn := range append(append([]services.Sensor{}, cycle...), extra...) {
		s.sensors[sn.Family()] = sn
	}
	return s
}

// Connect prepares every sensor. A sensor that fails to connect still gets
// collected; it just starts without a baseline.
func (s *SystemCollector) Connect(ctx context.Context) {
	for _, sn := range s.sensors {
		if err := sn.Connect(ctx); err != nil {
			s.log.Warn("sensor connect failed", "sensor", sn.Name(), "error", err)
		}
	}
}

func (s *SystemCollector) Disconnect(ctx context.Context) {
	for _, sn := range s.sensors {
		if err := sn.Disconnect(ctx); err != nil {
			s.log.Warn("sensor disconnect failed", "sensor", sn.Name(), "error", err)
		}
	}
}

// Internal result type for concurrency
type sensorResult struct {
	sensor services.Sensor
	snap   snapshot.Snapshot
	err    error
}

// CollectMetrics fans the cycle sensors out concurrently, each bounded by
// the configured timeout.
func (s *SystemCollector) CollectMetrics(ctx context.Context) map[snapshot.Family]snapshot.Snapshot {
	results := make(chan sensorResult, len(s.cycle))

	var wg sync.WaitGroup
	wg.Add(len(s.cycle))
	for _, sn := range s.cycle {
		go func() {
			defer wg.Done()
			snap, err := s.read(ctx, sn)
			results <- sensorResult{sensor: sn, snap: snap, err: err}
		}()
	}
	wg.Wait()
	close(results)

	out := make(map[snapshot.Family]snapshot.Snapshot, len(s.cycle))
	for r := range results {
		if r.err != nil {
			s.log.Error("sensor read failed", "sensor", r.sensor.Name(), "family", r.sensor.Family(), "error", r.err)
			continue
		}
		out[r.sensor.Family()] = r.snap
	}
	return out
}

func (s *SystemCollector) CollectFamily(ctx context.Context, f snapshot.Family) (snapshot.Snapshot, error) {
	sn, ok := s.sensors[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, f)
	}
	return s.read(ctx, sn)
}

func (s *SystemCollector) read(ctx context.Context, sn services.Sensor) (snap snapshot.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sensor %s panicked: %v", sn.Name(), r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return sn.Collect(ctx)
}
