// Package output runs the local engine once and shapes the result for the
// console, TUI and MCP surfaces.
package output

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"monnet/internal/engine"
	"monnet/internal/snapshot"
)

// Payload is one pipeline run: the engine result plus its view.
type Payload struct {
	Result engine.Result
	View   DashboardView
}

// DataCollector defines the interface for collecting fresh snapshots.
type DataCollector interface {
	CollectMetrics(ctx context.Context) map[snapshot.Family]snapshot.Snapshot
}

// FamilyCollector is implemented by collectors that read listen ports on
// demand.
type FamilyCollector interface {
	CollectFamily(ctx context.Context, f snapshot.Family) (snapshot.Snapshot, error)
}

var ErrNoData = errors.New("no metrics collected")

// RunPipeline executes Collect -> Process -> View. Listen ports are folded
// into the same cycle when the collector can read them.
func RunPipeline(ctx context.Context, col DataCollector, proc *engine.Processor, now time.Time) (*Payload, error) {
	fresh := col.CollectMetrics(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	fresh = maps.Clone(fresh)
	if fresh == nil {
		fresh = make(map[snapshot.Family]snapshot.Snapshot)
	}

	if fc, ok := col.(FamilyCollector); ok {
		if ports, err := fc.CollectFamily(ctx, snapshot.FamilyListenPorts); err == nil {
			fresh[snapshot.FamilyListenPorts] = ports
		}
	}
	if len(fresh) == 0 {
		return nil, ErrNoData
	}

	res := proc.Process(now, fresh)
	view := BuildDashboard(proc.Store().All(), res, proc.Rules(), proc.Armed(), now)
	return &Payload{Result: res, View: view}, nil
}
