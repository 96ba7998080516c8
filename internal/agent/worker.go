package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"monnet/internal/collector"
	"monnet/internal/engine"
	"monnet/internal/report"
	"monnet/internal/snapshot"
)

// Sink delivers cycle output to the monnet server. report.Client satisfies it.
type Sink interface {
	ReportHeartbeat(ctx context.Context, interval time.Duration, changed map[snapshot.Family]snapshot.Snapshot, stats *report.Stats) (*report.Response, error)
	ReportEvent(ctx context.Context, ev engine.Event) error
	Notify(ctx context.Context, name string, data map[string]any) error
}

// Worker runs the polling cycle.
type Worker struct {
	collector collector.StatsProvider
	processor *engine.Processor
	sink      Sink
	recorder  engine.EventRecorder
	metrics   *Metrics
	now       func() time.Time
	log       *slog.Logger

	mu         sync.Mutex
	interval   time.Duration
	statsEvery time.Duration
	lastStats  time.Time
}

type WorkerOption func(*Worker)

func WithStatsInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.statsEvery = d }
}

func WithRecorder(r engine.EventRecorder) WorkerOption {
	return func(w *Worker) { w.recorder = r }
}

func WithMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

func NewWorker(c collector.StatsProvider, p *engine.Processor, sink Sink, interval time.Duration, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		collector:  c,
		processor:  p,
		sink:       sink,
		now:        time.Now,
		log:        logger.With("component", "worker"),
		interval:   interval,
		statsEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Interval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interval
}

// Run repeats RunOnce, sleeping the current interval between cycles, until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			w.RunOnce(ctx)
			timer.Reset(w.Interval())
		}
	}
}

// RunOnce collects, processes and reports one cycle. Delivery failures are
// logged and counted; they never stop the loop.
func (w *Worker) RunOnce(ctx context.Context) engine.Result {
	start := w.now()
	fresh := w.collector.CollectMetrics(ctx)
	res := w.processor.Process(start, fresh)

	resp, err := w.sink.ReportHeartbeat(ctx, w.Interval(), res.Changed, w.stats(start))
	if err != nil {
		w.log.Warn("ping failed", "error", err)
		w.metrics.SinkError("ping")
	} else {
		w.applyRefresh(resp.RefreshInterval())
	}

	for _, ev := range res.Events {
		w.log.Info("event fired", "name", ev.Name, "identity", ev.Identity, "severity", ev.Severity, "value", ev.Value)
		if err := w.sink.ReportEvent(ctx, ev); err != nil {
			w.log.Warn("event notification failed", "identity", ev.Identity, "error", err)
			w.metrics.SinkError("event")
		}
	}
	if w.recorder != nil {
		w.recorder.RecordEvents(res.Events)
	}

	w.metrics.ObserveCycle(w.now().Sub(start), res, len(w.processor.Armed()))
	w.log.Debug("cycle done", "families", len(fresh), "changed", len(res.Changed), "events", len(res.Events))
	return res
}

func (w *Worker) applyRefresh(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if d == w.interval {
		return
	}
	w.log.Info("interval updated", "from", w.interval, "to", d)
	w.interval = d
}

// stats returns the trend sample once per stats interval, starting with the
// first cycle that has a load reading.
func (w *Worker) stats(now time.Time) *report.Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.lastStats.IsZero() && now.Sub(w.lastStats) <= w.statsEvery {
		return nil
	}

	st := w.processor.Store()
	snap, ok := st.Get(snapshot.FamilyLoadAvg)
	if !ok {
		return nil
	}
	load, ok := snap.(snapshot.LoadAverage)
	if !ok {
		return nil
	}
	out := &report.Stats{LoadAvg5: load.FiveMin}
	if snap, ok := st.Get(snapshot.FamilyIoWait); ok {
		if io, ok := snap.(snapshot.IoWait); ok {
			out.IoWait = io.Value
		}
	}
	w.lastStats = now
	return out
}
