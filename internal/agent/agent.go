// Package agent drives the monitoring cycle and its background tasks.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"monnet/internal/collector"
	"monnet/internal/config"
	"monnet/internal/database"
	"monnet/internal/engine"
	"monnet/internal/report"
	"monnet/internal/snapshot"
	"monnet/internal/store"
)

const (
	portsTask       = "check_ports"
	shutdownTimeout = 10 * time.Second
)

type Agent struct {
	cfg       config.Config
	log       *slog.Logger
	collector collector.StatsProvider
	sink      Sink
	processor *engine.Processor
	worker    *Worker
	tasks     *TaskRegistry
	metrics   *Metrics
	persister *database.Persister
	hostDown  ShutdownCheck
	now       func() time.Time
	signals   []os.Signal
}

type Option func(*Agent)

func WithSink(s Sink) Option {
	return func(a *Agent) { a.sink = s }
}

func WithCollector(c collector.StatsProvider) Option {
	return func(a *Agent) { a.collector = c }
}

func WithShutdownCheck(p ShutdownCheck) Option {
	return func(a *Agent) { a.hostDown = p }
}

func WithAgentClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New wires the agent from cfg. Persisted snapshots, when a datastore is
// configured, seed the store before the first cycle.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		cfg:      cfg,
		log:      logger,
		tasks:    NewTaskRegistry(logger),
		metrics:  NewMetrics(),
		hostDown: HostShuttingDown,
		now:      time.Now,
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.collector == nil {
		a.collector = collector.NewSystemCollector(collector.DefaultCollectorConfig(), logger)
	}
	if a.sink == nil {
		a.sink = report.New(cfg, logger)
	}

	var storeOpts []store.Option
	if cfg.Datastore != "" {
		p, err := database.Open(ctx, cfg.Datastore, logger)
		if err != nil {
			return nil, err
		}
		restored, err := p.Restore(ctx)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("restore datastore: %w", err)
		}
		logger.Info("datastore loaded", "path", cfg.Datastore, "families", len(restored))
		a.persister = p
		storeOpts = append(storeOpts, store.WithPersister(p), store.WithSnapshots(restored))
	}

	st := store.New(logger, storeOpts...)
	a.processor = engine.NewProcessor(st, engine.NewDeduplicator(cfg.Expiration()), cfg.Thresholds, logger)

	wOpts := []WorkerOption{WithStatsInterval(cfg.StatsEvery()), WithMetrics(a.metrics), WithClock(a.now)}
	if a.persister != nil {
		wOpts = append(wOpts, WithRecorder(a.persister))
	}
	a.worker = NewWorker(a.collector, a.processor, a.sink, cfg.Interval(), logger, wOpts...)
	return a, nil
}

func (a *Agent) Processor() *engine.Processor { return a.processor }

func (a *Agent) Metrics() *Metrics { return a.metrics }

// Run blocks until ctx is cancelled or a termination signal arrives, then
// sends the shutdown notification and flushes persisted state.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("starting monnet agent", "id", a.cfg.ID, "version", config.Version, "interval", a.cfg.Interval())

	ctx, stop := signal.NotifyContext(ctx, a.signals...)
	defer stop()

	if c, ok := a.collector.(*collector.SystemCollector); ok {
		c.Connect(ctx)
		defer c.Disconnect(context.Background())
	}
	if a.persister != nil {
		if err := a.persister.Start(ctx); err != nil {
			if cerr := a.persister.Close(); cerr != nil {
				a.log.Warn("datastore close failed", "error", cerr)
			}
			return fmt.Errorf("start persister: %w", err)
		}
	}

	a.notify(ctx, NotifyStarting, map[string]any{"msg": a.now().Format(time.TimeOnly)})
	a.tasks.Schedule(ctx, portsTask, a.cfg.PortsEvery(), a.checkPorts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.worker.Run(gctx)
	})
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return a.serveMetrics(gctx)
		})
	}
	runErr := g.Wait()

	a.shutdown()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	a.log.Info("monnet agent stopped")
	return nil
}

func (a *Agent) shutdown() {
	a.tasks.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	name, sev := shutdownNotice(a.hostDown())
	msg := "Closing application."
	if sev == engine.SeverityAlert {
		msg = "System shutdown or reboot"
	}
	a.log.Info("stopping", "notification", name)
	a.notify(ctx, name, map[string]any{"msg": msg, "event_type": sev.String()})

	if a.persister != nil {
		a.persister.Stop()
		if err := a.persister.Close(); err != nil {
			a.log.Warn("datastore close failed", "error", err)
		}
	}
}

func (a *Agent) notify(ctx context.Context, name string, data map[string]any) {
	if err := a.sink.Notify(ctx, name, data); err != nil {
		a.log.Warn("notification failed", "name", name, "error", err)
		a.metrics.SinkError("notification")
	}
}

// checkPorts is the listen-ports task: it notifies only when the set of
// listening sockets changed.
func (a *Agent) checkPorts(ctx context.Context) {
	snap, err := a.collector.CollectFamily(ctx, snapshot.FamilyListenPorts)
	if err != nil {
		a.log.Warn("listen ports read failed", "error", err)
		return
	}
	res := a.processor.ProcessFamily(a.now(), snap)
	if _, changed := res.Changed[snapshot.FamilyListenPorts]; !changed {
		return
	}
	ports, ok := snap.(snapshot.ListenPorts)
	if !ok {
		return
	}
	a.metrics.FamilyChanged(snapshot.FamilyListenPorts)
	a.notify(ctx, NotifyListenPorts, map[string]any{
		snapshot.FamilyListenPorts.WireKey(): snapshot.GroupPorts(ports),
	})
}

func (a *Agent) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("metrics listening", "addr", a.cfg.MetricsAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
