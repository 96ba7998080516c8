// Package database persists agent state behind the snapshot store.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"monnet/internal/database/relational"
	"monnet/internal/engine"
	"monnet/internal/snapshot"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultRetention     = 30 * 24 * time.Hour
	maxPendingEvents     = 1000
)

// Persister is a write-behind store.Persister. Persist and RecordEvents only
// queue; a background loop flushes to the repository.
type Persister struct {
	repo      relational.Repository
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
	closer    io.Closer

	pendingMu sync.Mutex
	dirty     map[snapshot.Family]snapshot.Snapshot
	events    []engine.Event

	flushMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

type Option func(*Persister)

func WithFlushInterval(d time.Duration) Option {
	return func(p *Persister) { p.interval = d }
}

// WithRetention bounds the event history. Zero keeps everything.
func WithRetention(d time.Duration) Option {
	return func(p *Persister) { p.retention = d }
}

func WithClock(now func() time.Time) Option {
	return func(p *Persister) { p.now = now }
}

func NewPersister(repo relational.Repository, logger *slog.Logger, opts ...Option) (*Persister, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Persister{
		repo:      repo,
		interval:  defaultFlushInterval,
		retention: defaultRetention,
		now:       time.Now,
		log:       logger.With("component", "persister"),
		dirty:     make(map[snapshot.Family]snapshot.Snapshot),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.interval <= 0 {
		p.interval = defaultFlushInterval
	}
	return p, nil
}

// Open opens or creates the DuckDB datastore at path, migrates it and
// returns a persister writing to it. Close releases the database.
func Open(ctx context.Context, path string, logger *slog.Logger, opts ...Option) (*Persister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create datastore dir: %w", err)
	}
	client, err := relational.NewFileDB(path)
	if err != nil {
		return nil, fmt.Errorf("open datastore %s: %w", path, err)
	}
	repo := relational.NewRepo(client.DB())
	if err := repo.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate datastore: %w", err)
	}
	p, err := NewPersister(repo, logger, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.closer = client
	p.log.Info("datastore opened", "dsn", client.DSN())
	return p, nil
}

// Repository exposes the underlying store for history queries.
func (p *Persister) Repository() relational.Repository { return p.repo }

// Close releases the database opened by Open. It does not flush.
func (p *Persister) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Persist marks s as the latest reading of its family.
func (p *Persister) Persist(s snapshot.Snapshot) {
	if s == nil {
		return
	}
	p.pendingMu.Lock()
	p.dirty[s.Family()] = s
	p.pendingMu.Unlock()
}

// RecordEvents queues fired events for the history table.
func (p *Persister) RecordEvents(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	p.pendingMu.Lock()
	p.events = append(p.events, events...)
	p.capEvents()
	p.pendingMu.Unlock()
}

// capEvents drops the oldest queued events beyond maxPendingEvents. The
// caller holds pendingMu.
func (p *Persister) capEvents() {
	over := len(p.events) - maxPendingEvents
	if over <= 0 {
		return
	}
	p.events = slices.Delete(p.events, 0, over)
	p.log.Warn("event queue full, dropping oldest", "dropped", over, "kept", maxPendingEvents)
}

// Restore decodes every persisted snapshot. Rows that fail to decode are
// logged and skipped.
func (p *Persister) Restore(ctx context.Context) (map[snapshot.Family]snapshot.Snapshot, error) {
	rows, err := p.repo.LoadSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[snapshot.Family]snapshot.Snapshot, len(rows))
	for _, row := range rows {
		f := snapshot.Family(row.Family)
		s, err := snapshot.Decode(f, row.Payload)
		if err != nil {
			p.log.Warn("dropping unreadable persisted snapshot", "family", f, "error", err)
			continue
		}
		out[f] = s
	}
	return out, nil
}

// Start begins the periodic flush loop.
func (p *Persister) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("persister already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.wg.Add(1)
	p.mu.Unlock()

	go p.loop(ctx)
	return nil
}

// Stop ends the loop and performs a final flush.
func (p *Persister) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.running = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Flush(ctx); err != nil {
		p.log.Error("final flush failed", "error", err)
	}
}

func (p *Persister) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.log.Error("flush failed", "error", err)
			}
		}
	}
}

// Flush writes everything queued so far. Whatever fails to write is queued
// again unless a newer reading arrived meanwhile.
func (p *Persister) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.pendingMu.Lock()
	dirty := p.dirty
	events := p.events
	p.dirty = make(map[snapshot.Family]snapshot.Snapshot)
	p.events = nil
	p.pendingMu.Unlock()

	now := p.now()
	var errs []error

	if len(dirty) > 0 {
		rows, err := snapshotRows(dirty, now)
		if err == nil {
			err = p.repo.SaveSnapshots(ctx, rows)
		}
		if err != nil {
			errs = append(errs, err)
			p.requeueSnapshots(dirty)
		}
	}

	if len(events) > 0 {
		rows, err := eventRows(events)
		if err == nil {
			err = p.repo.InsertEvents(ctx, rows)
		}
		if err != nil {
			errs = append(errs, err)
			p.pendingMu.Lock()
			p.events = append(events, p.events...)
			p.capEvents()
			p.pendingMu.Unlock()
		}
	}

	if p.retention > 0 && len(events) > 0 {
		if n, err := p.repo.PruneEvents(ctx, now.Add(-p.retention)); err != nil {
			errs = append(errs, err)
		} else if n > 0 {
			p.log.Debug("pruned event history", "removed", n)
		}
	}
	return errors.Join(errs...)
}

func (p *Persister) requeueSnapshots(dirty map[snapshot.Family]snapshot.Snapshot) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for f, s := range dirty {
		if _, newer := p.dirty[f]; !newer {
			p.dirty[f] = s
		}
	}
}

// Pending reports how many snapshots and events wait for the next flush.
func (p *Persister) Pending() (snapshots, events int) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.dirty), len(p.events)
}

func snapshotRows(dirty map[snapshot.Family]snapshot.Snapshot, now time.Time) ([]relational.SnapshotRow, error) {
	rows := make([]relational.SnapshotRow, 0, len(dirty))
	for _, f := range slices.Sorted(maps.Keys(dirty)) {
		b, err := snapshot.Encode(dirty[f])
		if err != nil {
			return nil, err
		}
		rows = append(rows, relational.SnapshotRow{Family: string(f), Payload: b, UpdatedAt: now})
	}
	return rows, nil
}

func eventRows(events []engine.Event) ([]relational.EventRow, error) {
	rows := make([]relational.EventRow, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode event %s payload: %w", ev.Identity, err)
		}
		rows = append(rows, relational.EventRow{
			Name:     ev.Name,
			Identity: ev.Identity,
			Severity: ev.Severity.String(),
			Value:    ev.Value,
			Payload:  payload,
			FiredAt:  ev.FiredAt,
		})
	}
	return rows, nil
}
