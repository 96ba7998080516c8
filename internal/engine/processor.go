package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"monnet/internal/snapshot"
	"monnet/internal/store"
)

// Event is a threshold crossing that passed deduplication.
type Event struct {
	Name     string    `json:"name"`
	Identity string    `json:"identity"`
	Severity Severity  `json:"event_type"`
	Value    float64   `json:"value"`
	Payload  any       `json:"payload"`
	FiredAt  time.Time `json:"fired_at"`
}

// EventRecorder keeps a history of fired events. database.Persister
// satisfies it.
type EventRecorder interface {
	RecordEvents(events []Event)
}

// Result is the outcome of one cycle.
type Result struct {
	Events  []Event
	Changed map[snapshot.Family]snapshot.Snapshot
}

// Processor runs change detection and threshold evaluation over fresh
// snapshots. A single mutex covers every store and deduplicator mutation.
type Processor struct {
	mu    sync.Mutex
	store *store.Store
	dedup *Deduplicator
	rules Rules
	log   *slog.Logger
}

func NewProcessor(st *store.Store, dedup *Deduplicator, rules Rules, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store: st,
		dedup: dedup,
		rules: rules,
		log:   logger.With("component", "processor"),
	}
}

// Process runs one polling cycle and never fails: a malformed family is
// logged and skipped while the rest are still evaluated.
func (p *Processor) Process(now time.Time, fresh map[snapshot.Family]snapshot.Snapshot) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := Result{Changed: make(map[snapshot.Family]snapshot.Snapshot)}
	for _, f := range order(fresh) {
		p.processFamily(now, f, fresh[f], &res)
	}

	if n := p.dedup.Sweep(now); n > 0 {
		p.log.Debug("expired event records", "removed", n, "armed", p.dedup.Len())
	}
	return res
}

// ProcessFamily handles a single snapshot outside the main cycle, for tasks
// that poll one family on their own cadence. It does not sweep.
func (p *Processor) ProcessFamily(now time.Time, snap snapshot.Snapshot) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := Result{Changed: make(map[snapshot.Family]snapshot.Snapshot)}
	if snap == nil {
		p.log.Error("skipping malformed family", "error", fmt.Errorf("%w: nil snapshot", snapshot.ErrMalformed))
		return res
	}
	p.processFamily(now, snap.Family(), snap, &res)
	return res
}

func (p *Processor) processFamily(now time.Time, f snapshot.Family, snap snapshot.Snapshot, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("family processing panicked", "family", f, "panic", r)
		}
	}()

	if err := check(f, snap); err != nil {
		p.log.Error("skipping malformed family", "family", f, "error", err)
		return
	}

	if last, ok := p.store.Get(f); !ok || !snap.Equal(last) {
		p.store.Update(snap)
		res.Changed[f] = snap
	}

	for _, ind := range p.rules.Indicators(snap) {
		sev := Evaluate(ind.Value, ind.Rule)
		if sev == SeverityNormal {
			continue
		}
		if !p.dedup.ShouldFire(ind.Identity, now) {
			p.log.Debug("event suppressed", "identity", ind.Identity, "severity", sev, "value", ind.Value)
			continue
		}
		p.dedup.MarkFired(ind.Identity, now)
		res.Events = append(res.Events, Event{
			Name:     ind.Name,
			Identity: ind.Identity,
			Severity: sev,
			Value:    ind.Value,
			Payload:  ind.Payload,
			FiredAt:  now,
		})
	}
}

func check(f snapshot.Family, snap snapshot.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: %s: nil snapshot", snapshot.ErrMalformed, f)
	}
	if snap.Family() != f {
		return fmt.Errorf("%w: %s: got %s reading", snapshot.ErrMalformed, f, snap.Family())
	}
	return snap.Validate()
}

// order puts the built-in families first, then any others sorted by name.
func order(fresh map[snapshot.Family]snapshot.Snapshot) []snapshot.Family {
	out := make([]snapshot.Family, 0, len(fresh))
	for _, f := range snapshot.Known {
		if _, ok := fresh[f]; ok {
			out = append(out, f)
		}
	}
	var extra []snapshot.Family
	for f := range fresh {
		if !f.IsKnown() {
			extra = append(extra, f)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Armed returns the identities currently suppressing re-fires.
func (p *Processor) Armed() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dedup.Armed()
}

// Reset forgets identity so the next crossing fires immediately.
func (p *Processor) Reset(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dedup.Reset(identity)
}

func (p *Processor) Rules() Rules { return p.rules }

func (p *Processor) Store() *store.Store { return p.store }

// Window is the deduplication expiration window.
func (p *Processor) Window() time.Duration { return p.dedup.Window() }
