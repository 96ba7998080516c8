// Package mcpserver exposes the local monitoring engine as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"monnet/internal/database/relational"
	"monnet/internal/engine"
	"monnet/internal/output"
	"monnet/internal/snapshot"
)

const (
	defaultLimit   = 20
	maxLimit       = 500
	memoryEventCap = 500
	defaultSpan    = 24 * time.Hour
)

// Server wraps the MCP server around a local processor.
type Server struct {
	mcpServer *mcp.Server
	collector output.DataCollector
	processor *engine.Processor
	history   relational.EventRepository
	recorder  engine.EventRecorder
	now       func() time.Time
	log       *slog.Logger

	mu     sync.Mutex
	events []engine.Event

	// Background collection worker
	ingestMu     sync.Mutex
	ingestCancel context.CancelFunc
	ingestWg     sync.WaitGroup
}

// Config holds configuration for the MCP server.
type Config struct {
	ServerName    string
	ServerVersion string
	// Interval of background cycles; zero disables them.
	Interval time.Duration
	// History, when set, answers recent_events from the datastore.
	History  relational.EventRepository
	Recorder engine.EventRecorder
	Logger   *slog.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(cfg Config, col output.DataCollector, proc *engine.Processor) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	impl := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}
	s := &Server{
		mcpServer: mcp.NewServer(impl, nil),
		collector: col,
		processor: proc,
		history:   cfg.History,
		recorder:  cfg.Recorder,
		now:       time.Now,
		log:       logger.With("component", "mcp"),
	}
	s.registerTools()

	if cfg.Interval > 0 {
		s.startBackgroundCollect(cfg.Interval)
	}
	return s
}

// NoArgs is the input of tools without parameters.
type NoArgs struct{}

type EventEntry struct {
	Name     string  `json:"name"`
	Identity string  `json:"identity"`
	Severity string  `json:"event_type" jsonschema:"warn or alert"`
	Value    float64 `json:"value"`
	FiredAt  string  `json:"fired_at" jsonschema:"RFC3339 timestamp"`
}

type CollectResult struct {
	CollectedAt string           `json:"collected_at"`
	Changed     []string         `json:"changed" jsonschema:"families whose reading changed this cycle"`
	Events      []EventEntry     `json:"events" jsonschema:"events fired this cycle"`
	Sections    []output.Section `json:"sections"`
}

type SnapshotArgs struct {
	Family string `json:"family" jsonschema:"metric family, e.g. load_avg, memory_info, disk_info, iowait, listen_ports"`
}

type CheckEntry struct {
	Label    string  `json:"label"`
	Identity string  `json:"identity"`
	Value    float64 `json:"value"`
	Severity string  `json:"severity"`
}

type SnapshotResult struct {
	Family   string       `json:"family"`
	StoreKey string       `json:"store_key"`
	Snapshot any          `json:"snapshot"`
	Checks   []CheckEntry `json:"checks"`
}

type FamilyEntry struct {
	Family   string `json:"family"`
	StoreKey string `json:"store_key"`
	Known    bool   `json:"known"`
	Stored   bool   `json:"stored" jsonschema:"whether a reading has been observed"`
}

type FamiliesResult struct {
	Families []FamilyEntry `json:"families"`
}

type ArmedEntry struct {
	Identity    string `json:"identity"`
	LastFiredAt string `json:"last_fired_at"`
	ExpiresAt   string `json:"expires_at"`
}

type ArmedResult struct {
	Window string       `json:"window"`
	Armed  []ArmedEntry `json:"armed"`
}

type RecentEventsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of events to return, default 20, max 500"`
}

type RecentEventsResult struct {
	Source string       `json:"source" jsonschema:"datastore or memory"`
	Events []EventEntry `json:"events"`
}

type EventCountsArgs struct {
	Hours int `json:"hours,omitempty" jsonschema:"look-back span in hours, default 24"`
}

type CountEntry struct {
	Name     string `json:"name"`
	Severity string `json:"event_type"`
	Count    int64  `json:"count"`
	LastAt   string `json:"last_fired_at"`
}

type EventCountsResult struct {
	Source string       `json:"source" jsonschema:"datastore or memory"`
	Since  string       `json:"since"`
	Counts []CountEntry `json:"counts"`
}

type ResetArgs struct {
	Identity string `json:"identity" jsonschema:"event identity, e.g. high_cpu_usage or low_disk_space:/var"`
}

type ResetResult struct {
	Identity string `json:"identity"`
	WasArmed bool   `json:"was_armed"`
}

type EvaluateArgs struct {
	Family string  `json:"family" jsonschema:"family whose thresholds apply: load_avg, memory_info, disk_info or iowait"`
	Value  float64 `json:"value" jsonschema:"reading to classify"`
}

type EvaluateResult struct {
	Severity string  `json:"severity"`
	Warn     float64 `json:"warn"`
	Alert    float64 `json:"alert"`
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "collect_now",
		Description: "Run one monitoring cycle immediately: read every sensor, detect changes against the stored state and evaluate thresholds. Returns changed families, fired events and the dashboard sections.",
	}, s.handleCollectNow)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_snapshot",
		Description: "Return the last stored reading of one metric family along with its threshold checks.",
	}, s.handleGetSnapshot)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_families",
		Description: "List the metric families the agent knows about or has observed.",
	}, s.handleListFamilies)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_armed_events",
		Description: "List event identities that fired recently and are suppressing repeats until their expiration window passes.",
	}, s.handleListArmed)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "recent_events",
		Description: "Return the most recently fired threshold events, newest first.",
	}, s.handleRecentEvents)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "event_counts",
		Description: "Count fired events by name and severity over the last N hours.",
	}, s.handleEventCounts)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reset_identity",
		Description: "Disarm one event identity so its next threshold crossing fires immediately.",
	}, s.handleReset)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "evaluate_value",
		Description: "Classify a value against the configured warn/alert thresholds of a family without firing anything.",
	}, s.handleEvaluate)
}

func (s *Server) handleCollectNow(ctx context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, CollectResult, error) {
	p, err := s.runCycle(ctx)
	if err != nil {
		return nil, CollectResult{}, fmt.Errorf("collect failed: %w", err)
	}

	out := CollectResult{
		CollectedAt: p.View.CollectedAt.Format(time.RFC3339),
		Changed:     []string{},
		Events:      entries(p.Result.Events),
		Sections:    p.View.Sections,
	}
	for f := range p.Result.Changed {
		out.Changed = append(out.Changed, string(f))
	}
	slices.Sort(out.Changed)
	return nil, out, nil
}

func (s *Server) handleGetSnapshot(_ context.Context, _ *mcp.CallToolRequest, args SnapshotArgs) (*mcp.CallToolResult, SnapshotResult, error) {
	if args.Family == "" {
		return nil, SnapshotResult{}, errors.New("family is required")
	}
	f := snapshot.Family(args.Family)
	snap, ok := s.processor.Store().Get(f)
	if !ok {
		return nil, SnapshotResult{}, fmt.Errorf("no reading stored for family %q", f)
	}

	out := SnapshotResult{Family: string(f), StoreKey: f.StoreKey(), Snapshot: snap, Checks: []CheckEntry{}}
	for _, c := range s.processor.Rules().Check(snap) {
		out.Checks = append(out.Checks, CheckEntry{Label: c.Name, Identity: c.Identity, Value: c.Value, Severity: c.Severity.String()})
	}
	return nil, out, nil
}

func (s *Server) handleListFamilies(_ context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, FamiliesResult, error) {
	st := s.processor.Store()
	stored := st.Families()

	var out FamiliesResult
	for _, f := range snapshot.Known {
		out.Families = append(out.Families, FamilyEntry{
			Family: string(f), StoreKey: f.StoreKey(), Known: true, Stored: slices.Contains(stored, f),
		})
	}
	for _, f := range stored {
		if !f.IsKnown() {
			out.Families = append(out.Families, FamilyEntry{Family: string(f), StoreKey: f.StoreKey(), Stored: true})
		}
	}
	return nil, out, nil
}

func (s *Server) handleListArmed(_ context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, ArmedResult, error) {
	window := s.processor.Window()
	out := ArmedResult{Window: window.String(), Armed: []ArmedEntry{}}
	for _, r := range s.processor.Armed() {
		out.Armed = append(out.Armed, ArmedEntry{
			Identity:    r.Identity,
			LastFiredAt: r.LastFiredAt.Format(time.RFC3339),
			ExpiresAt:   r.LastFiredAt.Add(window).Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *Server) handleRecentEvents(ctx context.Context, _ *mcp.CallToolRequest, args RecentEventsArgs) (*mcp.CallToolResult, RecentEventsResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if s.history != nil {
		rows, err := s.history.RecentEvents(ctx, limit)
		if err != nil {
			return nil, RecentEventsResult{}, fmt.Errorf("failed to query events: %w", err)
		}
		out := RecentEventsResult{Source: "datastore", Events: make([]EventEntry, 0, len(rows))}
		for _, r := range rows {
			out.Events = append(out.Events, EventEntry{
				Name: r.Name, Identity: r.Identity, Severity: r.Severity, Value: r.Value,
				FiredAt: r.FiredAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, out, nil
	}

	s.mu.Lock()
	evs := slices.Clone(s.events)
	s.mu.Unlock()
	slices.Reverse(evs)
	if len(evs) > limit {
		evs = evs[:limit]
	}
	return nil, RecentEventsResult{Source: "memory", Events: entries(evs)}, nil
}

func (s *Server) handleEventCounts(ctx context.Context, _ *mcp.CallToolRequest, args EventCountsArgs) (*mcp.CallToolResult, EventCountsResult, error) {
	span := defaultSpan
	if args.Hours > 0 {
		span = time.Duration(args.Hours) * time.Hour
	}
	since := s.now().Add(-span).UTC()
	out := EventCountsResult{Since: since.Format(time.RFC3339), Counts: []CountEntry{}}

	if s.history != nil {
		rows, err := s.history.EventCounts(ctx, since)
		if err != nil {
			return nil, EventCountsResult{}, fmt.Errorf("failed to count events: %w", err)
		}
		out.Source = "datastore"
		for _, r := range rows {
			out.Counts = append(out.Counts, CountEntry{
				Name: r.Name, Severity: r.Severity, Count: r.Count,
				LastAt: r.Last.UTC().Format(time.RFC3339),
			})
		}
		return nil, out, nil
	}

	type key struct{ name, severity string }
	agg := map[key]*CountEntry{}
	var order []key
	s.mu.Lock()
	for _, ev := range s.events {
		if ev.FiredAt.Before(since) {
			continue
		}
		k := key{ev.Name, ev.Severity.String()}
		c, ok := agg[k]
		if !ok {
			c = &CountEntry{Name: k.name, Severity: k.severity}
			agg[k] = c
			order = append(order, k)
		}
		c.Count++
		c.LastAt = ev.FiredAt.UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()

	slices.SortFunc(order, func(a, b key) int {
		if a.name != b.name {
			return strings.Compare(a.name, b.name)
		}
		return strings.Compare(a.severity, b.severity)
	})
	out.Source = "memory"
	for _, k := range order {
		out.Counts = append(out.Counts, *agg[k])
	}
	return nil, out, nil
}

func (s *Server) handleReset(_ context.Context, _ *mcp.CallToolRequest, args ResetArgs) (*mcp.CallToolResult, ResetResult, error) {
	if args.Identity == "" {
		return nil, ResetResult{}, errors.New("identity is required")
	}
	armed := slices.ContainsFunc(s.processor.Armed(), func(r engine.Record) bool {
		return r.Identity == args.Identity
	})
	s.processor.Reset(args.Identity)
	s.log.Info("identity reset", "identity", args.Identity, "was_armed", armed)
	return nil, ResetResult{Identity: args.Identity, WasArmed: armed}, nil
}

func (s *Server) handleEvaluate(_ context.Context, _ *mcp.CallToolRequest, args EvaluateArgs) (*mcp.CallToolResult, EvaluateResult, error) {
	rule, ok := s.processor.Rules().ForFamily(snapshot.Family(args.Family))
	if !ok {
		return nil, EvaluateResult{}, fmt.Errorf("family %q has no thresholds", args.Family)
	}
	sev := engine.Evaluate(args.Value, rule)
	return nil, EvaluateResult{Severity: sev.String(), Warn: rule.Warn, Alert: rule.Alert}, nil
}

// runCycle runs the pipeline once and keeps the fired events.
func (s *Server) runCycle(ctx context.Context) (*output.Payload, error) {
	p, err := output.RunPipeline(ctx, s.collector, s.processor, s.now())
	if err != nil {
		return nil, err
	}
	if evs := p.Result.Events; len(evs) > 0 {
		s.mu.Lock()
		s.events = append(s.events, evs...)
		if over := len(s.events) - memoryEventCap; over > 0 {
			s.events = slices.Delete(s.events, 0, over)
		}
		s.mu.Unlock()
		if s.recorder != nil {
			s.recorder.RecordEvents(evs)
		}
	}
	return p, nil
}

func entries(evs []engine.Event) []EventEntry {
	out := make([]EventEntry, 0, len(evs))
	for _, ev := range evs {
		out = append(out, EventEntry{
			Name:     ev.Name,
			Identity: ev.Identity,
			Severity: ev.Severity.String(),
			Value:    ev.Value,
			FiredAt:  ev.FiredAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// Start starts the MCP server using stdio transport.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting monnet MCP server on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Close stops background collection.
func (s *Server) Close() {
	s.stopBackgroundCollect()
}

// startBackgroundCollect runs a cycle immediately and then every interval.
func (s *Server) startBackgroundCollect(interval time.Duration) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if s.ingestCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.ingestCancel = cancel
	s.ingestWg.Add(1)

	go func() {
		defer s.ingestWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if _, err := s.runCycle(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("background cycle failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	s.log.Info("background collection started", "interval", interval)
}

func (s *Server) stopBackgroundCollect() {
	s.ingestMu.Lock()
	cancel := s.ingestCancel
	s.ingestCancel = nil
	s.ingestMu.Unlock()

	if cancel != nil {
		cancel()
		s.ingestWg.Wait()
	}
}
