// Package report delivers heartbeats and notifications to the monnet server.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"monnet/internal/collector/services"
	"monnet/internal/config"
	"monnet/internal/engine"
	"monnet/internal/snapshot"
)

var (
	ErrInvalidResponse = errors.New("invalid response from server")
	ErrHTTPStatus      = errors.New("unexpected http status")
)

const maxBody = 1 << 20

// HostSource supplies the identity fields of Meta.
type HostSource interface {
	Collect(ctx context.Context) (services.HostResult, error)
}

type Client struct {
	url     string
	id      string
	token   string
	version string
	http    *http.Client
	host    HostSource
	now     func() time.Time
	log     *slog.Logger

	mu       sync.Mutex
	hostInfo *services.HostResult
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithHostSource(h HostSource) Option {
	return func(c *Client) { c.host = h }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:     cfg.URL(),
		id:      cfg.ID,
		token:   cfg.Token,
		version: config.Version,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &http.Transport{TLSClientConfig: cfg.TLSConfig()},
		},
		host: services.NewHostSensor(),
		now:  time.Now,
		log:  logger.With("component", "report"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping posts a ping and returns the validated pong.
func (c *Client) Ping(ctx context.Context, interval time.Duration, data map[string]any) (*Response, error) {
	p := c.payload(ctx, CmdPing, data)
	p.Interval = int(interval / time.Second)

	body, err := c.post(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.Cmd != CmdPong || resp.Token != c.token {
		return nil, fmt.Errorf("%w: cmd %q or token mismatch", ErrInvalidResponse, resp.Cmd)
	}
	return &resp, nil
}

// Notify posts a named notification. The response body is ignored.
func (c *Client) Notify(ctx context.Context, name string, data map[string]any) error {
	d := maps.Clone(data)
	if d == nil {
		d = make(map[string]any, 1)
	}
	d["name"] = name

	_, err := c.post(ctx, c.payload(ctx, CmdNotification, d))
	return err
}

func (c *Client) ReportEvent(ctx context.Context, ev engine.Event) error {
	return c.Notify(ctx, ev.Name, EventData(ev))
}

// ReportHeartbeat is the cycle ping: changed families plus optional stats.
func (c *Client) ReportHeartbeat(ctx context.Context, interval time.Duration, changed map[snapshot.Family]snapshot.Snapshot, stats *Stats) (*Response, error) {
	return c.Ping(ctx, interval, HeartbeatData(changed, stats))
}

func (c *Client) payload(ctx context.Context, cmd string, data map[string]any) Payload {
	if data == nil {
		data = map[string]any{}
	}
	return Payload{
		ID:      c.id,
		Cmd:     cmd,
		Token:   c.token,
		Version: c.version,
		Data:    data,
		Meta:    c.meta(ctx),
	}
}

func (c *Client) meta(ctx context.Context) Meta {
	now := c.now()
	zone, _ := now.Local().Zone()
	h := c.hostResult(ctx)
	return Meta{
		Timestamp:    now.UTC().Format(time.RFC3339),
		Timezone:     zone,
		Hostname:     h.Hostname,
		Nodename:     h.Hostname,
		IPAddress:    h.IPAddress,
		AgentVersion: c.version,
		UUID:         uuid.NewString(),
	}
}

// hostResult caches the first successful host lookup.
func (c *Client) hostResult(ctx context.Context) services.HostResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hostInfo != nil {
		return *c.hostInfo
	}
	if c.host == nil {
		return services.HostResult{}
	}
	h, err := c.host.Collect(ctx)
	if err != nil {
		c.log.Warn("host info unavailable", "error", err)
		return services.HostResult{}
	}
	c.hostInfo = &h
	return h
}

func (c *Client) post(ctx context.Context, p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Cmd, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("sending payload", "cmd", p.Cmd, "uuid", p.Meta.UUID)
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", p.Cmd, err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %d: %s", ErrHTTPStatus, p.Cmd, res.StatusCode, bytes.TrimSpace(body[:min(len(body), 256)]))
	}
	return body, nil
}
