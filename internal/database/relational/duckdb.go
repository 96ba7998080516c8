// Package relational persists snapshots and fired events in DuckDB.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Register DuckDB driver
)

// DatabaseConfig holds configuration options for the database.
type DatabaseConfig struct {
	Threads       int           // Number of threads for DuckDB (0 = default)
	MemoryLimitMB int           // Memory limit in MB (0 = default)
	Timeout       time.Duration // Open/ping timeout (0 = none)
}

// DuckDBClient owns the single connection to the agent's datastore.
type DuckDBClient struct {
	db     *sql.DB
	dsn    string
	config DatabaseConfig
}

// DuckDBOption configures the DuckDB client.
type DuckDBOption func(*DuckDBClient)

func WithThreads(n int) DuckDBOption {
	return func(c *DuckDBClient) {
		c.config.Threads = n
	}
}

// WithMemoryLimit caps DuckDB's buffer pool. The agent runs beside the
// workloads it watches, so the default is kept small.
func WithMemoryLimit(mb int) DuckDBOption {
	return func(c *DuckDBClient) {
		c.config.MemoryLimitMB = mb
	}
}

func WithTimeout(d time.Duration) DuckDBOption {
	return func(c *DuckDBClient) {
		c.config.Timeout = d
	}
}

// NewDuckDBClient opens dsn. An empty dsn or ":memory:" opens an in-memory
// database.
func NewDuckDBClient(dsn string, opts ...DuckDBOption) (*DuckDBClient, error) {
	client := &DuckDBClient{
		config: DatabaseConfig{
			Threads:       1,
			MemoryLimitMB: 128,
			Timeout:       10 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if dsn == "" {
		dsn = ":memory:"
	}
	client.dsn = dsn

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	ctx := context.Background()
	if client.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, client.config.Timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	// One writer; an in-memory database is also private to its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	client.db = db

	if err := client.Configure(ctx, client.config); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure duckdb: %w", err)
	}
	return client, nil
}

func (c *DuckDBClient) DB() *sql.DB {
	return c.db
}

func (c *DuckDBClient) DSN() string {
	return c.dsn
}

func (c *DuckDBClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Configure applies database configuration options.
func (c *DuckDBClient) Configure(ctx context.Context, cfg DatabaseConfig) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	if cfg.Threads > 0 {
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf("PRAGMA threads=%d", cfg.Threads)); err != nil {
			return fmt.Errorf("setting threads: %w", err)
		}
	}
	if cfg.MemoryLimitMB > 0 {
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf("PRAGMA memory_limit='%dMB'", cfg.MemoryLimitMB)); err != nil {
			return fmt.Errorf("setting memory limit: %w", err)
		}
	}

	c.config = cfg
	return nil
}

func (c *DuckDBClient) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// NewInMemoryDB creates a new in-memory DuckDB database.
func NewInMemoryDB(opts ...DuckDBOption) (*DuckDBClient, error) {
	return NewDuckDBClient(":memory:", opts...)
}

// NewFileDB opens or creates the datastore file at path.
func NewFileDB(path string, opts ...DuckDBOption) (*DuckDBClient, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	return NewDuckDBClient(path, opts...)
}
