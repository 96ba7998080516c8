// Package config loads the agent configuration from its JSON file and the
// environment.
package config

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"monnet/internal/engine"
)

const (
	DefaultPath = "/etc/monnet/agent-config"
	EnvPrefix   = "MONNET_"
	Version     = "0.140"
)

// ErrMissingField is wrapped by ConfigError for required keys left empty.
var ErrMissingField = errors.New("missing required field")

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

func missing(field string) error {
	return &ConfigError{Field: field, Message: "is required", Err: ErrMissingField}
}

// Config mirrors the agent-config file. Intervals are in seconds.
type Config struct {
	ID              string       `json:"id"               env:"ID"`
	Token           string       `json:"token"            env:"TOKEN"`
	DefaultInterval int          `json:"default_interval" env:"DEFAULT_INTERVAL"`
	IgnoreCert      bool         `json:"ignore_cert"      env:"IGNORE_CERT"`
	ServerHost      string       `json:"server_host"      env:"SERVER_HOST"`
	ServerEndpoint  string       `json:"server_endpoint"  env:"SERVER_ENDPOINT"`
	EventExpiration int          `json:"event_expiration" env:"EVENT_EXPIRATION"`
	StatsInterval   int          `json:"stats_interval"   env:"STATS_INTERVAL"`
	PortsInterval   int          `json:"ports_interval"   env:"PORTS_INTERVAL"`
	LogLevel        string       `json:"log_level"        env:"LOG_LEVEL"`
	LogFormat       string       `json:"log_format"       env:"LOG_FORMAT"`
	Datastore       string       `json:"datastore"        env:"DATASTORE"`
	MetricsAddr     string       `json:"metrics_addr"     env:"METRICS_ADDR"`
	Thresholds      engine.Rules `json:"thresholds"       envPrefix:"THRESHOLD_"`
}

func Default() Config {
	return Config{
		DefaultInterval: 10,
		ServerHost:      "localhost",
		ServerEndpoint:  "/",
		EventExpiration: int(engine.DefaultExpiration / time.Second),
		StatsInterval:   300,
		PortsInterval:   15,
		LogLevel:        "info",
		LogFormat:       "text",
		Datastore:       "/var/lib/monnet/datastore.duckdb",
		Thresholds:      engine.DefaultRules(),
	}
}

// Load reads path over the defaults, then applies MONNET_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for local tools that never contact the
// server.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return missing("id")
	case strings.TrimSpace(c.Token) == "":
		return missing("token")
	case strings.TrimSpace(c.ServerHost) == "":
		return missing("server_host")
	case c.ServerEndpoint == "":
		return missing("server_endpoint")
	}

	intervals := []struct {
		field string
		value int
	}{
		{"default_interval", c.DefaultInterval},
		{"event_expiration", c.EventExpiration},
		{"stats_interval", c.StatsInterval},
		{"ports_interval", c.PortsInterval},
	}
	for _, iv := range intervals {
		if iv.value <= 0 {
			return &ConfigError{Field: iv.field, Message: "must be positive"}
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return &ConfigError{Field: "log_format", Message: fmt.Sprintf("unsupported format %q", c.LogFormat)}
	}
	if err := c.Thresholds.Validate(); err != nil {
		return &ConfigError{Field: "thresholds", Message: err.Error(), Err: err}
	}
	return nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.DefaultInterval) * time.Second
}

func (c Config) Expiration() time.Duration {
	return time.Duration(c.EventExpiration) * time.Second
}

func (c Config) StatsEvery() time.Duration {
	return time.Duration(c.StatsInterval) * time.Second
}

func (c Config) PortsEvery() time.Duration {
	return time.Duration(c.PortsInterval) * time.Second
}

// URL is the collector endpoint every payload is posted to.
func (c Config) URL() string {
	endpoint := c.ServerEndpoint
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return "https://" + c.ServerHost + endpoint
}

func (c Config) TLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.IgnoreCert}
}
