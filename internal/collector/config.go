package collector

import (
	"slices"
	"time"
)

// CollectorConfig contains configurable parameters for the system collector.
// Use DefaultCollectorConfig() to get sensible defaults, then override as needed.
type CollectorConfig struct {
	// Timeout bounds a single sensor read (default: 5s)
	Timeout time.Duration

	// CPUSample is the window cpu usage is measured over. Zero compares
	// against the previous call (default: 0)
	CPUSample time.Duration

	// Disk selection
	AllPartitions bool     // Include pseudo filesystems (default: false)
	IgnoreFstypes []string // Filesystem types never reported

	// Listening sockets
	IncludeUDP      bool // Report unbound UDP sockets (default: true)
	ResolveServices bool // Look up the owning process name (default: true)
}

// DefaultCollectorConfig returns a CollectorConfig with sensible defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Timeout:         5 * time.Second,
		CPUSample:       0,
		AllPartitions:   false,
		IgnoreFstypes:   []string{"squashfs", "tmpfs", "devtmpfs", "overlay"},
		IncludeUDP:      true,
		ResolveServices: true,
	}
}

// WithTimeout returns a copy of the config with modified sensor timeout.
func (c CollectorConfig) WithTimeout(d time.Duration) CollectorConfig {
	c.Timeout = d
	return c
}

// WithCPUSample returns a copy of the config with modified cpu sample window.
func (c CollectorConfig) WithCPUSample(d time.Duration) CollectorConfig {
	c.CPUSample = d
	return c
}

// WithIgnoreFstypes returns a copy of the config ignoring the given filesystem types.
func (c CollectorConfig) WithIgnoreFstypes(types ...string) CollectorConfig {
	c.IgnoreFstypes = slices.Clone(types)
	return c
}

// WithUDP returns a copy of the config with UDP sockets enabled/disabled.
func (c CollectorConfig) WithUDP(enabled bool) CollectorConfig {
	c.IncludeUDP = enabled
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c CollectorConfig) Validate() error {
	if c.Timeout <= 0 {
		return &ConfigError{Field: "Timeout", Message: "must be positive"}
	}
	if c.CPUSample < 0 {
		return &ConfigError{Field: "CPUSample", Message: "must not be negative"}
	}
	if c.CPUSample >= c.Timeout {
		return &ConfigError{Field: "CPUSample", Message: "must be shorter than Timeout"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}
