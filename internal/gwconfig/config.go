// Package gwconfig loads the YAML configuration consumed by the
// epcisconv gateway and its CLI commands: network binding, the chunk
// size and worker pool size handed to the core router, and the optional
// audit/telemetry sinks.
package gwconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the gateway/service configuration.
type Config struct {
	Bind            string        `yaml:"bind"`
	ChunkSize       int           `yaml:"chunk_size"`
	WorkerPoolSize  int           `yaml:"worker_pool_size"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AuditConfig configures the append-only conversion audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	ServiceName    string  `yaml:"service_name"`
	ConsoleSpans   bool    `yaml:"console_spans"`
	SampleFraction float64 `yaml:"sample_fraction"`
}

// defaults fills zero values with sensible defaults, mirroring the
// gateway's own Config.defaults pattern.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 8192
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 10
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		c.Audit.Path = "epcisconv-audit.db"
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			c.Telemetry.ServiceName = "epcisconv"
		}
		if c.Telemetry.SampleFraction <= 0 {
			c.Telemetry.SampleFraction = 1.0
		}
	}
}

func (c *Config) validate() error {
	if c.ChunkSize < 0 {
		return fmt.Errorf("gwconfig: chunk_size must be non-negative, got %d", c.ChunkSize)
	}
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("gwconfig: worker_pool_size must be non-negative, got %d", c.WorkerPoolSize)
	}
	if c.Telemetry.Enabled && c.Telemetry.SampleFraction < 0 {
		return fmt.Errorf("gwconfig: telemetry.sample_fraction must be non-negative, got %f", c.Telemetry.SampleFraction)
	}
	return nil
}

// Load reads and validates a Config from path, expanding ${VAR}/$VAR
// environment references in the raw YAML before decoding, matching the
// gateway/service configuration loading style.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gwconfig: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("gwconfig: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.defaults()
	return &cfg, nil
}

// Default returns a Config populated entirely with defaults, for callers
// that run without a configuration file (e.g. `epcisconv convert`).
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}
