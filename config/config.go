// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/absmach/mqadmin/ratelimit"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the destination admin service.
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Broker       BrokerConfig        `yaml:"broker"`
	Destinations []DestinationConfig `yaml:"destinations"`
	RateLimit    ratelimit.Config    `yaml:"rate_limit"`
	Log          LogConfig           `yaml:"log"`
	Storage      StorageConfig       `yaml:"storage"`
}

// ServerConfig holds the management API server configuration.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	TLSCertFile     string        `yaml:"tls_cert_file"`
	TLSKeyFile      string        `yaml:"tls_key_file"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsAddr     string        `yaml:"metrics_addr"` // OTLP endpoint
	MetricsEnabled  bool          `yaml:"metrics_enabled"`

	// OpenTelemetry configuration
	OtelServiceName     string  `yaml:"otel_service_name"`
	OtelServiceVersion  string  `yaml:"otel_service_version"`
	OtelTracesEnabled   bool    `yaml:"otel_traces_enabled"`
	OtelMetricsEnabled  bool    `yaml:"otel_metrics_enabled"`
	OtelTraceSampleRate float64 `yaml:"otel_trace_sample_rate"` // 0.0 to 1.0
}

// BrokerConfig identifies the broker the facade administers and the
// transport used for diagnostic sends.
type BrokerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`

	// Transport selects where diagnostic sends go: "local" injects into the
	// in-process destinations, "mqtt" publishes to an external broker.
	Transport string        `yaml:"transport"`
	Endpoint  string        `yaml:"endpoint"` // MQTT broker URI, e.g. tcp://host:1883
	Timeout   time.Duration `yaml:"timeout"`
}

// DestinationConfig declares a managed destination and its initial tuning.
// Zero values defer to the destination defaults.
type DestinationConfig struct {
	Name                string `yaml:"name"`
	MaxPageSize         int    `yaml:"max_page_size"`
	MemoryLimit         int64  `yaml:"memory_limit"`
	EnableAudit         bool   `yaml:"enable_audit"`
	MaxAuditDepth       int    `yaml:"max_audit_depth"`
	MaxProducersToAudit int    `yaml:"max_producers_to_audit"`
	ProducerFlowControl bool   `yaml:"producer_flow_control"`
	UseCache            bool   `yaml:"use_cache"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StorageConfig holds message store backend configuration.
type StorageConfig struct {
	Type string `yaml:"type"` // memory, badger

	// BadgerDB settings
	BadgerDir string `yaml:"badger_dir"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8686",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MetricsAddr:     "localhost:4317",
			MetricsEnabled:  false,

			OtelServiceName:     "mqadmin",
			OtelServiceVersion:  "1.0.0",
			OtelMetricsEnabled:  true,
			OtelTracesEnabled:   false,
			OtelTraceSampleRate: 0.1,
		},
		Broker: BrokerConfig{
			Name:      "broker-1",
			Address:   "mqadmin://broker-1",
			Transport: "local",
			Timeout:   10 * time.Second,
		},
		Destinations: []DestinationConfig{},
		RateLimit:    ratelimit.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Type:      "memory",
			BadgerDir: "/tmp/mqadmin/data",
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr cannot be empty")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file must be set together")
	}
	if c.Server.ShutdownTimeout < time.Second {
		return fmt.Errorf("server.shutdown_timeout must be at least 1 second")
	}

	if c.Broker.Name == "" {
		return fmt.Errorf("broker.name cannot be empty")
	}
	if c.Broker.Address == "" {
		return fmt.Errorf("broker.address cannot be empty")
	}
	switch c.Broker.Transport {
	case "local":
	case "mqtt":
		if c.Broker.Endpoint == "" {
			return fmt.Errorf("broker.endpoint required when transport is mqtt")
		}
	default:
		return fmt.Errorf("broker.transport must be one of: local, mqtt")
	}

	seen := make(map[string]bool, len(c.Destinations))
	for i, d := range c.Destinations {
		if d.Name == "" {
			return fmt.Errorf("destinations[%d].name cannot be empty", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("destinations[%d].name %q is duplicated", i, d.Name)
		}
		seen[d.Name] = true
		if d.MaxPageSize < 0 {
			return fmt.Errorf("destinations[%d].max_page_size cannot be negative", i)
		}
		if d.MemoryLimit < 0 {
			return fmt.Errorf("destinations[%d].memory_limit cannot be negative", i)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	validStorage := map[string]bool{"memory": true, "badger": true}
	if !validStorage[c.Storage.Type] {
		return fmt.Errorf("storage.type must be one of: memory, badger")
	}
	if c.Storage.Type == "badger" && c.Storage.BadgerDir == "" {
		return fmt.Errorf("storage.badger_dir required when type is badger")
	}

	// OpenTelemetry validation (only if metrics enabled)
	if c.Server.MetricsEnabled {
		if c.Server.OtelServiceName == "" {
			return fmt.Errorf("server.otel_service_name cannot be empty when metrics enabled")
		}
		if c.Server.OtelTraceSampleRate < 0.0 || c.Server.OtelTraceSampleRate > 1.0 {
			return fmt.Errorf("server.otel_trace_sample_rate must be between 0.0 and 1.0")
		}
	}

	// Rate limit validation (only if enabled)
	if c.RateLimit.Enabled {
		if c.RateLimit.Request.Enabled {
			if c.RateLimit.Request.Rate <= 0 {
				return fmt.Errorf("rate_limit.request.rate must be positive")
			}
			if c.RateLimit.Request.CleanupInterval < time.Second {
				return fmt.Errorf("rate_limit.request.cleanup_interval must be at least 1 second")
			}
		}
		if c.RateLimit.Browse.Enabled && c.RateLimit.Browse.Rate <= 0 {
			return fmt.Errorf("rate_limit.browse.rate must be positive")
		}
		if c.RateLimit.Send.Enabled && c.RateLimit.Send.Rate <= 0 {
			return fmt.Errorf("rate_limit.send.rate must be positive")
		}
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
