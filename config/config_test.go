// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test server defaults
	if cfg.Server.HTTPAddr != ":8686" {
		t.Errorf("expected default HTTP addr :8686, got %s", cfg.Server.HTTPAddr)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}

	// Test broker defaults
	if cfg.Broker.Transport != "local" {
		t.Errorf("expected default transport local, got %s", cfg.Broker.Transport)
	}

	// Test log defaults
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Log.Level)
	}

	// Test storage defaults
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected storage type memory, got %s", cfg.Storage.Type)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "default config is valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "no HTTP listener configured",
			modify: func(c *Config) {
				c.Server.HTTPAddr = ""
			},
			wantErr: true,
		},
		{
			name: "TLS cert without key",
			modify: func(c *Config) {
				c.Server.TLSCertFile = "server.crt"
			},
			wantErr: true,
		},
		{
			name: "mqtt transport without endpoint",
			modify: func(c *Config) {
				c.Broker.Transport = "mqtt"
			},
			wantErr: true,
		},
		{
			name: "mqtt transport with endpoint",
			modify: func(c *Config) {
				c.Broker.Transport = "mqtt"
				c.Broker.Endpoint = "tcp://localhost:1883"
			},
			wantErr: false,
		},
		{
			name: "unknown transport",
			modify: func(c *Config) {
				c.Broker.Transport = "amqp"
			},
			wantErr: true,
		},
		{
			name: "duplicate destination names",
			modify: func(c *Config) {
				c.Destinations = []DestinationConfig{
					{Name: "orders"},
					{Name: "orders"},
				}
			},
			wantErr: true,
		},
		{
			name: "destination without name",
			modify: func(c *Config) {
				c.Destinations = []DestinationConfig{{MaxPageSize: 100}}
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "badger storage without dir",
			modify: func(c *Config) {
				c.Storage.Type = "badger"
				c.Storage.BadgerDir = ""
			},
			wantErr: true,
		},
		{
			name: "rate limit enabled with zero browse rate",
			modify: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Browse.Rate = 0
			},
			wantErr: true,
		},
		{
			name: "trace sample rate out of range",
			modify: func(c *Config) {
				c.Server.MetricsEnabled = true
				c.Server.OtelTraceSampleRate = 1.5
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Load() should return default config and no error when file doesn't exist, got error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() should return a default config, got nil")
	}

	if cfg.Server.HTTPAddr != ":8686" {
		t.Errorf("expected default config, got HTTP addr %s", cfg.Server.HTTPAddr)
	}
}

func TestSaveLoad(t *testing.T) {
	tmpfile := t.TempDir() + "/config.yaml"

	// Create custom config
	cfg := Default()
	cfg.Server.HTTPAddr = ":9090"
	cfg.Destinations = []DestinationConfig{
		{Name: "orders", MaxPageSize: 500, EnableAudit: true},
	}
	cfg.Log.Level = "debug"

	// Save
	if err := cfg.Save(tmpfile); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Load
	loaded, err := Load(tmpfile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify
	if loaded.Server.HTTPAddr != ":9090" {
		t.Errorf("expected HTTP addr :9090, got %s", loaded.Server.HTTPAddr)
	}
	if len(loaded.Destinations) != 1 || loaded.Destinations[0].Name != "orders" {
		t.Errorf("expected one destination named orders, got %+v", loaded.Destinations)
	}
	if loaded.Destinations[0].MaxPageSize != 500 {
		t.Errorf("expected max page size 500, got %d", loaded.Destinations[0].MaxPageSize)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", loaded.Log.Level)
	}
}
