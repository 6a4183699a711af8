// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/absmach/mqadmin/admin"
	"github.com/absmach/mqadmin/broker"
	"github.com/absmach/mqadmin/config"
	"github.com/absmach/mqadmin/destination"
	badgerstore "github.com/absmach/mqadmin/destination/badger"
	"github.com/absmach/mqadmin/destination/memory"
	"github.com/absmach/mqadmin/ratelimit"
	"github.com/absmach/mqadmin/server/api"
	"github.com/absmach/mqadmin/server/otel"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Starting destination admin service", "version", "0.1.0")
	slog.Info("Configuration loaded",
		"http_addr", cfg.Server.HTTPAddr,
		"broker", cfg.Broker.Name,
		"transport", cfg.Broker.Transport,
		"destinations", len(cfg.Destinations),
		"storage", cfg.Storage.Type,
		"log_level", cfg.Log.Level)

	// Initialize OpenTelemetry if enabled
	var metrics *otel.Metrics
	if cfg.Server.MetricsEnabled {
		shutdown, err := otel.InitProvider(cfg.Server, cfg.Broker.Name)
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("OpenTelemetry shutdown error", "error", err)
			}
		}()

		metrics, err = otel.NewMetrics()
		if err != nil {
			slog.Error("Failed to create metric instruments", "error", err)
			os.Exit(1)
		}
		slog.Info("OpenTelemetry initialized", "endpoint", cfg.Server.MetricsAddr)
	}

	// Open the shared message store database when persistence is enabled
	var storeFor func(name string) (destination.MessageStore, error)
	switch cfg.Storage.Type {
	case "memory":
		storeFor = func(string) (destination.MessageStore, error) { return nil, nil }
		slog.Info("Using in-memory destinations without persistence")
	case "badger":
		db, err := badgerstore.Open(cfg.Storage.BadgerDir)
		if err != nil {
			slog.Error("Failed to open BadgerDB", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		storeFor = func(name string) (destination.MessageStore, error) {
			return badgerstore.NewWithDB(db, name)
		}
		slog.Info("Using BadgerDB persistent storage", "dir", cfg.Storage.BadgerDir)
	default:
		slog.Error("Unknown storage type", "type", cfg.Storage.Type)
		os.Exit(1)
	}

	// Build the broker facade and its view directory
	local := broker.NewLocal(cfg.Broker.Name, cfg.Broker.Address)
	directory := admin.NewDirectory(local, admin.WithLogger(logger))

	if cfg.Broker.Transport == "mqtt" {
		remote := broker.NewMQTT(broker.MQTTConfig{
			Name:     cfg.Broker.Name,
			Address:  cfg.Broker.Address,
			Endpoint: cfg.Broker.Endpoint,
			Timeout:  cfg.Broker.Timeout,
		}, logger)
		directory.SetSendBroker(remote)
		slog.Info("Diagnostic sends routed to remote broker", "endpoint", cfg.Broker.Endpoint)
	}

	for _, dc := range cfg.Destinations {
		store, err := storeFor(dc.Name)
		if err != nil {
			slog.Error("Failed to open message store", "destination", dc.Name, "error", err)
			os.Exit(1)
		}

		opts := []memory.Option{memory.WithLogger(logger)}
		if store != nil {
			opts = append(opts, memory.WithStore(store))
		}
		if dc.MemoryLimit > 0 {
			opts = append(opts, memory.WithMemoryLimit(dc.MemoryLimit))
		}

		dest := memory.New(dc.Name, opts...)
		if dc.MaxPageSize > 0 {
			dest.SetMaxPageSize(dc.MaxPageSize)
		}
		if dc.MaxAuditDepth > 0 {
			dest.SetMaxAuditDepth(dc.MaxAuditDepth)
		}
		if dc.MaxProducersToAudit > 0 {
			dest.SetMaxProducersToAudit(dc.MaxProducersToAudit)
		}
		dest.SetEnableAudit(dc.EnableAudit)
		dest.SetProducerFlowControl(dc.ProducerFlowControl)
		dest.SetUseCache(dc.UseCache)

		if store != nil {
			if err := dest.Restore(); err != nil {
				slog.Error("Failed to restore destination", "destination", dc.Name, "error", err)
				os.Exit(1)
			}
		}

		if _, err := directory.Register(dest); err != nil {
			slog.Error("Failed to register destination", "destination", dc.Name, "error", err)
			os.Exit(1)
		}
		if metrics != nil {
			metrics.RecordDestinationAdded()
		}
		slog.Info("Destination registered", "destination", dc.Name, "queue_size", dest.Statistics().QueueSize())
	}

	// Rate limiting
	limits := ratelimit.NewManager(cfg.RateLimit)
	defer limits.Stop()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	// Start the management API server
	apiCfg := api.Config{
		Address:         cfg.Server.HTTPAddr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		TLSCertFile:     cfg.Server.TLSCertFile,
		TLSKeyFile:      cfg.Server.TLSKeyFile,
	}
	apiServer := api.New(apiCfg, directory, limits, metrics, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Listen(ctx); err != nil {
			serverErr <- err
		}
	}()

	slog.Info("Destination admin service started")

	// Wait for shutdown signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	case err := <-serverErr:
		slog.Error("Server error", "error", err)
		cancel()
	}

	// Wait for the server to stop
	wg.Wait()
	slog.Info("Destination admin service stopped")
}
