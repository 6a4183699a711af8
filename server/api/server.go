// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package api exposes destination administration over HTTP: statistics,
// selective browsing, configuration, subscriptions, and diagnostic sends.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/absmach/mqadmin/admin"
	"github.com/absmach/mqadmin/ratelimit"
	"github.com/absmach/mqadmin/server/otel"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Config holds configuration for the API server.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string
}

// Server provides the HTTP management API over the view directory.
type Server struct {
	config     Config
	directory  *admin.Directory
	limits     *ratelimit.Manager
	metrics    *otel.Metrics
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
}

// New creates a new API server. metrics may be nil when telemetry is
// disabled; limits may be nil to run without rate limiting.
func New(config Config, directory *admin.Directory, limits *ratelimit.Manager, metrics *otel.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if limits == nil {
		limits = ratelimit.NewManager(ratelimit.Config{})
	}

	s := &Server{
		config:    config,
		directory: directory,
		limits:    limits,
		metrics:   metrics,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /destinations", s.handleListDestinations)
	mux.HandleFunc("GET /destinations/{name}/stats", s.handleStats)
	mux.HandleFunc("POST /destinations/{name}/stats/reset", s.handleResetStats)
	mux.HandleFunc("GET /destinations/{name}/messages", s.handleBrowse)
	mux.HandleFunc("POST /destinations/{name}/messages", s.handleSend)
	mux.HandleFunc("GET /destinations/{name}/config", s.handleGetConfig)
	mux.HandleFunc("PUT /destinations/{name}/config", s.handleUpdateConfig)
	mux.HandleFunc("GET /destinations/{name}/subscriptions", s.handleSubscriptions)
	mux.HandleFunc("POST /destinations/{name}/gc", s.handleGC)

	h2s := &http2.Server{}
	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      h2c.NewHandler(s.rateLimited(mux), h2s),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Addr returns the listener's network address.
// Returns an empty string if the server hasn't started listening yet.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listen starts the API server and blocks until ctx is cancelled or the
// server fails.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.listener = listener

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
			s.logger.Info("admin_api_starting_tls", slog.String("address", s.listener.Addr().String()))
			err = s.httpServer.ServeTLS(listener, s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			s.logger.Info("admin_api_starting", slog.String("address", s.listener.Addr().String()))
			err = s.httpServer.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("admin API server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("admin_api_shutdown_initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("admin_api_shutdown_error", slog.String("error", err.Error()))
			return err
		}

		s.logger.Info("admin_api_stopped")
		return nil
	}
}

// rateLimited rejects requests from hosts that exceed the per-IP budget.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limits.AllowRequest(host) {
			if s.metrics != nil {
				s.metrics.RecordRateLimited("request")
			}
			s.logger.Warn("admin_request_rate_limited", slog.String("remote", host))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		if s.metrics != nil {
			s.metrics.RecordRequest(r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
