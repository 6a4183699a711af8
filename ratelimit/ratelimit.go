// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter manages rate limiting for IP addresses (request layer).
// Used to limit admin API requests per IP so a runaway script cannot
// monopolize the management surface.
type IPRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*ipEntry
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	stopCh   chan struct{}
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter.
// rate is requests per second, burst is the burst allowance.
func NewIPRateLimiter(r float64, burst int, cleanupInterval time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{
		limiters: make(map[string]*ipEntry),
		rate:     rate.Limit(r),
		burst:    burst,
		cleanup:  cleanupInterval,
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow checks if a request from the given address is allowed.
// Returns true if the request is allowed, false if rate limited.
func (l *IPRateLimiter) Allow(addr net.Addr) bool {
	ip := extractIP(addr)
	if ip == "" {
		return true // Allow if we can't extract IP
	}
	return l.AllowHost(ip)
}

// AllowHost is Allow for callers that already hold a bare host string,
// such as an HTTP handler working from RemoteAddr.
func (l *IPRateLimiter) AllowHost(ip string) bool {
	l.mu.Lock()
	entry, exists := l.limiters[ip]
	if !exists {
		entry = &ipEntry{
			limiter:  rate.NewLimiter(l.rate, l.burst),
			lastSeen: time.Now(),
		}
		l.limiters[ip] = entry
	} else {
		entry.lastSeen = time.Now()
	}
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// cleanupLoop periodically removes stale entries.
func (l *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStale()
		case <-l.stopCh:
			return
		}
	}
}

func (l *IPRateLimiter) cleanupStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := time.Now().Add(-l.cleanup * 2)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(threshold) {
			delete(l.limiters, ip)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *IPRateLimiter) Stop() {
	close(l.stopCh)
}

// DestinationRateLimiter limits expensive per-destination operations.
// Browsing snapshots and copies every message on a destination, so an
// unthrottled poller can keep a large queue permanently pinned.
type DestinationRateLimiter struct {
	mu             sync.RWMutex
	browseLimiters map[string]*rate.Limiter
	sendLimiters   map[string]*rate.Limiter
	browseRate     rate.Limit
	browseBurst    int
	sendRate       rate.Limit
	sendBurst      int
}

// NewDestinationRateLimiter creates a new destination-scoped rate limiter.
func NewDestinationRateLimiter(browseRate float64, browseBurst int, sendRate float64, sendBurst int) *DestinationRateLimiter {
	return &DestinationRateLimiter{
		browseLimiters: make(map[string]*rate.Limiter),
		sendLimiters:   make(map[string]*rate.Limiter),
		browseRate:     rate.Limit(browseRate),
		browseBurst:    browseBurst,
		sendRate:       rate.Limit(sendRate),
		sendBurst:      sendBurst,
	}
}

// AllowBrowse checks if a browse of the given destination is allowed.
// Returns true if allowed, false if rate limited.
func (l *DestinationRateLimiter) AllowBrowse(destination string) bool {
	l.mu.Lock()
	limiter, exists := l.browseLimiters[destination]
	if !exists {
		limiter = rate.NewLimiter(l.browseRate, l.browseBurst)
		l.browseLimiters[destination] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// AllowSend checks if a diagnostic send to the given destination is allowed.
// Returns true if allowed, false if rate limited.
func (l *DestinationRateLimiter) AllowSend(destination string) bool {
	l.mu.Lock()
	limiter, exists := l.sendLimiters[destination]
	if !exists {
		limiter = rate.NewLimiter(l.sendRate, l.sendBurst)
		l.sendLimiters[destination] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// RemoveDestination drops limiters for a destination that no longer exists.
func (l *DestinationRateLimiter) RemoveDestination(destination string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.browseLimiters, destination)
	delete(l.sendLimiters, destination)
}

// extractIP extracts the IP address from a net.Addr.
func extractIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.String()
	case *net.UDPAddr:
		return a.IP.String()
	default:
		// Try to parse as host:port format
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return addr.String()
		}
		return host
	}
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled bool `yaml:"enabled"`

	Request RequestConfig `yaml:"request"`
	Browse  BrowseConfig  `yaml:"browse"`
	Send    SendConfig    `yaml:"send"`
}

// RequestConfig holds per-IP admin request rate limiting settings.
type RequestConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Rate            float64       `yaml:"rate"`             // requests per second per IP
	Burst           int           `yaml:"burst"`            // burst allowance
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // cleanup interval for stale entries
}

// BrowseConfig holds per-destination browse rate limiting settings.
type BrowseConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`  // browses per second per destination
	Burst   int     `yaml:"burst"` // burst allowance
}

// SendConfig holds per-destination diagnostic send rate limiting settings.
type SendConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`  // sends per second per destination
	Burst   int     `yaml:"burst"` // burst allowance
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Request: RequestConfig{
			Enabled:         true,
			Rate:            50,
			Burst:           100,
			CleanupInterval: 5 * time.Minute,
		},
		Browse: BrowseConfig{
			Enabled: true,
			Rate:    2, // 2 snapshots per second per destination
			Burst:   5,
		},
		Send: SendConfig{
			Enabled: true,
			Rate:    10,
			Burst:   20,
		},
	}
}

// Manager coordinates all rate limiters.
type Manager struct {
	config      Config
	ip          *IPRateLimiter
	destination *DestinationRateLimiter
	disabled    bool
}

// NewManager creates a new rate limit manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{disabled: true, config: cfg}
	}

	var ip *IPRateLimiter
	var dest *DestinationRateLimiter

	if cfg.Request.Enabled {
		ip = NewIPRateLimiter(cfg.Request.Rate, cfg.Request.Burst, cfg.Request.CleanupInterval)
	}

	if cfg.Browse.Enabled || cfg.Send.Enabled {
		dest = NewDestinationRateLimiter(
			cfg.Browse.Rate,
			cfg.Browse.Burst,
			cfg.Send.Rate,
			cfg.Send.Burst,
		)
	}

	return &Manager{
		config:      cfg,
		ip:          ip,
		destination: dest,
	}
}

// AllowRequest checks if a request from the given remote host is allowed.
func (m *Manager) AllowRequest(host string) bool {
	if m.disabled || m.ip == nil || !m.config.Request.Enabled {
		return true
	}
	return m.ip.AllowHost(host)
}

// AllowBrowse checks if a browse of the given destination is allowed.
func (m *Manager) AllowBrowse(destination string) bool {
	if m.disabled || m.destination == nil || !m.config.Browse.Enabled {
		return true
	}
	return m.destination.AllowBrowse(destination)
}

// AllowSend checks if a diagnostic send to the given destination is allowed.
func (m *Manager) AllowSend(destination string) bool {
	if m.disabled || m.destination == nil || !m.config.Send.Enabled {
		return true
	}
	return m.destination.AllowSend(destination)
}

// OnDestinationRemoved cleans up limiters for a removed destination.
func (m *Manager) OnDestinationRemoved(destination string) {
	if m.disabled || m.destination == nil {
		return
	}
	m.destination.RemoveDestination(destination)
}

// Stop stops the rate limiter manager and cleans up resources.
func (m *Manager) Stop() {
	if m.ip != nil {
		m.ip.Stop()
	}
}
