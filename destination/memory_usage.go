// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package destination

import "sync"

// MemoryUsage accounts the memory a destination's undelivered messages occupy
// against a configurable limit. The limit and the usage portion are writable
// at runtime through the admin facade.
type MemoryUsage struct {
	mu      sync.RWMutex
	limit   int64
	used    int64
	portion float64
}

// NewMemoryUsage creates usage accounting with the given byte limit.
func NewMemoryUsage(limit int64) *MemoryUsage {
	return &MemoryUsage{limit: limit, portion: 1.0}
}

// Add records bytes consumed by a newly enqueued message.
func (m *MemoryUsage) Add(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used += n
}

// Release records bytes freed by a dequeued or expired message.
func (m *MemoryUsage) Release(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= n
	if m.used < 0 {
		m.used = 0
	}
}

// Used returns the bytes currently accounted.
func (m *MemoryUsage) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Limit returns the configured byte limit.
func (m *MemoryUsage) Limit() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limit
}

// SetLimit replaces the byte limit. Takes effect immediately.
func (m *MemoryUsage) SetLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
}

// UsagePortion returns the fraction of the parent memory pool this
// destination may claim.
func (m *MemoryUsage) UsagePortion() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portion
}

// SetUsagePortion replaces the pool fraction. Takes effect immediately.
func (m *MemoryUsage) SetUsagePortion(portion float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portion = portion
}

// PercentUsage returns used memory as a whole percentage of the limit,
// zero when no limit is set.
func (m *MemoryUsage) PercentUsage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.limit <= 0 {
		return 0
	}
	return int(m.used * 100 / m.limit)
}
