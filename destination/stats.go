// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package destination

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks per-destination runtime counters. The delivery engine
// updates them; the admin facade only reads and, on request, resets them.
type Statistics struct {
	enqueues       atomic.Uint64
	dequeues       atomic.Uint64
	dispatched     atomic.Uint64
	inflight       atomic.Int64
	consumers      atomic.Int64
	producers      atomic.Int64
	messages       atomic.Int64
	messagesCached atomic.Int64

	processTime TimeStatistic
}

// NewStatistics creates a zeroed statistics set.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Enqueue records one accepted message and its processing time.
func (s *Statistics) Enqueue(processing time.Duration) {
	s.enqueues.Add(1)
	s.messages.Add(1)
	s.processTime.Add(processing)
}

// Dequeue records one message leaving the destination after acknowledgement.
func (s *Statistics) Dequeue() {
	s.dequeues.Add(1)
	s.messages.Add(-1)
}

// Dispatch records one message handed to a consumer, not yet acknowledged.
func (s *Statistics) Dispatch() {
	s.dispatched.Add(1)
	s.inflight.Add(1)
}

// Acknowledge records one in-flight message settled by its consumer.
func (s *Statistics) Acknowledge() {
	s.inflight.Add(-1)
}

// Expire records one message discarded on expiration without delivery.
func (s *Statistics) Expire() {
	s.messages.Add(-1)
}

// Consumer tracking.
func (s *Statistics) AddConsumer()    { s.consumers.Add(1) }
func (s *Statistics) RemoveConsumer() { s.consumers.Add(-1) }
func (s *Statistics) AddProducer()    { s.producers.Add(1) }
func (s *Statistics) RemoveProducer() { s.producers.Add(-1) }

// Cache tracking.
func (s *Statistics) CacheMessage()   { s.messagesCached.Add(1) }
func (s *Statistics) UncacheMessage() { s.messagesCached.Add(-1) }

func (s *Statistics) Enqueues() uint64      { return s.enqueues.Load() }
func (s *Statistics) Dequeues() uint64      { return s.dequeues.Load() }
func (s *Statistics) Dispatched() uint64    { return s.dispatched.Load() }
func (s *Statistics) Inflight() int64       { return s.inflight.Load() }
func (s *Statistics) Consumers() int64      { return s.consumers.Load() }
func (s *Statistics) Producers() int64      { return s.producers.Load() }
func (s *Statistics) QueueSize() int64      { return s.messages.Load() }
func (s *Statistics) MessagesCached() int64 { return s.messagesCached.Load() }

// ProcessTime returns the enqueue processing time statistic.
func (s *Statistics) ProcessTime() *TimeStatistic {
	return &s.processTime
}

// Reset zeroes every counter. Gauges tracking live state (in-flight,
// consumers, producers, queue size, cache) are reset too; the delivery
// engine re-derives them as activity continues.
func (s *Statistics) Reset() {
	s.enqueues.Store(0)
	s.dequeues.Store(0)
	s.dispatched.Store(0)
	s.inflight.Store(0)
	s.consumers.Store(0)
	s.producers.Store(0)
	s.messages.Store(0)
	s.messagesCached.Store(0)
	s.processTime.Reset()
}

// TimeStatistic aggregates min/max/average over observed durations.
type TimeStatistic struct {
	mu    sync.Mutex
	count uint64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// Add records one observation.
func (t *TimeStatistic) Add(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
	t.count++
	t.total += d
}

// Count returns the number of observations.
func (t *TimeStatistic) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Min returns the smallest observed duration, zero when empty.
func (t *TimeStatistic) Min() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.min
}

// Max returns the largest observed duration, zero when empty.
func (t *TimeStatistic) Max() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}

// Average returns the mean observed duration, zero when empty.
func (t *TimeStatistic) Average() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.total / time.Duration(t.count)
}

// Reset discards all observations.
func (t *TimeStatistic) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
	t.total = 0
	t.min = 0
	t.max = 0
}
