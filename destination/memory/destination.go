// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package memory provides the in-memory destination implementation: an
// ordered undelivered-message list with statistics, memory accounting,
// duplicate-detection audit and the runtime-mutable configuration fields
// exposed through the admin facade.
package memory

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/mqadmin/destination"
	"github.com/google/uuid"
)

var (
	// ErrMemoryExhausted rejects a publish when producer flow control is
	// on and the destination's memory limit is reached.
	ErrMemoryExhausted = errors.New("destination memory limit reached")

	// ErrDuplicateMessage rejects a publish whose identifier is still in
	// the audit window.
	ErrDuplicateMessage = errors.New("duplicate message")
)

// Defaults for the runtime-mutable configuration fields.
const (
	DefaultMaxPageSize         = 200
	DefaultMaxAuditDepth       = 2048
	DefaultMaxProducersToAudit = 64
	DefaultMemoryLimit         = 64 << 20
)

// ProducerProperty names the message property carrying the producer
// identity used for per-producer auditing.
const ProducerProperty = "producer-id"

// Destination is an in-memory queue. Safe for concurrent use.
type Destination struct {
	name   string
	stats  *destination.Statistics
	memory *destination.MemoryUsage
	store  destination.MessageStore
	logger *slog.Logger

	mu        sync.RWMutex
	messages  []*destination.Message
	consumers []destination.Subscription
	audit     *auditLog

	maxPageSize         int
	maxAuditDepth       int
	maxProducersToAudit int
	enableAudit         bool
	producerFlowControl bool
	useCache            bool
}

// Option configures a destination.
type Option func(*Destination)

// WithStore attaches a persistent message store. Call Restore afterwards to
// reload messages surviving from a previous run.
func WithStore(store destination.MessageStore) Option {
	return func(d *Destination) { d.store = store }
}

// WithMemoryLimit overrides the default memory limit.
func WithMemoryLimit(limit int64) Option {
	return func(d *Destination) { d.memory.SetLimit(limit) }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Destination) { d.logger = logger }
}

// New creates an empty destination with default configuration.
func New(name string, opts ...Option) *Destination {
	d := &Destination{
		name:                name,
		stats:               destination.NewStatistics(),
		memory:              destination.NewMemoryUsage(DefaultMemoryLimit),
		logger:              slog.Default(),
		maxPageSize:         DefaultMaxPageSize,
		maxAuditDepth:       DefaultMaxAuditDepth,
		maxProducersToAudit: DefaultMaxProducersToAudit,
		enableAudit:         true,
		producerFlowControl: true,
		useCache:            true,
	}
	d.audit = newAuditLog(d.maxAuditDepth, d.maxProducersToAudit)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the destination name.
func (d *Destination) Name() string {
	return d.name
}

// Restore reloads undelivered messages from the attached store.
func (d *Destination) Restore() error {
	if d.store == nil {
		return nil
	}
	msgs, err := d.store.Load()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, msg := range msgs {
		d.messages = append(d.messages, msg)
		d.memory.Add(msg.Size())
		d.stats.Enqueue(0)
		if d.useCache {
			d.stats.CacheMessage()
		}
	}
	return nil
}

// Publish enqueues one message. The message is copied; the caller keeps
// ownership of its argument.
func (d *Destination) Publish(msg *destination.Message) error {
	start := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.producerFlowControl && d.memory.PercentUsage() >= 100 {
		return ErrMemoryExhausted
	}

	m := msg.Copy()
	if m.ID == "" {
		m.ID = "ID:" + uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = start
	}

	if d.enableAudit {
		producer, _ := m.Properties[ProducerProperty].(string)
		if d.audit.duplicate(producer, m.ID) {
			d.logger.Warn("duplicate_message_rejected",
				slog.String("destination", d.name),
				slog.String("message_id", m.ID))
			return ErrDuplicateMessage
		}
	}

	if d.store != nil {
		if err := d.store.Put(m); err != nil {
			return err
		}
	}

	d.messages = append(d.messages, m)
	d.memory.Add(m.Size())
	d.stats.Enqueue(time.Since(start))
	if d.useCache {
		d.stats.CacheMessage()
	}
	return nil
}

// Browse returns a point-in-time deep copy of the undelivered messages in
// enqueue order, capped at the max page size.
func (d *Destination) Browse() []*destination.Message {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := len(d.messages)
	if d.maxPageSize > 0 && n > d.maxPageSize {
		n = d.maxPageSize
	}
	snapshot := make([]*destination.Message, 0, n)
	for _, msg := range d.messages[:n] {
		snapshot = append(snapshot, msg.Copy())
	}
	return snapshot
}

// Dequeue removes and returns the head message, nil when empty. It stands in
// for the delivery engine in this implementation: the message counts as
// dispatched, acknowledged and dequeued.
func (d *Destination) Dequeue() *destination.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.messages) == 0 {
		return nil
	}
	msg := d.messages[0]
	d.messages = d.messages[1:]

	d.stats.Dispatch()
	d.stats.Acknowledge()
	d.stats.Dequeue()
	if d.useCache {
		d.stats.UncacheMessage()
	}
	d.memory.Release(msg.Size())
	if d.store != nil {
		if err := d.store.Delete(msg.ID); err != nil {
			d.logger.Warn("store_delete_failed",
				slog.String("destination", d.name),
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()))
		}
	}
	return msg
}

// GC removes expired messages.
func (d *Destination) GC() {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.messages[:0]
	for _, msg := range d.messages {
		if !msg.Expired(now) {
			kept = append(kept, msg)
			continue
		}
		d.stats.Expire()
		if d.useCache {
			d.stats.UncacheMessage()
		}
		d.memory.Release(msg.Size())
		if d.store != nil {
			if err := d.store.Delete(msg.ID); err != nil {
				d.logger.Warn("store_delete_failed",
					slog.String("destination", d.name),
					slog.String("message_id", msg.ID),
					slog.String("error", err.Error()))
			}
		}
	}
	d.messages = kept
}

// Statistics returns the destination's counters.
func (d *Destination) Statistics() *destination.Statistics {
	return d.stats
}

// MemoryUsage returns the destination's memory accounting.
func (d *Destination) MemoryUsage() *destination.MemoryUsage {
	return d.memory
}

// Subscribe attaches a consumer owned by the given connection client and
// returns its subscription.
func (d *Destination) Subscribe(clientID string) destination.Subscription {
	sub := subscription{id: uuid.NewString(), clientID: clientID}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, sub)
	d.stats.AddConsumer()
	return sub
}

// Unsubscribe detaches the subscription with the given id.
func (d *Destination) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, sub := range d.consumers {
		if sub.ID() == id {
			d.consumers = append(d.consumers[:i], d.consumers[i+1:]...)
			d.stats.RemoveConsumer()
			return
		}
	}
}

// Consumers returns the live subscriptions in attach order.
func (d *Destination) Consumers() []destination.Subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]destination.Subscription(nil), d.consumers...)
}

type subscription struct {
	id       string
	clientID string
}

func (s subscription) ID() string       { return s.id }
func (s subscription) ClientID() string { return s.clientID }

// Configuration passthrough. Setters take effect immediately; validation
// beyond what the fields themselves enforce is intentionally absent.

func (d *Destination) MaxPageSize() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxPageSize
}

func (d *Destination) SetMaxPageSize(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxPageSize = n
}

func (d *Destination) MaxAuditDepth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxAuditDepth
}

func (d *Destination) SetMaxAuditDepth(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxAuditDepth = n
	d.audit = newAuditLog(d.maxAuditDepth, d.maxProducersToAudit)
}

func (d *Destination) MaxProducersToAudit() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxProducersToAudit
}

func (d *Destination) SetMaxProducersToAudit(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxProducersToAudit = n
	d.audit = newAuditLog(d.maxAuditDepth, d.maxProducersToAudit)
}

func (d *Destination) EnableAudit() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enableAudit
}

func (d *Destination) SetEnableAudit(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enableAudit = enable
}

func (d *Destination) ProducerFlowControl() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.producerFlowControl
}

func (d *Destination) SetProducerFlowControl(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.producerFlowControl = enable
}

func (d *Destination) UseCache() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.useCache
}

func (d *Destination) SetUseCache(use bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.useCache = use
}
