// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package destination defines the broker-side queue/topic surface consumed by
// the admin facade: a point-in-time browse snapshot, runtime statistics,
// memory accounting and the mutable per-destination configuration fields.
package destination

// Destination is a live queue or topic inside a running broker. The broker
// owns it; the admin facade only references it. Implementations must be safe
// for concurrent use, since the delivery engine mutates the destination while
// management callers read it.
type Destination interface {
	Name() string

	// Browse returns a point-in-time copy of the currently undelivered
	// messages, in enqueue order. The caller may iterate the snapshot
	// freely; it is not affected by concurrent enqueues or dequeues.
	Browse() []*Message

	Statistics() *Statistics
	MemoryUsage() *MemoryUsage

	// Consumers returns the live subscriptions attached to the
	// destination. Order is consistent within one call only.
	Consumers() []Subscription

	// GC requests a deferred cleanup pass over expired messages.
	GC()

	MaxPageSize() int
	SetMaxPageSize(n int)
	MaxAuditDepth() int
	SetMaxAuditDepth(n int)
	MaxProducersToAudit() int
	SetMaxProducersToAudit(n int)
	EnableAudit() bool
	SetEnableAudit(enable bool)
	ProducerFlowControl() bool
	SetProducerFlowControl(enable bool)
	UseCache() bool
	SetUseCache(use bool)
}

// Subscription is a live consumer attached to a destination. It is enumerated,
// never owned, by the admin facade.
type Subscription interface {
	ID() string
	// ClientID identifies the owning connection.
	ClientID() string
}

// MessageStore persists a destination's undelivered messages so they survive
// a broker restart. Implementations must tolerate concurrent calls.
type MessageStore interface {
	Put(msg *Message) error
	Delete(id string) error
	// Load returns all stored messages in enqueue order.
	Load() ([]*Message, error)
	Close() error
}
