// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package destination

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryMode controls whether a message survives a broker restart.
type DeliveryMode int

const (
	NonPersistent DeliveryMode = iota
	Persistent
)

// String returns the wire name of the delivery mode.
func (d DeliveryMode) String() string {
	if d == Persistent {
		return "PERSISTENT"
	}
	return "NON_PERSISTENT"
}

// Message is a single undelivered unit held by a destination. Messages are
// immutable once enqueued; browsing never touches delivery state.
type Message struct {
	ID           string
	Payload      []byte
	DeliveryMode DeliveryMode
	Priority     int
	Timestamp    time.Time
	Expiration   time.Time // zero means the message never expires
	Properties   map[string]any
}

// NewTextMessage builds a message carrying a UTF-8 text body with a fresh
// identifier and the current timestamp. Delivery attributes are left at
// broker defaults.
func NewTextMessage(body string) *Message {
	return &Message{
		ID:           "ID:" + uuid.NewString(),
		Payload:      []byte(body),
		DeliveryMode: Persistent,
		Priority:     DefaultPriority,
		Timestamp:    time.Now(),
		Properties:   make(map[string]any),
	}
}

// DefaultPriority is the priority assigned when a producer does not set one.
const DefaultPriority = 4

// Expired reports whether the message expiration has passed at the given time.
func (m *Message) Expired(now time.Time) bool {
	return !m.Expiration.IsZero() && now.After(m.Expiration)
}

// RemainingTTL returns how long the message remains deliverable at the given
// time. It is zero when the expiration already passed and negative never.
func (m *Message) RemainingTTL(now time.Time) time.Duration {
	if m.Expiration.IsZero() {
		return 0
	}
	ttl := m.Expiration.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Size returns the memory footprint used for usage accounting.
func (m *Message) Size() int64 {
	return int64(len(m.Payload))
}

// Copy returns a deep copy safe to hand to another goroutine.
func (m *Message) Copy() *Message {
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	if m.Properties != nil {
		c.Properties = make(map[string]any, len(m.Properties))
		for k, v := range m.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}
