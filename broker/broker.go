// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package broker provides the broker-side collaborators the admin facade
// talks to: a destination registry with the broker's identity, and short
// lived connections used by the diagnostic publish path. Local is the
// in-process broker; MQTT adapts a remote broker reachable over its own
// client-facing transport.
package broker

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/absmach/mqadmin/destination"
)

var (
	ErrUnknownDestination = errors.New("unknown destination")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrNotAuthorized      = errors.New("not authorized")
)

// Destination is a registry entry: the admin-visible destination surface
// plus the enqueue operation the diagnostic publish path needs.
type Destination interface {
	destination.Destination
	Publish(msg *destination.Message) error
}

// Broker is what the admin facade needs from a broker: its identity for
// address composition and short-lived connections for diagnostic publishes.
type Broker interface {
	Name() string
	Address() string
	Connect(user, password string) (Connection, error)
}

// Connection is one short-lived producer connection. Callers must Close it
// on every exit path, success or failure.
type Connection interface {
	Send(dest string, msg *destination.Message) error
	Close() error
}

// Local is an in-process broker: a named destination registry whose
// connections enqueue directly, the analog of a broker's internal loopback
// transport. Connections made this way bypass application-level auth
// scoping unless an auth hook is installed.
type Local struct {
	name    string
	address string
	auth    func(user, password string) error

	mu           sync.RWMutex
	destinations map[string]Destination
}

// NewLocal creates a broker registry with the given broker name and
// management address.
func NewLocal(name, address string) *Local {
	return &Local{
		name:         name,
		address:      address,
		destinations: make(map[string]Destination),
	}
}

// Name returns the broker name.
func (b *Local) Name() string {
	return b.name
}

// Address returns the broker's management address, used when composing
// subscription addresses.
func (b *Local) Address() string {
	return b.address
}

// SetAuth installs a credential check for diagnostic connections. Without
// one, all connections are accepted.
func (b *Local) SetAuth(auth func(user, password string) error) {
	b.auth = auth
}

// AddDestination registers a destination under its name.
func (b *Local) AddDestination(d Destination) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.destinations[d.Name()]; exists {
		return fmt.Errorf("destination %q already registered", d.Name())
	}
	b.destinations[d.Name()] = d
	return nil
}

// Destination returns the registered destination with the given name.
func (b *Local) Destination(name string) (Destination, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.destinations[name]
	return d, ok
}

// DestinationNames returns all registered destination names, sorted.
func (b *Local) DestinationNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.destinations))
	for name := range b.destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect opens a short-lived loopback connection. The caller must close it
// on every exit path.
func (b *Local) Connect(user, password string) (Connection, error) {
	if b.auth != nil {
		if err := b.auth(user, password); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, err)
		}
	}
	return &LocalConnection{broker: b}, nil
}

// LocalConnection is one loopback connection. Not safe for concurrent use;
// the diagnostic publish path creates one per call.
type LocalConnection struct {
	broker *Local
	closed bool
}

// Send enqueues the message on the named destination.
func (c *LocalConnection) Send(dest string, msg *destination.Message) error {
	if c.closed {
		return ErrConnectionClosed
	}
	d, ok := c.broker.Destination(dest)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDestination, dest)
	}
	return d.Publish(msg)
}

// Close tears the connection down. Closing twice is harmless.
func (c *LocalConnection) Close() error {
	c.closed = true
	return nil
}
