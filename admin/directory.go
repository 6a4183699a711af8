// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"fmt"
	"sync"

	"github.com/absmach/mqadmin/broker"
)

// Directory keeps one View per registered destination. It is the lookup
// surface the management API works against.
type Directory struct {
	broker *broker.Local
	send   broker.Broker
	opts   []Option

	mu    sync.RWMutex
	views map[string]*View
}

// NewDirectory creates a directory over a local broker. opts are applied to
// every view the directory creates.
func NewDirectory(b *broker.Local, opts ...Option) *Directory {
	return &Directory{
		broker: b,
		send:   b,
		opts:   opts,
		views:  make(map[string]*View),
	}
}

// SetSendBroker routes diagnostic sends of subsequently registered views
// through b instead of the local loopback, e.g. an external MQTT broker.
func (d *Directory) SetSendBroker(b broker.Broker) {
	d.send = b
}

// Register adds the destination to the broker and builds its view.
func (d *Directory) Register(dest broker.Destination) (*View, error) {
	if err := d.broker.AddDestination(dest); err != nil {
		return nil, err
	}

	v, err := New(dest, d.send, d.opts...)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.views[dest.Name()] = v
	d.mu.Unlock()
	return v, nil
}

// View returns the view for the named destination.
func (d *Directory) View(name string) (*View, error) {
	d.mu.RLock()
	v, ok := d.views[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", broker.ErrUnknownDestination, name)
	}
	return v, nil
}

// Names returns the registered destination names in sorted order.
func (d *Directory) Names() []string {
	return d.broker.DestinationNames()
}
