// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/absmach/mqadmin/destination"
)

// ErrDiagnosticPublish marks any failure in the diagnostic publish
// sequence. The transient connection is released regardless.
var ErrDiagnosticPublish = errors.New("diagnostic publish failed")

type publishRequest struct {
	headers      map[string]any
	user         string
	password     string
	deliveryMode destination.DeliveryMode
	modeSet      bool
	priority     int
	prioritySet  bool
	ttl          time.Duration
}

// PublishOption adjusts a diagnostic publish.
type PublishOption func(*publishRequest)

// WithHeaders copies the mapping into the message properties.
func WithHeaders(headers map[string]any) PublishOption {
	return func(r *publishRequest) { r.headers = headers }
}

// WithCredentials authenticates the transient connection. Without this the
// publish uses the broker's internal endpoint unauthenticated; it is a
// trusted administrative diagnostic, not a general client API.
func WithCredentials(user, password string) PublishOption {
	return func(r *publishRequest) { r.user, r.password = user, password }
}

// WithDeliveryMode overrides the template's delivery mode.
func WithDeliveryMode(mode destination.DeliveryMode) PublishOption {
	return func(r *publishRequest) { r.deliveryMode, r.modeSet = mode, true }
}

// WithPriority overrides the template's priority.
func WithPriority(priority int) PublishOption {
	return func(r *publishRequest) { r.priority, r.prioritySet = priority, true }
}

// WithTTL sets a time-to-live; the message expires that long after the
// send. Zero leaves broker defaults (no expiration).
func WithTTL(ttl time.Duration) PublishOption {
	return func(r *publishRequest) { r.ttl = ttl }
}

// SendTextMessage injects a text message into the destination for
// diagnostics. It opens a short-lived connection to the broker's own
// transport, sends a freshly constructed message template with the headers
// copied as properties, and returns the message identifier. The connection
// is torn down unconditionally, on failure as well as success.
func (v *View) SendTextMessage(body string, opts ...PublishOption) (string, error) {
	var req publishRequest
	for _, opt := range opts {
		opt(&req)
	}

	msg := destination.NewTextMessage(body)
	for k, val := range req.headers {
		msg.Properties[k] = val
	}
	if req.modeSet {
		msg.DeliveryMode = req.deliveryMode
	}
	if req.prioritySet {
		msg.Priority = req.priority
	}
	if req.ttl > 0 {
		msg.Expiration = time.Now().Add(req.ttl)
	}

	conn, err := v.broker.Connect(req.user, req.password)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDiagnosticPublish, err)
	}
	defer conn.Close()

	if err := conn.Send(v.dest.Name(), msg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDiagnosticPublish, err)
	}
	return msg.ID, nil
}
