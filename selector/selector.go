// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package selector compiles content-based filter expressions into reusable
// predicates over message headers and properties.
//
// The grammar is the SQL-like subset used by messaging selectors: comparison
// operators (=, <>, <, <=, >, >=), arithmetic (+, -, *, /), logical AND/OR/NOT,
// BETWEEN, IN, LIKE with optional ESCAPE, IS [NOT] NULL, parentheses, and
// string/numeric/boolean literals. Identifiers starting with "JMS" resolve to
// message headers (JMSMessageID, JMSPriority, JMSDeliveryMode, JMSTimestamp,
// JMSExpiration, JMSDestination); all other identifiers resolve to message
// properties. A reference to an absent property evaluates to unknown, which
// never matches.
package selector

import (
	"errors"
	"fmt"

	"github.com/absmach/mqadmin/destination"
)

// ErrInvalidSelector marks a selector string rejected at compile time.
// Compilation failures wrap it, so callers can test with errors.Is.
var ErrInvalidSelector = errors.New("invalid selector")

// Expression is a compiled selector predicate. It is stateless and may be
// reused for any number of messages within one browse, but the Context it
// evaluates against must not be shared across concurrent browses.
type Expression interface {
	// Matches evaluates the predicate against the context's current
	// message. Unknown results (absent properties, mismatched types in
	// comparisons) are not matches. A non-nil error means this message
	// could not be evaluated at all.
	Matches(ctx *Context) (bool, error)
}

// Compile parses a selector string into a reusable Expression. Malformed
// input fails here, before any message is examined.
func Compile(s string) (Expression, error) {
	p := newParser(s)
	root, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSelector, err)
	}
	return compiled{root: root}, nil
}

type compiled struct {
	root node
}

func (c compiled) Matches(ctx *Context) (bool, error) {
	v, err := c.root.eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

// Context binds a destination identity and the message currently under
// evaluation. One context is created per browse and rebound for each message
// in turn via SetMessage. It is not safe for concurrent use.
type Context struct {
	destination string
	msg         *destination.Message
}

// NewContext creates an evaluation context for the named destination.
func NewContext(dest string) *Context {
	return &Context{destination: dest}
}

// SetMessage rebinds the context to the next message in the snapshot.
func (c *Context) SetMessage(m *destination.Message) {
	c.msg = m
}

// value resolves an identifier against the bound message. Absent names
// resolve to nil (unknown); property values of a type the grammar cannot
// operate on are an evaluation error for this message only.
func (c *Context) value(name string) (any, error) {
	if c.msg == nil {
		return nil, errors.New("no message bound to evaluation context")
	}

	switch name {
	case "JMSMessageID":
		return c.msg.ID, nil
	case "JMSPriority":
		return int64(c.msg.Priority), nil
	case "JMSDeliveryMode":
		return c.msg.DeliveryMode.String(), nil
	case "JMSTimestamp":
		return c.msg.Timestamp.UnixMilli(), nil
	case "JMSExpiration":
		if c.msg.Expiration.IsZero() {
			return int64(0), nil
		}
		return c.msg.Expiration.UnixMilli(), nil
	case "JMSDestination":
		return c.destination, nil
	}

	v, ok := c.msg.Properties[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case bool, string, int64, float64:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float32:
		return float64(t), nil
	default:
		return nil, fmt.Errorf("property %q has unsupported type %T", name, v)
	}
}
