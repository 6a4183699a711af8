// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package record converts browsed messages into typed, schema-declared
// records for export to management tooling, and assembles them into flat
// composite batches or tables keyed by message identifier.
package record

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrSchemaMismatch marks a record whose shape disagrees with the
	// declared schema. Fatal to table assembly, never per-message.
	ErrSchemaMismatch = errors.New("record does not match schema")

	// ErrDuplicateKey marks an attempt to insert a second record with the
	// same key into a table.
	ErrDuplicateKey = errors.New("duplicate record key")
)

// Record is one converted message: a named, typed field set.
type Record map[string]any

// FieldType enumerates the value types a schema field may declare.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
	TypeMap
)

// String returns the type name used in schema descriptions.
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeBytes:
		return "bytes"
	case TypeMap:
		return "map"
	default:
		return "unknown"
	}
}

// Field declares one named, typed record field.
type Field struct {
	Name string
	Type FieldType
}

// Schema declares the shape of every record of one message type. Schemas are
// registered once per type, not inferred per browse call.
type Schema struct {
	Name   string
	Key    string // name of the unique key field, typed TypeString
	Fields []Field
}

// Validate checks that the record carries exactly the declared fields with
// the declared types. Any disagreement wraps ErrSchemaMismatch.
func (s *Schema) Validate(rec Record) error {
	if len(rec) != len(s.Fields) {
		return fmt.Errorf("%w: schema %s declares %d fields, record has %d",
			ErrSchemaMismatch, s.Name, len(s.Fields), len(rec))
	}
	for _, f := range s.Fields {
		v, ok := rec[f.Name]
		if !ok {
			return fmt.Errorf("%w: missing field %q", ErrSchemaMismatch, f.Name)
		}
		if !typeMatches(f.Type, v) {
			return fmt.Errorf("%w: field %q is not a %s", ErrSchemaMismatch, f.Name, f.Type)
		}
	}
	return nil
}

func typeMatches(t FieldType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		_, ok := v.(int64)
		return ok
	case TypeFloat:
		_, ok := v.(float64)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeTime:
		_, ok := v.(time.Time)
		return ok
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	case TypeMap:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

// Registry holds one schema per message record type.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds a schema. Registering the same name twice is an error.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("schema %q already registered", s.Name)
	}
	r.schemas[s.Name] = s
	return nil
}

// Lookup returns the schema registered under the given name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Composite is a flat export batch: the declared schema alongside the
// converted records, in match order.
type Composite struct {
	Schema  *Schema
	Records []Record
}
