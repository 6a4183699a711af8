// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package record

import "fmt"

// Table is a keyed record collection with a declared schema. Every inserted
// record must match the schema and carry a unique key; insertion order is
// preserved for iteration.
type Table struct {
	schema *Schema
	keys   []string
	rows   map[string]Record
}

// NewTable creates an empty table over the given schema.
func NewTable(schema *Schema) *Table {
	return &Table{
		schema: schema,
		rows:   make(map[string]Record),
	}
}

// Schema returns the declared schema.
func (t *Table) Schema() *Schema {
	return t.schema
}

// Put inserts one record. It fails with ErrSchemaMismatch when the record's
// shape disagrees with the schema and with ErrDuplicateKey when the key is
// already present.
func (t *Table) Put(rec Record) error {
	if err := t.schema.Validate(rec); err != nil {
		return err
	}
	key, ok := rec[t.schema.Key].(string)
	if !ok || key == "" {
		return fmt.Errorf("%w: key field %q is empty", ErrSchemaMismatch, t.schema.Key)
	}
	if _, exists := t.rows[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	t.keys = append(t.keys, key)
	t.rows[key] = rec
	return nil
}

// Get returns the record stored under the given key.
func (t *Table) Get(key string) (Record, bool) {
	rec, ok := t.rows[key]
	return rec, ok
}

// Len returns the number of stored records.
func (t *Table) Len() int {
	return len(t.keys)
}

// Keys returns the record keys in insertion order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Records returns the stored records in insertion order.
func (t *Table) Records() []Record {
	out := make([]Record, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.rows[k])
	}
	return out
}
