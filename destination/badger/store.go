// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package badger implements destination.MessageStore using BadgerDB, so a
// destination's undelivered messages survive a broker restart.
package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/absmach/mqadmin/destination"
	"github.com/dgraph-io/badger/v4"
)

var _ destination.MessageStore = (*Store)(nil)

// Config holds BadgerDB store configuration.
type Config struct {
	// Dir is the database directory.
	Dir string
	// Prefix namespaces keys, letting destinations share one database.
	Prefix string
}

// Store persists messages under {prefix}/{seq} with the enqueue sequence in
// the key, so Load returns them in enqueue order.
//
// Stored value layout is JSON; admin traffic is low-frequency, so encoding
// cost is irrelevant next to recoverability.
type Store struct {
	db   *badger.DB
	pfx  []byte
	seq  atomic.Uint64
	owns bool
}

type storedMessage struct {
	ID           string         `json:"id"`
	Payload      []byte         `json:"payload"`
	DeliveryMode int            `json:"delivery_mode"`
	Priority     int            `json:"priority"`
	Timestamp    time.Time      `json:"timestamp"`
	Expiration   time.Time      `json:"expiration,omitzero"`
	Properties   map[string]any `json:"properties,omitempty"`
	Seq          uint64         `json:"seq"`
}

// Open opens a BadgerDB database at dir for use with NewWithDB, e.g. one
// database shared by several destination stores.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return db, nil
}

// New opens a BadgerDB database at cfg.Dir and returns a store over it.
func New(cfg Config) (*Store, error) {
	db, err := Open(cfg.Dir)
	if err != nil {
		return nil, err
	}
	s, err := NewWithDB(db, cfg.Prefix)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owns = true
	return s, nil
}

// NewWithDB wraps an already open database, e.g. one shared by several
// destination stores with distinct prefixes.
func NewWithDB(db *badger.DB, prefix string) (*Store, error) {
	s := &Store{db: db, pfx: []byte(prefix + "/")}
	if err := s.restoreSeq(); err != nil {
		return nil, err
	}
	return s, nil
}

// restoreSeq advances the sequence past the highest stored key.
func (s *Store) restoreSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: s.pfx})
		defer it.Close()
		var max uint64
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if len(key) == len(s.pfx)+8 {
				if seq := binary.BigEndian.Uint64(key[len(s.pfx):]); seq > max {
					max = seq
				}
			}
		}
		s.seq.Store(max)
		return nil
	})
}

func (s *Store) key(seq uint64) []byte {
	key := make([]byte, len(s.pfx)+8)
	copy(key, s.pfx)
	binary.BigEndian.PutUint64(key[len(s.pfx):], seq)
	return key
}

// Put stores one message under the next sequence number.
func (s *Store) Put(msg *destination.Message) error {
	seq := s.seq.Add(1)
	data, err := json.Marshal(storedMessage{
		ID:           msg.ID,
		Payload:      msg.Payload,
		DeliveryMode: int(msg.DeliveryMode),
		Priority:     msg.Priority,
		Timestamp:    msg.Timestamp,
		Expiration:   msg.Expiration,
		Properties:   msg.Properties,
		Seq:          seq,
	})
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(seq), data)
	})
}

// Delete removes the message with the given identifier.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: s.pfx})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var sm storedMessage
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &sm)
			})
			if err != nil {
				return err
			}
			if sm.ID == id {
				return txn.Delete(item.KeyCopy(nil))
			}
		}
		return nil
	})
}

// Load returns all stored messages in enqueue order.
func (s *Store) Load() ([]*destination.Message, error) {
	var stored []storedMessage
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: s.pfx})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var sm storedMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sm)
			})
			if err != nil {
				return err
			}
			stored = append(stored, sm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(stored, func(i, j int) bool { return stored[i].Seq < stored[j].Seq })

	msgs := make([]*destination.Message, 0, len(stored))
	for _, sm := range stored {
		msgs = append(msgs, &destination.Message{
			ID:           sm.ID,
			Payload:      sm.Payload,
			DeliveryMode: destination.DeliveryMode(sm.DeliveryMode),
			Priority:     sm.Priority,
			Timestamp:    sm.Timestamp,
			Expiration:   sm.Expiration,
			Properties:   sm.Properties,
		})
	}
	return msgs, nil
}

// Close closes the underlying database when this store opened it.
func (s *Store) Close() error {
	if !s.owns {
		return nil
	}
	return s.db.Close()
}
