// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"testing"
	"time"

	"github.com/absmach/mqadmin/destination"
	"github.com/absmach/mqadmin/destination/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Dir: t.TempDir(), Prefix: "orders"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutLoadDelete(t *testing.T) {
	store := newTestStore(t)

	first := destination.NewTextMessage("first")
	second := destination.NewTextMessage("second")
	require.NoError(t, store.Put(first))
	require.NoError(t, store.Put(second))

	msgs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
	assert.Equal(t, "first", string(msgs[0].Payload))

	require.NoError(t, store.Delete(first.ID))
	msgs, err = store.Load()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, second.ID, msgs[0].ID)
}

func TestStore_RoundTripsMetadata(t *testing.T) {
	store := newTestStore(t)

	msg := destination.NewTextMessage("payload")
	msg.Priority = 9
	msg.DeliveryMode = destination.NonPersistent
	msg.Expiration = time.Now().Add(time.Hour).Truncate(time.Second)
	msg.Properties["region"] = "eu"
	require.NoError(t, store.Put(msg))

	msgs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	got := msgs[0]
	assert.Equal(t, 9, got.Priority)
	assert.Equal(t, destination.NonPersistent, got.DeliveryMode)
	assert.True(t, msg.Expiration.Equal(got.Expiration))
	assert.Equal(t, "eu", got.Properties["region"])
}

func TestStore_DeleteUnknownIsNoop(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Delete("ID:missing"))
}

func TestStore_SharedDatabasePrefixes(t *testing.T) {
	base, err := New(Config{Dir: t.TempDir(), Prefix: "a"})
	require.NoError(t, err)
	defer base.Close()

	other, err := NewWithDB(base.db, "b")
	require.NoError(t, err)

	require.NoError(t, base.Put(destination.NewTextMessage("for-a")))
	require.NoError(t, other.Put(destination.NewTextMessage("for-b")))

	aMsgs, err := base.Load()
	require.NoError(t, err)
	bMsgs, err := other.Load()
	require.NoError(t, err)
	require.Len(t, aMsgs, 1)
	require.Len(t, bMsgs, 1)
	assert.Equal(t, "for-a", string(aMsgs[0].Payload))
	assert.Equal(t, "for-b", string(bMsgs[0].Payload))
}

func TestDestination_RestoreFromStore(t *testing.T) {
	dir := t.TempDir()

	store, err := New(Config{Dir: dir, Prefix: "orders"})
	require.NoError(t, err)

	dest := memory.New("orders", memory.WithStore(store))
	require.NoError(t, dest.Publish(destination.NewTextMessage("persisted")))
	require.NoError(t, store.Close())

	reopened, err := New(Config{Dir: dir, Prefix: "orders"})
	require.NoError(t, err)
	defer reopened.Close()

	restored := memory.New("orders", memory.WithStore(reopened))
	require.NoError(t, restored.Restore())

	snapshot := restored.Browse()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "persisted", string(snapshot[0].Payload))
	assert.Equal(t, int64(1), restored.Statistics().QueueSize())
}
